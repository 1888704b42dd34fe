package growth

import (
	"math"
	"time"
)

// DaysPerMonth is the mean Gregorian month length.
const DaysPerMonth = 30.4375

// AgeInMonths returns the whole-day distance between anchor and date
// divided by DaysPerMonth, rounded to 2 decimals. Dates before the
// anchor give a negative age.
func AgeInMonths(anchor, date time.Time) float64 {
	days := daysBetween(anchor, date)
	return roundTo(float64(days)/DaysPerMonth, 2)
}

// Anchor picks the birth date when known, else the earliest observation date.
func Anchor(birthDate *time.Time, observations []Observation) (time.Time, bool) {
	if birthDate != nil && !birthDate.IsZero() {
		return *birthDate, true
	}
	var earliest time.Time
	found := false
	for _, o := range observations {
		if !found || o.Date.Before(earliest) {
			earliest = o.Date.Time
			found = true
		}
	}
	return earliest, found
}

// AgeOf is AgeInMonths against the anchor chosen by Anchor; 0 without an anchor.
func AgeOf(birthDate *time.Time, observations []Observation, date time.Time) float64 {
	anchor, ok := Anchor(birthDate, observations)
	if !ok {
		return 0
	}
	return AgeInMonths(anchor, date)
}

// WholeMonthsBetween counts completed calendar months from birth to now,
// never less than 0.
func WholeMonthsBetween(birth, now time.Time) int {
	months := (now.Year()-birth.Year())*12 + int(now.Month()) - int(birth.Month())
	if now.Day() < birth.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(t.Sub(f).Hours() / 24))
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

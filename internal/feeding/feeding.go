package feeding

import (
	"sort"
	"time"
)

const DefaultDays = 7

type MilkObservation struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	AmountMl  float64   `json:"amountMl"`
	Note      string    `json:"note,omitempty"`
}

type DailyTotal struct {
	Day      string    `json:"day"` // YYYY-MM-DD
	Date     time.Time `json:"-"`
	AmountMl float64   `json:"amountMl"`
	Feeds    int       `json:"feeds"`
}

// DailyTotals sums milk observations per calendar day (in now's location)
// and returns the last days days that have any feeds, oldest first.
// Observations after the end of now's day are ignored.
func DailyTotals(entries []MilkObservation, now time.Time, days int) []DailyTotal {
	if days <= 0 {
		days = DefaultDays
	}
	loc := now.Location()
	endOfToday := startOfDay(now).AddDate(0, 0, 1)

	byDay := map[string]*DailyTotal{}
	for _, e := range entries {
		ts := e.Timestamp.In(loc)
		if !ts.Before(endOfToday) {
			continue
		}
		day := ts.Format(time.DateOnly)
		total, ok := byDay[day]
		if !ok {
			total = &DailyTotal{Day: day, Date: startOfDay(ts)}
			byDay[day] = total
		}
		total.AmountMl += e.AmountMl
		total.Feeds++
	}

	totals := make([]DailyTotal, 0, len(byDay))
	for _, t := range byDay {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Day < totals[j].Day
	})

	if len(totals) > days {
		totals = totals[len(totals)-days:]
	}
	return totals
}

// SortByTimestamp orders observations oldest first, keeping the input
// order for equal timestamps.
func SortByTimestamp(entries []MilkObservation) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Package growth holds the charting core: fractional age computation,
// the WHO percentile reference tables and the series merger that places
// reference curves and a baby's own observations on one age axis.
//
// All values in this package are in storage units (kg, cm).
package growth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

func (g Gender) IsValid() bool {
	return g == Male || g == Female
}

func ParseGender(s string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	if !g.IsValid() {
		return "", fmt.Errorf("unknown gender: %q", s)
	}
	return g, nil
}

type Metric string

const (
	Weight Metric = "weight"
	Height Metric = "height"
)

func (m Metric) IsValid() bool {
	return m == Weight || m == Height
}

func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("unknown metric: %q", s)
	}
	return m, nil
}

// Date is a calendar date, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day (as seen in t's location).
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts YYYY-MM-DD and, for older clients, full RFC3339 timestamps.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "T") {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Observation is a single growth measurement. A zero WeightKg or HeightCm
// means the metric was not recorded on that day.
type Observation struct {
	ID       string  `json:"id"`
	Date     Date    `json:"date"`
	WeightKg float64 `json:"weightKg"`
	HeightCm float64 `json:"heightCm"`
	Note     string  `json:"note,omitempty"`
}

func (o Observation) HasWeight() bool {
	return o.WeightKg > 0
}

func (o Observation) HasHeight() bool {
	return o.HeightCm > 0
}

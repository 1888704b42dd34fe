package growth

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/2beens/babygrowth/internal/units"
)

// MergePolicy decides what happens when two observations land on the
// same age key.
type MergePolicy int

const (
	// PolicyLastWriteWins lets the later observation overwrite, per field.
	PolicyLastWriteWins MergePolicy = iota
	// PolicyAverage keeps the mean of all colliding values, per field.
	PolicyAverage
)

// ParseMergePolicy reads the config names "last-write-wins" and "average".
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch s {
	case "last-write-wins", "":
		return PolicyLastWriteWins, nil
	case "average":
		return PolicyAverage, nil
	default:
		return 0, fmt.Errorf("unknown merge policy: %s", s)
	}
}

// axisBuckets are the allowed x-axis ceilings, in months.
var axisBuckets = []float64{6, 12, 24, 36, 48, 60}

// ChartPoint is one x position on the chart. Nil fields are absent and
// are omitted from JSON.
type ChartPoint struct {
	AgeMonths      float64  `json:"ageMonths"`
	P3             *float64 `json:"p3,omitempty"`
	P15            *float64 `json:"p15,omitempty"`
	P50            *float64 `json:"p50,omitempty"`
	P85            *float64 `json:"p85,omitempty"`
	P97            *float64 `json:"p97,omitempty"`
	ObservedWeight *float64 `json:"observedWeight,omitempty"`
	ObservedHeight *float64 `json:"observedHeight,omitempty"`
}

type Series struct {
	Metric        Metric       `json:"metric"`
	Points        []ChartPoint `json:"points"`
	CeilingMonths float64      `json:"ceilingMonths"`
	// Collisions counts observations that landed on an age already holding one.
	Collisions int `json:"collisions"`
}

type SeriesParams struct {
	Metric       Metric
	Gender       Gender
	BirthDate    *time.Time
	Observations []Observation
	References   *References
	Policy       MergePolicy
}

// Chart is the combined weight + height view on one shared age axis.
type Chart struct {
	Weight        Series  `json:"weight"`
	Height        Series  `json:"height"`
	CeilingMonths float64 `json:"ceilingMonths"`
}

// AxisCeiling returns the smallest bucket holding latestAge. Past the last
// bucket the ceiling is latestAge rounded up to a whole month.
func AxisCeiling(latestAge float64) float64 {
	for _, b := range axisBuckets {
		if latestAge <= b {
			return b
		}
	}
	return math.Ceil(latestAge)
}

type keyedPoint struct {
	key   int
	point ChartPoint
	// per-field sample counts for PolicyAverage
	weightN int
	heightN int
	hasObs  bool
}

// pointSet keeps points sorted by age key, in hundredths of a month.
type pointSet struct {
	points []*keyedPoint
}

func ageKey(age float64) int {
	return int(math.Round(age * 100))
}

func (s *pointSet) at(age float64) *keyedPoint {
	key := ageKey(age)
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].key >= key })
	if i < len(s.points) && s.points[i].key == key {
		return s.points[i]
	}
	p := &keyedPoint{key: key, point: ChartPoint{AgeMonths: float64(key) / 100}}
	s.points = append(s.points, nil)
	copy(s.points[i+1:], s.points[i:])
	s.points[i] = p
	return p
}

func ptr(v float64) *float64 {
	return &v
}

func mergeValue(dst **float64, n *int, v float64, policy MergePolicy) {
	if *dst == nil || policy == PolicyLastWriteWins {
		*dst = ptr(v)
		*n = 1
		return
	}
	*n++
	mean := **dst + (v-**dst)/float64(*n)
	*dst = ptr(mean)
}

// BuildSeries merges the reference curves of one metric with the
// observations onto a single sorted age axis, trimmed to the axis ceiling.
func BuildSeries(params SeriesParams) Series {
	set := &pointSet{}

	if table, ok := params.References.Table(params.Gender, params.Metric); ok {
		for _, row := range table {
			p := set.at(row.Month)
			p.point.P3 = ptr(row.P3)
			p.point.P15 = ptr(row.P15)
			p.point.P50 = ptr(row.P50)
			p.point.P85 = ptr(row.P85)
			p.point.P97 = ptr(row.P97)
		}
	}

	collisions := 0
	latest := 0.0
	for i, obs := range sortedObservations(params.Observations) {
		age := AgeOf(params.BirthDate, params.Observations, obs.Date.Time)
		if i == 0 || age > latest {
			latest = age
		}

		p := set.at(age)
		if p.hasObs {
			collisions++
		}
		p.hasObs = true

		if obs.HasWeight() {
			mergeValue(&p.point.ObservedWeight, &p.weightN, obs.WeightKg, params.Policy)
		}
		if obs.HasHeight() {
			mergeValue(&p.point.ObservedHeight, &p.heightN, obs.HeightCm, params.Policy)
		}
	}

	ceiling := AxisCeiling(latest)
	points := make([]ChartPoint, 0, len(set.points))
	for _, p := range set.points {
		if p.point.AgeMonths > ceiling {
			break
		}
		points = append(points, p.point)
	}

	return Series{
		Metric:        params.Metric,
		Points:        points,
		CeilingMonths: ceiling,
		Collisions:    collisions,
	}
}

// BuildChart builds both metric series and trims them to a common ceiling.
func BuildChart(gender Gender, birthDate *time.Time, observations []Observation, refs *References, policy MergePolicy) Chart {
	params := SeriesParams{
		Gender:       gender,
		BirthDate:    birthDate,
		Observations: observations,
		References:   refs,
		Policy:       policy,
	}

	params.Metric = Weight
	weight := BuildSeries(params)
	params.Metric = Height
	height := BuildSeries(params)

	return Chart{
		Weight:        weight,
		Height:        height,
		CeilingMonths: math.Max(weight.CeilingMonths, height.CeilingMonths),
	}
}

// sortedObservations orders by date, keeping input order for equal dates.
func sortedObservations(observations []Observation) []Observation {
	sorted := make([]Observation, len(observations))
	copy(sorted, observations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date.Time)
	})
	return sorted
}

// DisplaySeries returns a copy of the series with every value converted
// into the given display units. Reference values follow the series metric.
func DisplaySeries(series Series, weightUnit units.WeightUnit, heightUnit units.HeightUnit) Series {
	refConv := func(v float64) float64 { return units.ToDisplayWeight(v, weightUnit) }
	if series.Metric == Height {
		refConv = func(v float64) float64 { return units.ToDisplayHeight(v, heightUnit) }
	}

	conv := func(v *float64, f func(float64) float64) *float64 {
		if v == nil {
			return nil
		}
		return ptr(f(*v))
	}

	out := series
	out.Points = make([]ChartPoint, len(series.Points))
	for i, p := range series.Points {
		out.Points[i] = ChartPoint{
			AgeMonths: p.AgeMonths,
			P3:        conv(p.P3, refConv),
			P15:       conv(p.P15, refConv),
			P50:       conv(p.P50, refConv),
			P85:       conv(p.P85, refConv),
			P97:       conv(p.P97, refConv),
			ObservedWeight: conv(p.ObservedWeight, func(v float64) float64 {
				return units.ToDisplayWeight(v, weightUnit)
			}),
			ObservedHeight: conv(p.ObservedHeight, func(v float64) float64 {
				return units.ToDisplayHeight(v, heightUnit)
			}),
		}
	}
	return out
}

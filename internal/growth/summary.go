package growth

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
	TrendNone   Trend = "none"
)

// stableWeightDelta is the weight change (kg) still considered stable.
const stableWeightDelta = 0.01

type Summary struct {
	Latest      *Observation `json:"latest,omitempty"`
	Previous    *Observation `json:"previous,omitempty"`
	WeightTrend Trend        `json:"weightTrend"`
}

// Summarize picks the most recent observation and derives the weight trend
// from the last two observations that recorded a weight.
func Summarize(observations []Observation) Summary {
	s := Summary{WeightTrend: TrendNone}
	sorted := sortedObservations(observations)
	if len(sorted) == 0 {
		return s
	}

	latest := sorted[len(sorted)-1]
	s.Latest = &latest

	var weighed []Observation
	for i := len(sorted) - 1; i >= 0 && len(weighed) < 2; i-- {
		if sorted[i].HasWeight() {
			weighed = append(weighed, sorted[i])
		}
	}
	if len(weighed) < 2 {
		return s
	}

	prev := weighed[1]
	s.Previous = &prev
	delta := weighed[0].WeightKg - prev.WeightKg
	switch {
	case delta > stableWeightDelta:
		s.WeightTrend = TrendUp
	case delta < -stableWeightDelta:
		s.WeightTrend = TrendDown
	default:
		s.WeightTrend = TrendStable
	}
	return s
}

package growth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/babygrowth/internal/units"
)

func mustReferences(t *testing.T) *References {
	t.Helper()
	refs, err := LoadReferences()
	require.NoError(t, err)
	return refs
}

func findPoint(t *testing.T, series Series, age float64) ChartPoint {
	t.Helper()
	for _, p := range series.Points {
		if p.AgeMonths == age {
			return p
		}
	}
	t.Fatalf("no point at age %v", age)
	return ChartPoint{}
}

func TestAxisCeiling(t *testing.T) {
	cases := []struct {
		latest float64
		want   float64
	}{
		{0, 6},
		{-2, 6},
		{5.99, 6},
		{6, 6},
		{6.01, 12},
		{12, 12},
		{23.5, 24},
		{30, 36},
		{47, 48},
		{59.9, 60},
		{60, 60},
		{61.2, 62},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AxisCeiling(c.latest), "latest %v", c.latest)
	}
}

func TestBuildSeries_Scenario(t *testing.T) {
	birth := day(2023, time.January, 1)
	series := BuildSeries(SeriesParams{
		Metric:    Weight,
		Gender:    Male,
		BirthDate: &birth,
		Observations: []Observation{
			{ID: "o1", Date: NewDate(2023, time.February, 1), WeightKg: 5, HeightCm: 58},
		},
		References: mustReferences(t),
	})

	assert.Equal(t, 6.0, series.CeilingMonths)
	assert.Equal(t, 0, series.Collisions)
	// months 0..6 plus the observation
	require.Len(t, series.Points, 8)

	p := findPoint(t, series, 1.02)
	assert.InDelta(t, 1.0185, p.AgeMonths, 0.01)
	require.NotNil(t, p.ObservedWeight)
	require.NotNil(t, p.ObservedHeight)
	assert.Equal(t, 5.0, *p.ObservedWeight)
	assert.Equal(t, 58.0, *p.ObservedHeight)
	assert.Nil(t, p.P50)

	display := DisplaySeries(series, units.Pounds, units.Centimeters)
	dp := findPoint(t, display, 1.02)
	assert.Equal(t, "11.02", units.DisplayWeight(*p.ObservedWeight, units.Pounds))
	assert.InDelta(t, 11.0231, *dp.ObservedWeight, 1e-3)
	assert.Equal(t, 58.0, *dp.ObservedHeight)

	// stored values stay put
	assert.Equal(t, 5.0, *p.ObservedWeight)
}

func TestBuildSeries_SortedAndReferenceFields(t *testing.T) {
	birth := day(2023, time.January, 1)
	series := BuildSeries(SeriesParams{
		Metric:    Height,
		Gender:    Female,
		BirthDate: &birth,
		Observations: []Observation{
			{Date: NewDate(2023, time.July, 1), HeightCm: 65},
			{Date: NewDate(2023, time.March, 15), HeightCm: 57},
		},
		References: mustReferences(t),
	})

	assert.Equal(t, 6.0, series.CeilingMonths)
	for i := 1; i < len(series.Points); i++ {
		assert.Less(t, series.Points[i-1].AgeMonths, series.Points[i].AgeMonths)
	}
	for _, p := range series.Points {
		assert.LessOrEqual(t, p.AgeMonths, series.CeilingMonths)
	}

	month3 := findPoint(t, series, 3)
	require.NotNil(t, month3.P3)
	require.NotNil(t, month3.P97)
	assert.Nil(t, month3.ObservedHeight)
	assert.Nil(t, month3.ObservedWeight)
}

func TestBuildSeries_PresenceOnlyWhenRecorded(t *testing.T) {
	birth := day(2023, time.January, 1)
	series := BuildSeries(SeriesParams{
		Metric:    Height,
		Gender:    Male,
		BirthDate: &birth,
		Observations: []Observation{
			{Date: NewDate(2023, time.February, 1), WeightKg: 0, HeightCm: 60},
		},
		References: mustReferences(t),
	})

	p := findPoint(t, series, 1.02)
	assert.Nil(t, p.ObservedWeight)
	require.NotNil(t, p.ObservedHeight)
	assert.Equal(t, 60.0, *p.ObservedHeight)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ageMonths":1.02,"observedHeight":60}`, string(data))
}

func TestBuildSeries_ObservationOnReferenceMonth(t *testing.T) {
	birth := day(2023, time.January, 1)
	// 61 days rounds to 2.00 months
	series := BuildSeries(SeriesParams{
		Metric:    Weight,
		Gender:    Male,
		BirthDate: &birth,
		Observations: []Observation{
			{Date: NewDate(2023, time.March, 3), WeightKg: 5.5},
		},
		References: mustReferences(t),
	})

	assert.Len(t, series.Points, 7)
	p := findPoint(t, series, 2)
	require.NotNil(t, p.P50)
	require.NotNil(t, p.ObservedWeight)
	assert.Equal(t, 5.5, *p.ObservedWeight)
}

func TestBuildSeries_Collisions(t *testing.T) {
	birth := day(2023, time.January, 1)
	observations := []Observation{
		{ID: "first", Date: NewDate(2023, time.February, 1), WeightKg: 4.8, HeightCm: 57},
		{ID: "second", Date: NewDate(2023, time.February, 1), WeightKg: 5.2},
	}
	params := SeriesParams{
		Metric:       Weight,
		Gender:       Male,
		BirthDate:    &birth,
		Observations: observations,
		References:   mustReferences(t),
	}

	series := BuildSeries(params)
	assert.Equal(t, 1, series.Collisions)
	p := findPoint(t, series, 1.02)
	assert.Equal(t, 5.2, *p.ObservedWeight)
	// the second observation has no height, so the first one's stays
	assert.Equal(t, 57.0, *p.ObservedHeight)

	params.Policy = PolicyAverage
	series = BuildSeries(params)
	assert.Equal(t, 1, series.Collisions)
	p = findPoint(t, series, 1.02)
	assert.InDelta(t, 5.0, *p.ObservedWeight, 1e-9)
	assert.Equal(t, 57.0, *p.ObservedHeight)
}

func TestBuildSeries_NoObservations(t *testing.T) {
	series := BuildSeries(SeriesParams{
		Metric:     Weight,
		Gender:     Female,
		References: mustReferences(t),
	})
	assert.Equal(t, 6.0, series.CeilingMonths)
	assert.Len(t, series.Points, 7)
	assert.Equal(t, 0, series.Collisions)
}

func TestBuildSeries_WithoutReferences(t *testing.T) {
	series := BuildSeries(SeriesParams{
		Metric: Weight,
		Gender: Male,
		Observations: []Observation{
			{Date: NewDate(2023, time.February, 1), WeightKg: 4},
			{Date: NewDate(2023, time.March, 3), WeightKg: 5},
		},
	})

	require.Len(t, series.Points, 2)
	assert.Equal(t, 0.0, series.Points[0].AgeMonths)
	assert.Equal(t, 0.99, series.Points[1].AgeMonths)
}

func TestBuildSeries_Idempotent(t *testing.T) {
	birth := day(2022, time.November, 20)
	params := SeriesParams{
		Metric:    Weight,
		Gender:    Female,
		BirthDate: &birth,
		Observations: []Observation{
			{Date: NewDate(2023, time.May, 1), WeightKg: 6.1},
			{Date: NewDate(2024, time.February, 10), WeightKg: 9.3, HeightCm: 77},
		},
		References: mustReferences(t),
	}

	first := BuildSeries(params)
	second := BuildSeries(params)
	assert.Equal(t, first, second)
	assert.Equal(t, 24.0, first.CeilingMonths)
}

func TestBuildChart(t *testing.T) {
	birth := day(2023, time.January, 1)
	chart := BuildChart(Male, &birth, []Observation{
		{Date: NewDate(2023, time.August, 1), WeightKg: 8, HeightCm: 69},
	}, mustReferences(t), PolicyLastWriteWins)

	assert.Equal(t, 12.0, chart.CeilingMonths)
	assert.Equal(t, Weight, chart.Weight.Metric)
	assert.Equal(t, Height, chart.Height.Metric)
	assert.Equal(t, len(chart.Weight.Points), len(chart.Height.Points))

	w := findPoint(t, chart.Weight, AgeInMonths(birth, day(2023, time.August, 1)))
	require.NotNil(t, w.ObservedWeight)
	assert.Nil(t, w.P50)

	h := findPoint(t, chart.Height, 7)
	require.NotNil(t, h.P50)
	assert.Greater(t, *h.P50, 60.0)
}

func TestDisplaySeries_HeightReferences(t *testing.T) {
	series := Series{
		Metric: Height,
		Points: []ChartPoint{{AgeMonths: 0, P50: ptr(50.8), ObservedWeight: ptr(1)}},
	}

	display := DisplaySeries(series, units.Pounds, units.Inches)
	assert.InDelta(t, 20.0, *display.Points[0].P50, 1e-9)
	assert.InDelta(t, 2.20462, *display.Points[0].ObservedWeight, 1e-9)
	assert.Equal(t, 50.8, *series.Points[0].P50)
}

func TestParseMergePolicy(t *testing.T) {
	p, err := ParseMergePolicy("average")
	require.NoError(t, err)
	assert.Equal(t, PolicyAverage, p)

	p, err = ParseMergePolicy("last-write-wins")
	require.NoError(t, err)
	assert.Equal(t, PolicyLastWriteWins, p)

	_, err = ParseMergePolicy("max")
	assert.Error(t, err)
}

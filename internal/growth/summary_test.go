package growth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	s := Summarize(nil)
	assert.Nil(t, s.Latest)
	assert.Equal(t, TrendNone, s.WeightTrend)

	s = Summarize([]Observation{{ID: "a", Date: NewDate(2023, time.January, 5), WeightKg: 4}})
	require.NotNil(t, s.Latest)
	assert.Equal(t, "a", s.Latest.ID)
	assert.Nil(t, s.Previous)
	assert.Equal(t, TrendNone, s.WeightTrend)
}

func TestSummarize_Trend(t *testing.T) {
	cases := []struct {
		name   string
		before float64
		after  float64
		want   Trend
	}{
		{"gain", 4, 4.5, TrendUp},
		{"loss", 4.5, 4.2, TrendDown},
		{"same", 4.5, 4.5, TrendStable},
		{"tiny", 4.5, 4.505, TrendStable},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := Summarize([]Observation{
				{ID: "late", Date: NewDate(2023, time.March, 1), WeightKg: c.after},
				{ID: "early", Date: NewDate(2023, time.February, 1), WeightKg: c.before},
			})
			assert.Equal(t, c.want, s.WeightTrend)
			assert.Equal(t, "late", s.Latest.ID)
			assert.Equal(t, "early", s.Previous.ID)
		})
	}
}

func TestSummarize_SkipsHeightOnly(t *testing.T) {
	s := Summarize([]Observation{
		{ID: "w1", Date: NewDate(2023, time.February, 1), WeightKg: 4},
		{ID: "w2", Date: NewDate(2023, time.March, 1), WeightKg: 5},
		{ID: "h", Date: NewDate(2023, time.April, 1), HeightCm: 61},
	})

	assert.Equal(t, "h", s.Latest.ID)
	assert.Equal(t, "w1", s.Previous.ID)
	assert.Equal(t, TrendUp, s.WeightTrend)
}

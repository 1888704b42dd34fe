package export

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/2beens/babygrowth/internal/feeding"
	"github.com/2beens/babygrowth/internal/growth"
	"github.com/2beens/babygrowth/internal/i18n"
	"github.com/2beens/babygrowth/internal/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testObservations() []growth.Observation {
	return []growth.Observation{
		{ID: "o1", Date: growth.NewDate(2023, time.February, 1), WeightKg: 5, HeightCm: 58},
		{ID: "o2", Date: growth.NewDate(2023, time.March, 1), HeightCm: 60},
		{ID: "o3", Date: growth.NewDate(2023, time.April, 1), WeightKg: 6.1},
	}
}

func translator(t *testing.T, lang i18n.Language) *i18n.Translator {
	t.Helper()
	catalog, err := i18n.NewCatalog()
	require.NoError(t, err)
	return catalog.Translator(lang)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testObservations(), units.Kilograms, units.Centimeters))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Weight (kg),Height (cm)", lines[0])
	assert.Equal(t, "2023-02-01,5.00,58.0", lines[1])
	assert.Equal(t, "2023-03-01,,60.0", lines[2])
	assert.Equal(t, "2023-04-01,6.10,", lines[3])
}

func TestWriteCSV_DisplayUnits(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testObservations()[:1], units.Pounds, units.Inches))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Weight (lb),Height (in)", lines[0])
	assert.Equal(t, "2023-02-01,11.02,22.8", lines[1])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, units.Kilograms, units.Centimeters))
	assert.Equal(t, "Date,Weight (kg),Height (cm)\n", buf.String())
}

func TestWriteMilkCSV(t *testing.T) {
	entries := []feeding.MilkObservation{
		{ID: "m1", Timestamp: time.Date(2023, 2, 1, 8, 30, 0, 0, time.UTC), AmountMl: 120, Note: "morning, warm"},
		{ID: "m2", Timestamp: time.Date(2023, 2, 1, 12, 0, 0, 0, time.UTC), AmountMl: 90.5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMilkCSV(&buf, entries))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Timestamp,Amount (ml),Note", lines[0])
	assert.Equal(t, `2023-02-01T08:30:00Z,120,"morning, warm"`, lines[1])
	assert.Equal(t, "2023-02-01T12:00:00Z,90.5,", lines[2])
}

func testSeries(t *testing.T, metric growth.Metric) growth.Series {
	t.Helper()
	refs, err := growth.LoadReferences()
	require.NoError(t, err)

	birth := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	return growth.BuildSeries(growth.SeriesParams{
		Metric:       metric,
		Gender:       growth.Male,
		BirthDate:    &birth,
		Observations: testObservations(),
		References:   refs,
	})
}

func TestRenderChartPNG(t *testing.T) {
	for _, metric := range []growth.Metric{growth.Weight, growth.Height} {
		t.Run(string(metric), func(t *testing.T) {
			series := growth.DisplaySeries(testSeries(t, metric), units.Pounds, units.Inches)

			var buf bytes.Buffer
			err := RenderChartPNG(&buf, ChartParams{
				Series:     series,
				WeightUnit: units.Pounds,
				HeightUnit: units.Inches,
				Translator: translator(t, i18n.German),
			})
			require.NoError(t, err)

			img, err := png.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, chartWidth, img.Bounds().Dx())
			assert.Equal(t, chartHeight, img.Bounds().Dy())
		})
	}
}

func TestRenderChartPNG_SingleObservationNoReferences(t *testing.T) {
	series := growth.BuildSeries(growth.SeriesParams{
		Metric:       growth.Weight,
		Gender:       growth.Female,
		Observations: testObservations()[:1],
	})
	require.Len(t, series.Points, 1)

	var buf bytes.Buffer
	err := RenderChartPNG(&buf, ChartParams{
		Series:     series,
		WeightUnit: units.Kilograms,
		HeightUnit: units.Centimeters,
		Translator: translator(t, i18n.English),
	})
	require.NoError(t, err)
	assert.NotZero(t, buf.Len())
}

func TestRenderChartPNG_NothingToRender(t *testing.T) {
	series := growth.BuildSeries(growth.SeriesParams{Metric: growth.Weight, Gender: growth.Male})

	var buf bytes.Buffer
	err := RenderChartPNG(&buf, ChartParams{
		Series:     series,
		Translator: translator(t, i18n.English),
	})
	assert.ErrorIs(t, err, ErrNothingToRender)
	assert.Zero(t, buf.Len())
}

func TestWritePDF(t *testing.T) {
	tr := translator(t, i18n.French)
	series := testSeries(t, growth.Weight)

	var chartBuf bytes.Buffer
	require.NoError(t, RenderChartPNG(&chartBuf, ChartParams{
		Series:     series,
		WeightUnit: units.Kilograms,
		HeightUnit: units.Centimeters,
		Translator: tr,
	}))

	birth := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	observations := testObservations()

	var buf bytes.Buffer
	err := WritePDF(&buf, Report{
		Name:         "Zoé",
		Gender:       growth.Female,
		BirthDate:    &birth,
		Observations: observations,
		Summary:      growth.Summarize(observations),
		WeightUnit:   units.Kilograms,
		HeightUnit:   units.Centimeters,
		Translator:   tr,
		ChartPNG:     chartBuf.Bytes(),
		GeneratedAt:  time.Date(2023, 4, 2, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWritePDF_NoObservationsNoChart(t *testing.T) {
	var buf bytes.Buffer
	err := WritePDF(&buf, Report{
		Name:        "Baby",
		Gender:      growth.Male,
		Summary:     growth.Summarize(nil),
		WeightUnit:  units.Kilograms,
		HeightUnit:  units.Centimeters,
		Translator:  translator(t, i18n.English),
		GeneratedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestTrendKey(t *testing.T) {
	assert.Equal(t, "trendUp", trendKey(growth.TrendUp))
	assert.Equal(t, "trendDown", trendKey(growth.TrendDown))
	assert.Equal(t, "trendStable", trendKey(growth.TrendStable))
	assert.Equal(t, "trendNone", trendKey(growth.TrendNone))
	assert.Equal(t, "trendNone", trendKey(""))
}

package export

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/2beens/babygrowth/internal/growth"
	"github.com/2beens/babygrowth/internal/i18n"
	"github.com/2beens/babygrowth/internal/units"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	chartWidth  = 1024
	chartHeight = 600
)

var ErrNothingToRender = errors.New("nothing to render")

var (
	percentileColor = drawing.ColorFromHex("9e9e9e")
	medianColor     = drawing.ColorFromHex("616161")
	weightColor     = drawing.ColorFromHex("1e88e5")
	heightColor     = drawing.ColorFromHex("43a047")
)

type ChartParams struct {
	// Series must already be in display units, see growth.DisplaySeries.
	Series     growth.Series
	WeightUnit units.WeightUnit
	HeightUnit units.HeightUnit
	Translator *i18n.Translator
}

type line struct {
	name string
	xs   []float64
	ys   []float64
}

func (l *line) add(x float64, y *float64) {
	if y == nil {
		return
	}
	l.xs = append(l.xs, x)
	l.ys = append(l.ys, *y)
}

// RenderChartPNG draws the percentile curves (dashed) and the baby's own
// values (solid, with dots) of one metric. Absent values are skipped, so
// the baby's line connects across gaps.
func RenderChartPNG(w io.Writer, params ChartParams) error {
	tr := params.Translator
	s := params.Series

	percentiles := []*line{
		{name: "P3"}, {name: "P15"}, {name: "P50"}, {name: "P85"}, {name: "P97"},
	}
	baby := &line{name: tr.T("yourBaby")}
	for _, p := range s.Points {
		percentiles[0].add(p.AgeMonths, p.P3)
		percentiles[1].add(p.AgeMonths, p.P15)
		percentiles[2].add(p.AgeMonths, p.P50)
		percentiles[3].add(p.AgeMonths, p.P85)
		percentiles[4].add(p.AgeMonths, p.P97)
		if s.Metric == growth.Height {
			baby.add(p.AgeMonths, p.ObservedHeight)
		} else {
			baby.add(p.AgeMonths, p.ObservedWeight)
		}
	}

	unitLabel := units.WeightLabel(params.WeightUnit)
	babyColor := weightColor
	if s.Metric == growth.Height {
		unitLabel = units.HeightLabel(params.HeightUnit)
		babyColor = heightColor
	}

	var series []chart.Series
	minY, maxY := math.Inf(1), math.Inf(-1)
	track := func(ys []float64) {
		for _, y := range ys {
			minY = math.Min(minY, y)
			maxY = math.Max(maxY, y)
		}
	}

	for _, l := range percentiles {
		// go-chart rejects series without values
		if len(l.xs) == 0 {
			continue
		}
		track(l.ys)
		col := percentileColor
		if l.name == "P50" {
			col = medianColor
		}
		series = append(series, chart.ContinuousSeries{
			Name:    l.name,
			XValues: l.xs,
			YValues: l.ys,
			Style: chart.Style{
				StrokeColor:     col,
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 5.0},
			},
		})
	}

	if len(baby.xs) > 0 {
		track(baby.ys)
		xs, ys := baby.xs, baby.ys
		if len(xs) == 1 {
			// a single value still needs two points to be drawn
			xs, ys = []float64{xs[0], xs[0]}, []float64{ys[0], ys[0]}
		}
		series = append(series, chart.ContinuousSeries{
			Name:    baby.name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: babyColor,
				StrokeWidth: 2.5,
				DotWidth:    4,
				DotColor:    babyColor,
			},
		})
	}

	if len(series) == 0 {
		return ErrNothingToRender
	}

	if maxY-minY < 1 {
		maxY = minY + 1
	}
	pad := (maxY - minY) * 0.05

	title := tr.T("weight")
	if s.Metric == growth.Height {
		title = tr.T("height")
	}

	ch := chart.Chart{
		Title:  fmt.Sprintf("%s (%s) - %s", title, unitLabel, tr.T("whoStandards")),
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  tr.T("ageMonths"),
			Range: &chart.ContinuousRange{Min: 0, Max: s.CeilingMonths},
		},
		YAxis: chart.YAxis{
			Name:  unitLabel,
			Range: &chart.ContinuousRange{Min: math.Max(0, minY-pad), Max: maxY + pad},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s chart: %w", s.Metric, err)
	}
	return nil
}

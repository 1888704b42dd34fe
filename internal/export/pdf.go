package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/2beens/babygrowth/internal/growth"
	"github.com/2beens/babygrowth/internal/i18n"
	"github.com/2beens/babygrowth/internal/units"

	"github.com/go-pdf/fpdf"
)

// Report is everything that goes into the PDF export of one baby.
type Report struct {
	Name         string
	Gender       growth.Gender
	BirthDate    *time.Time
	Observations []growth.Observation
	Summary      growth.Summary
	WeightUnit   units.WeightUnit
	HeightUnit   units.HeightUnit
	Translator   *i18n.Translator
	// ChartPNG is optional; when set it is placed below the summary.
	ChartPNG    []byte
	GeneratedAt time.Time
}

const (
	pageMargin  = 15.0
	lineHeight  = 7.0
	chartImage  = "chart"
	tableColumn = 45.0
)

// WritePDF lays out a one baby report: header, latest values, the growth
// chart and the full observation table.
func WritePDF(w io.Writer, r Report) error {
	tr := r.Translator
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(tr.T("appTitle"), true)
	// core fonts are cp1252, accents in es/fr/de need translating
	txt := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, txt(tr.T("appTitle")), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, txt(tr.Tf("generatedOn", map[string]any{
		"Date": tr.FormatDate(r.GeneratedAt),
	})), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, lineHeight+1, txt(r.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, lineHeight, txt(tr.T(string(r.Gender))), "", 1, "L", false, 0, "")
	if r.BirthDate != nil {
		birth := fmt.Sprintf("%s: %s", tr.T("birthDate"), tr.FormatDate(*r.BirthDate))
		pdf.CellFormat(0, lineHeight, txt(birth), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	if latest := r.Summary.Latest; latest != nil {
		if latest.HasWeight() {
			v := fmt.Sprintf("%s: %s %s", tr.T("latestWeight"),
				units.DisplayWeight(latest.WeightKg, r.WeightUnit), units.WeightLabel(r.WeightUnit))
			pdf.CellFormat(0, lineHeight, txt(v), "", 1, "L", false, 0, "")
		}
		if latest.HasHeight() {
			v := fmt.Sprintf("%s: %s %s", tr.T("latestHeight"),
				units.DisplayHeight(latest.HeightCm, r.HeightUnit), units.HeightLabel(r.HeightUnit))
			pdf.CellFormat(0, lineHeight, txt(v), "", 1, "L", false, 0, "")
		}
	}
	pdf.CellFormat(0, lineHeight, txt(tr.T(trendKey(r.Summary.WeightTrend))), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if len(r.ChartPNG) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader(chartImage, opts, bytes.NewReader(r.ChartPNG))
		pageW, _ := pdf.GetPageSize()
		imgW := pageW - 2*pageMargin
		// width given, height keeps the aspect ratio
		pdf.ImageOptions(chartImage, pageMargin, pdf.GetY(), imgW, 0, true, opts, 0, "")
		pdf.Ln(4)
	}

	writeObservationTable(pdf, txt, r)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func writeObservationTable(pdf *fpdf.Fpdf, txt func(string) string, r Report) {
	tr := r.Translator
	header := []string{
		tr.T("date"),
		fmt.Sprintf("%s (%s)", tr.T("weight"), units.WeightLabel(r.WeightUnit)),
		fmt.Sprintf("%s (%s)", tr.T("height"), units.HeightLabel(r.HeightUnit)),
		tr.T("age"),
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, h := range header {
		pdf.CellFormat(tableColumn, lineHeight, txt(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	if len(r.Observations) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(tableColumn*float64(len(header)), lineHeight, txt(tr.T("noEntries")), "1", 1, "C", false, 0, "")
		return
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, o := range r.Observations {
		weight, height := "-", "-"
		if o.HasWeight() {
			weight = units.DisplayWeight(o.WeightKg, r.WeightUnit)
		}
		if o.HasHeight() {
			height = units.DisplayHeight(o.HeightCm, r.HeightUnit)
		}
		age := growth.AgeOf(r.BirthDate, r.Observations, o.Date.Time)
		cells := []string{
			tr.FormatDate(o.Date.Time),
			weight,
			height,
			fmt.Sprintf("%.2f", age),
		}
		for _, c := range cells {
			pdf.CellFormat(tableColumn, lineHeight, txt(c), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func trendKey(t growth.Trend) string {
	switch t {
	case growth.TrendUp:
		return "trendUp"
	case growth.TrendDown:
		return "trendDown"
	case growth.TrendStable:
		return "trendStable"
	default:
		return "trendNone"
	}
}

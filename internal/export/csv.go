// Package export renders a baby's history into downloadable formats:
// CSV tables, a PDF report and chart images.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/2beens/babygrowth/internal/feeding"
	"github.com/2beens/babygrowth/internal/growth"
	"github.com/2beens/babygrowth/internal/units"
)

// WriteCSV writes one row per observation, values in the display units.
// A metric that was not recorded leaves its cell empty.
func WriteCSV(w io.Writer, observations []growth.Observation, weightUnit units.WeightUnit, heightUnit units.HeightUnit) error {
	cw := csv.NewWriter(w)
	header := []string{
		"Date",
		fmt.Sprintf("Weight (%s)", units.WeightLabel(weightUnit)),
		fmt.Sprintf("Height (%s)", units.HeightLabel(heightUnit)),
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, o := range observations {
		weight, height := "", ""
		if o.HasWeight() {
			weight = units.DisplayWeight(o.WeightKg, weightUnit)
		}
		if o.HasHeight() {
			height = units.DisplayHeight(o.HeightCm, heightUnit)
		}
		if err := cw.Write([]string{o.Date.String(), weight, height}); err != nil {
			return fmt.Errorf("write csv row %s: %w", o.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteMilkCSV writes the feeding history, one row per feed.
func WriteMilkCSV(w io.Writer, entries []feeding.MilkObservation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Timestamp", "Amount (ml)", "Note"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			e.Timestamp.Format(time.RFC3339),
			strconv.FormatFloat(e.AmountMl, 'f', -1, 64),
			e.Note,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

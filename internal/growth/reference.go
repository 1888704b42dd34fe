package growth

import (
	"embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// WHO child growth standards, percentile tables (0-5 years).
// Length (0-24 months, lying) and height (24-60 months, standing)
// come as two separate bands.
//
//go:embed data/*.csv
var whoData embed.FS

const (
	weightForAgeBoys   = "data/tab_wfa_boys_p_0_5.csv"
	weightForAgeGirls  = "data/tab_wfa_girls_p_0_5.csv"
	lengthForAgeBoys   = "data/tab_lhfa_boys_p_0_2.csv"
	heightForAgeBoys   = "data/tab_lhfa_boys_p_2_5.csv"
	lengthForAgeGirls  = "data/tab_lhfa_girls_p_0_2.csv"
	heightForAgeGirls  = "data/tab_lhfa_girls_p_2_5.csv"
	referenceTolerance = 0.1
)

var ErrMalformedReference = errors.New("malformed reference data")

type ReferenceRow struct {
	Month float64 `json:"month"`
	P3    float64 `json:"p3"`
	P15   float64 `json:"p15"`
	P50   float64 `json:"p50"`
	P85   float64 `json:"p85"`
	P97   float64 `json:"p97"`
}

func (r ReferenceRow) values() [5]float64 {
	return [5]float64{r.P3, r.P15, r.P50, r.P85, r.P97}
}

// ReferenceTable is ordered by Month, strictly increasing.
type ReferenceTable []ReferenceRow

func (t ReferenceTable) Lookup(month float64) (ReferenceRow, bool) {
	i := sort.Search(len(t), func(i int) bool { return t[i].Month >= month })
	if i < len(t) && t[i].Month == month {
		return t[i], true
	}
	return ReferenceRow{}, false
}

// References holds one table per gender and metric.
type References struct {
	tables map[Gender]map[Metric]ReferenceTable
}

func NewReferences() *References {
	return &References{
		tables: map[Gender]map[Metric]ReferenceTable{},
	}
}

func (r *References) Set(gender Gender, metric Metric, table ReferenceTable) {
	if r.tables[gender] == nil {
		r.tables[gender] = map[Metric]ReferenceTable{}
	}
	r.tables[gender][metric] = table
}

func (r *References) Table(gender Gender, metric Metric) (ReferenceTable, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tables[gender][metric]
	return t, ok
}

func (r *References) Lookup(gender Gender, metric Metric, month float64) (ReferenceRow, bool) {
	t, ok := r.Table(gender, metric)
	if !ok {
		return ReferenceRow{}, false
	}
	return t.Lookup(month)
}

// LoadReferences parses the embedded WHO tables. Height tables are the
// merge of the length (0-24) and height (24-60) bands; at the shared
// boundary month the length band value is kept.
func LoadReferences() (*References, error) {
	refs := NewReferences()

	for _, src := range []struct {
		gender Gender
		weight string
		length string
		height string
	}{
		{Male, weightForAgeBoys, lengthForAgeBoys, heightForAgeBoys},
		{Female, weightForAgeGirls, lengthForAgeGirls, heightForAgeGirls},
	} {
		weight, err := loadEmbedded(src.weight)
		if err != nil {
			return nil, err
		}
		length, err := loadEmbedded(src.length)
		if err != nil {
			return nil, err
		}
		height, err := loadEmbedded(src.height)
		if err != nil {
			return nil, err
		}

		refs.Set(src.gender, Weight, weight)
		refs.Set(src.gender, Height, MergeBands(length, height))
	}

	if err := refs.Validate(); err != nil {
		return nil, err
	}
	return refs, nil
}

func loadEmbedded(name string) (ReferenceTable, error) {
	f, err := whoData.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	table, err := ParseWHOTable(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return table, nil
}

// MergeBands appends the rows of later that come after the last month of
// earlier. Overlapping months keep the earlier band's values.
func MergeBands(earlier, later ReferenceTable) ReferenceTable {
	merged := make(ReferenceTable, 0, len(earlier)+len(later))
	merged = append(merged, earlier...)
	last := -1.0
	if len(earlier) > 0 {
		last = earlier[len(earlier)-1].Month
	}
	for _, row := range later {
		if row.Month > last {
			merged = append(merged, row)
		}
	}
	return merged
}

// ParseWHOTable reads a WHO percentile table export: semicolon separated,
// decimal comma, with a header row naming at least Month, P3, P15, P50,
// P85 and P97. Other columns (L, M, S, P1...) are ignored.
func ParseWHOTable(r io.Reader) (ReferenceTable, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrMalformedReference, err)
	}

	columns := []string{"Month", "P3", "P15", "P50", "P85", "P97"}
	idx := make([]int, len(columns))
	for i, col := range columns {
		idx[i] = indexOf(header, col)
		if idx[i] < 0 {
			return nil, fmt.Errorf("%w: missing column %s", ErrMalformedReference, col)
		}
	}

	var table ReferenceTable
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedReference, line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		var vals [6]float64
		for i, col := range idx {
			if col >= len(record) {
				return nil, fmt.Errorf("%w: line %d: missing %s", ErrMalformedReference, line, columns[i])
			}
			v, err := parseDecimal(record[col])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %w", ErrMalformedReference, line, columns[i], err)
			}
			vals[i] = v
		}

		table = append(table, ReferenceRow{
			Month: vals[0],
			P3:    vals[1],
			P15:   vals[2],
			P50:   vals[3],
			P85:   vals[4],
			P97:   vals[5],
		})
	}

	return table, nil
}

func indexOf(header []string, col string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), col) {
			return i
		}
	}
	return -1
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
}

// Validate checks the table invariants for every gender and metric:
// months strictly increasing, p3 <= p15 <= p50 <= p85 <= p97 at each month,
// and each percentile curve non-decreasing over age.
func (r *References) Validate() error {
	var err error
	for gender, metrics := range r.tables {
		for metric, table := range metrics {
			err = multierr.Append(err, table.validate(fmt.Sprintf("%s/%s", gender, metric)))
		}
	}
	return err
}

func (t ReferenceTable) validate(name string) error {
	if len(t) == 0 {
		return fmt.Errorf("%s: empty table", name)
	}

	var err error
	for i, row := range t {
		v := row.values()
		for p := 1; p < len(v); p++ {
			if v[p] < v[p-1] {
				err = multierr.Append(err, fmt.Errorf("%s: month %v: percentile ordering broken: %v", name, row.Month, v))
				break
			}
		}
		if i == 0 {
			continue
		}
		prev := t[i-1]
		if row.Month <= prev.Month {
			err = multierr.Append(err, fmt.Errorf("%s: month %v does not follow %v", name, row.Month, prev.Month))
		}
		pv := prev.values()
		for p := range v {
			if v[p] < pv[p] {
				err = multierr.Append(err, fmt.Errorf("%s: month %v: curve decreases (%v < %v)", name, row.Month, v[p], pv[p]))
			}
		}
	}
	return err
}

// wireTable is the index-aligned JSON shape of one table.
type wireTable struct {
	Months []float64 `json:"months"`
	P3     []float64 `json:"p3"`
	P15    []float64 `json:"p15"`
	P50    []float64 `json:"p50"`
	P85    []float64 `json:"p85"`
	P97    []float64 `json:"p97"`
}

func (t ReferenceTable) toWire() wireTable {
	w := wireTable{}
	for _, row := range t {
		w.Months = append(w.Months, row.Month)
		w.P3 = append(w.P3, row.P3)
		w.P15 = append(w.P15, row.P15)
		w.P50 = append(w.P50, row.P50)
		w.P85 = append(w.P85, row.P85)
		w.P97 = append(w.P97, row.P97)
	}
	return w
}

func (w wireTable) toTable() (ReferenceTable, error) {
	n := len(w.Months)
	for _, col := range [][]float64{w.P3, w.P15, w.P50, w.P85, w.P97} {
		if len(col) != n {
			return nil, fmt.Errorf("%w: column length %d, expected %d", ErrMalformedReference, len(col), n)
		}
	}
	table := make(ReferenceTable, n)
	for i := range w.Months {
		table[i] = ReferenceRow{
			Month: w.Months[i],
			P3:    w.P3[i],
			P15:   w.P15[i],
			P50:   w.P50[i],
			P85:   w.P85[i],
			P97:   w.P97[i],
		}
	}
	return table, nil
}

// MarshalJSON writes {male|female: {weight|height: {months, p3..p97}}}.
func (r *References) MarshalJSON() ([]byte, error) {
	out := map[Gender]map[Metric]wireTable{}
	for gender, metrics := range r.tables {
		out[gender] = map[Metric]wireTable{}
		for metric, table := range metrics {
			out[gender][metric] = table.toWire()
		}
	}
	return json.Marshal(out)
}

// DecodeReferences reads the JSON dataset shape written by MarshalJSON.
func DecodeReferences(rd io.Reader) (*References, error) {
	var in map[Gender]map[Metric]wireTable
	if err := json.NewDecoder(rd).Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReference, err)
	}

	refs := NewReferences()
	for gender, metrics := range in {
		if !gender.IsValid() {
			return nil, fmt.Errorf("%w: unknown gender %q", ErrMalformedReference, gender)
		}
		for metric, wt := range metrics {
			if !metric.IsValid() {
				return nil, fmt.Errorf("%w: unknown metric %q", ErrMalformedReference, metric)
			}
			table, err := wt.toTable()
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", gender, metric, err)
			}
			refs.Set(gender, metric, table)
		}
	}
	return refs, nil
}

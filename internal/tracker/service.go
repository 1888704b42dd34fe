package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/2beens/babygrowth/internal/cache"
	"github.com/2beens/babygrowth/internal/export"
	"github.com/2beens/babygrowth/internal/feeding"
	"github.com/2beens/babygrowth/internal/growth"
	"github.com/2beens/babygrowth/internal/i18n"
	"github.com/2beens/babygrowth/internal/milestones"
	"github.com/2beens/babygrowth/internal/telemetry/metrics"
	"github.com/2beens/babygrowth/internal/telemetry/tracing"
	"github.com/2beens/babygrowth/internal/units"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=tracker_test

var ErrPersist = errors.New("persist state")

type stateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

type ServiceParams struct {
	Store       stateStore
	References  *growth.References
	Milestones  *milestones.Dataset
	Catalog     *i18n.Catalog
	ChartCache  cache.Cache
	MergePolicy growth.MergePolicy
	Metrics     *metrics.Manager
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service owns the application state. Mutations are serialized: each one
// runs on a clone, the clone is persisted, and only then swapped in.
type Service struct {
	mu       sync.RWMutex
	state    State
	revision uint64

	store       stateStore
	refs        *growth.References
	milestones  *milestones.Dataset
	catalog     *i18n.Catalog
	chartCache  cache.Cache
	mergePolicy growth.MergePolicy
	metrics     *metrics.Manager
	now         func() time.Time
}

func NewService(ctx context.Context, params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, errors.New("state store is nil")
	}
	if params.References == nil || params.Milestones == nil || params.Catalog == nil {
		return nil, errors.New("references, milestones and catalog are required")
	}
	if params.Metrics == nil {
		return nil, errors.New("metrics manager is nil")
	}

	state, err := params.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	state.Normalize()

	now := params.Now
	if now == nil {
		now = time.Now
	}

	s := &Service{
		state:       state,
		store:       params.Store,
		refs:        params.References,
		milestones:  params.Milestones,
		catalog:     params.Catalog,
		chartCache:  params.ChartCache,
		mergePolicy: params.MergePolicy,
		metrics:     params.Metrics,
		now:         now,
	}
	s.metrics.GaugeBabies.Set(float64(len(state.Babies)))

	log.Infof("tracker state loaded: %d babies, active [%s]", len(state.Babies), state.ActiveBabyID)
	return s, nil
}

func (s *Service) mutate(ctx context.Context, op string, fn func(st *State) error) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.tracker."+op)
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if err := fn(&next); err != nil {
		return err
	}

	start := time.Now()
	if err := s.store.Save(ctx, next); err != nil {
		s.metrics.CounterStateSaves.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %s: %w", ErrPersist, op, err)
	}
	s.metrics.HistStateSaveDuration.Observe(time.Since(start).Seconds())
	s.metrics.CounterStateSaves.WithLabelValues("ok").Inc()

	s.state = next
	s.revision++
	s.metrics.GaugeBabies.Set(float64(len(next.Babies)))
	return nil
}

// State returns a deep copy of the current state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Service) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Settings
}

type snapshot struct {
	baby     Baby
	settings Settings
	revision uint64
}

func (s *Service) snapshot(babyID string) (snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.state.Baby(babyID)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{baby: b, settings: s.state.Settings, revision: s.revision}, nil
}

func (s *Service) Baby(babyID string) (Baby, error) {
	snap, err := s.snapshot(babyID)
	return snap.baby, err
}

func (s *Service) AddBaby(ctx context.Context, in BabyInput) (Baby, error) {
	var added Baby
	err := s.mutate(ctx, "add_baby", func(st *State) error {
		var err error
		added, err = st.AddBaby(in)
		return err
	})
	if err != nil {
		return Baby{}, err
	}
	log.Debugf("baby added: [%s] %s", added.ID, added.Name)
	return added, nil
}

func (s *Service) UpdateBaby(ctx context.Context, babyID string, patch BabyPatch) (Baby, error) {
	var updated Baby
	err := s.mutate(ctx, "update_baby", func(st *State) error {
		var err error
		updated, err = st.UpdateBaby(babyID, patch)
		return err
	})
	return updated, err
}

func (s *Service) DeleteBaby(ctx context.Context, babyID string) error {
	return s.mutate(ctx, "delete_baby", func(st *State) error {
		return st.DeleteBaby(babyID)
	})
}

func (s *Service) SetActiveBaby(ctx context.Context, babyID string) error {
	return s.mutate(ctx, "set_active_baby", func(st *State) error {
		return st.SetActiveBaby(babyID)
	})
}

func (s *Service) AddObservation(ctx context.Context, babyID string, in ObservationInput) (growth.Observation, error) {
	return s.addObservation(ctx, babyID, func(*State) (ObservationPatch, error) {
		return ObservationPatch{Date: &in.Date, WeightKg: &in.WeightKg, HeightCm: &in.HeightCm, Note: &in.Note}, nil
	})
}

// AddObservationForm adds an observation typed in the display units. The
// units are read in the same mutation that stores it, so a concurrent
// settings change applies either fully before or fully after.
func (s *Service) AddObservationForm(ctx context.Context, babyID string, form ObservationForm) (growth.Observation, error) {
	return s.addObservation(ctx, babyID, func(st *State) (ObservationPatch, error) {
		return form.Resolve(st.Settings)
	})
}

func (s *Service) addObservation(ctx context.Context, babyID string, resolve func(st *State) (ObservationPatch, error)) (growth.Observation, error) {
	var added growth.Observation
	err := s.mutate(ctx, "add_observation", func(st *State) error {
		patch, err := resolve(st)
		if err != nil {
			return err
		}
		added, err = st.AddObservation(babyID, patch.input())
		return err
	})
	if err != nil {
		return growth.Observation{}, err
	}
	s.metrics.CounterObservations.WithLabelValues("growth", "add").Inc()
	return added, nil
}

func (s *Service) UpdateObservation(ctx context.Context, babyID, observationID string, patch ObservationPatch) (growth.Observation, error) {
	return s.updateObservation(ctx, babyID, observationID, func(*State) (ObservationPatch, error) {
		return patch, nil
	})
}

// UpdateObservationForm is AddObservationForm for an existing observation.
func (s *Service) UpdateObservationForm(ctx context.Context, babyID, observationID string, form ObservationForm) (growth.Observation, error) {
	return s.updateObservation(ctx, babyID, observationID, func(st *State) (ObservationPatch, error) {
		return form.Resolve(st.Settings)
	})
}

func (s *Service) updateObservation(ctx context.Context, babyID, observationID string, resolve func(st *State) (ObservationPatch, error)) (growth.Observation, error) {
	var updated growth.Observation
	err := s.mutate(ctx, "update_observation", func(st *State) error {
		patch, err := resolve(st)
		if err != nil {
			return err
		}
		updated, err = st.UpdateObservation(babyID, observationID, patch)
		return err
	})
	if err != nil {
		return growth.Observation{}, err
	}
	s.metrics.CounterObservations.WithLabelValues("growth", "update").Inc()
	return updated, nil
}

func (s *Service) DeleteObservation(ctx context.Context, babyID, observationID string) error {
	err := s.mutate(ctx, "delete_observation", func(st *State) error {
		return st.DeleteObservation(babyID, observationID)
	})
	if err != nil {
		return err
	}
	s.metrics.CounterObservations.WithLabelValues("growth", "delete").Inc()
	return nil
}

// AddMilkObservation stores a feed; a zero timestamp means now.
func (s *Service) AddMilkObservation(ctx context.Context, babyID string, in MilkInput) (MilkObservation, error) {
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now()
	}
	var added MilkObservation
	err := s.mutate(ctx, "add_milk", func(st *State) error {
		var err error
		added, err = st.AddMilkObservation(babyID, in)
		return err
	})
	if err != nil {
		return MilkObservation{}, err
	}
	s.metrics.CounterObservations.WithLabelValues("milk", "add").Inc()
	return added, nil
}

func (s *Service) UpdateMilkObservation(ctx context.Context, babyID, milkID string, patch MilkPatch) (MilkObservation, error) {
	var updated MilkObservation
	err := s.mutate(ctx, "update_milk", func(st *State) error {
		var err error
		updated, err = st.UpdateMilkObservation(babyID, milkID, patch)
		return err
	})
	if err != nil {
		return MilkObservation{}, err
	}
	s.metrics.CounterObservations.WithLabelValues("milk", "update").Inc()
	return updated, nil
}

func (s *Service) DeleteMilkObservation(ctx context.Context, babyID, milkID string) error {
	err := s.mutate(ctx, "delete_milk", func(st *State) error {
		return st.DeleteMilkObservation(babyID, milkID)
	})
	if err != nil {
		return err
	}
	s.metrics.CounterObservations.WithLabelValues("milk", "delete").Inc()
	return nil
}

type SettingsPatch struct {
	WeightUnit *units.WeightUnit
	HeightUnit *units.HeightUnit
	Language   *i18n.Language
}

// UpdateSettings applies the patch atomically: either every field is
// valid and stored, or nothing changes.
func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	var updated Settings
	err := s.mutate(ctx, "update_settings", func(st *State) error {
		if patch.WeightUnit != nil {
			if err := st.SetWeightUnit(*patch.WeightUnit); err != nil {
				return err
			}
		}
		if patch.HeightUnit != nil {
			if err := st.SetHeightUnit(*patch.HeightUnit); err != nil {
				return err
			}
		}
		if patch.Language != nil {
			if err := st.SetLanguage(*patch.Language); err != nil {
				return err
			}
		}
		updated = st.Settings
		return nil
	})
	return updated, err
}

// ChartView is a series in display units, ready for a charting client.
type ChartView struct {
	growth.Series
	WeightUnit units.WeightUnit `json:"weightUnit"`
	HeightUnit units.HeightUnit `json:"heightUnit"`
}

// CombinedChartView is both metrics on the shared age axis.
type CombinedChartView struct {
	Weight        growth.Series    `json:"weight"`
	Height        growth.Series    `json:"height"`
	CeilingMonths float64          `json:"ceilingMonths"`
	WeightUnit    units.WeightUnit `json:"weightUnit"`
	HeightUnit    units.HeightUnit `json:"heightUnit"`
}

func (s *Service) seriesFor(snap snapshot, metric growth.Metric) growth.Series {
	series := growth.BuildSeries(growth.SeriesParams{
		Metric:       metric,
		Gender:       snap.baby.Gender,
		BirthDate:    snap.baby.Birth(),
		Observations: snap.baby.Observations,
		References:   s.refs,
		Policy:       s.mergePolicy,
	})
	if series.Collisions > 0 {
		log.Debugf("chart [%s] %s: %d observations share an age", snap.baby.ID, metric, series.Collisions)
	}
	return growth.DisplaySeries(series, snap.settings.WeightUnit, snap.settings.HeightUnit)
}

func (s *Service) Chart(ctx context.Context, babyID string, metric growth.Metric) (_ ChartView, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "service.tracker.chart")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("metric", string(metric)))

	snap, err := s.snapshot(babyID)
	if err != nil {
		return ChartView{}, err
	}
	if !metric.IsValid() {
		return ChartView{}, fmt.Errorf("%w: metric %q", ErrInvalidInput, metric)
	}

	s.metrics.CounterChartsRendered.WithLabelValues(string(metric), "json").Inc()
	return ChartView{
		Series:     s.seriesFor(snap, metric),
		WeightUnit: snap.settings.WeightUnit,
		HeightUnit: snap.settings.HeightUnit,
	}, nil
}

func (s *Service) CombinedChart(ctx context.Context, babyID string) (_ CombinedChartView, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "service.tracker.combined_chart")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	snap, err := s.snapshot(babyID)
	if err != nil {
		return CombinedChartView{}, err
	}

	chart := growth.BuildChart(snap.baby.Gender, snap.baby.Birth(), snap.baby.Observations, s.refs, s.mergePolicy)
	s.metrics.CounterChartsRendered.WithLabelValues("combined", "json").Inc()
	return CombinedChartView{
		Weight:        growth.DisplaySeries(chart.Weight, snap.settings.WeightUnit, snap.settings.HeightUnit),
		Height:        growth.DisplaySeries(chart.Height, snap.settings.WeightUnit, snap.settings.HeightUnit),
		CeilingMonths: chart.CeilingMonths,
		WeightUnit:    snap.settings.WeightUnit,
		HeightUnit:    snap.settings.HeightUnit,
	}, nil
}

// ChartPNG renders one metric chart. Renders are cached per state revision,
// so any mutation makes earlier images unreachable.
func (s *Service) ChartPNG(ctx context.Context, babyID string, metric growth.Metric) (_ []byte, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "service.tracker.chart_png")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("metric", string(metric)))

	snap, err := s.snapshot(babyID)
	if err != nil {
		return nil, err
	}
	if !metric.IsValid() {
		return nil, fmt.Errorf("%w: metric %q", ErrInvalidInput, metric)
	}
	return s.chartPNG(snap, metric)
}

func (s *Service) chartPNG(snap snapshot, metric growth.Metric) ([]byte, error) {
	key := cache.Key{
		BabyID:     snap.baby.ID,
		Revision:   snap.revision,
		Kind:       "chart.png",
		Metric:     string(metric),
		WeightUnit: string(snap.settings.WeightUnit),
		HeightUnit: string(snap.settings.HeightUnit),
		Language:   string(snap.settings.Language),
	}
	if s.chartCache != nil {
		if img, ok := s.chartCache.Get(key); ok {
			s.metrics.CounterChartCacheHits.Inc()
			return img, nil
		}
	}

	var buf bytes.Buffer
	err := export.RenderChartPNG(&buf, export.ChartParams{
		Series:     s.seriesFor(snap, metric),
		WeightUnit: snap.settings.WeightUnit,
		HeightUnit: snap.settings.HeightUnit,
		Translator: s.catalog.Translator(snap.settings.Language),
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CounterChartsRendered.WithLabelValues(string(metric), "png").Inc()

	img := buf.Bytes()
	if s.chartCache != nil {
		s.chartCache.Set(key, img)
	}
	return img, nil
}

// SummaryView is the latest state of one baby, formatted for display.
type SummaryView struct {
	BabyID        string       `json:"babyId"`
	Name          string       `json:"name"`
	Gender        string       `json:"gender"`
	AgeMonths     *float64     `json:"ageMonths,omitempty"`
	AgeText       string       `json:"ageText,omitempty"`
	LatestDate    string       `json:"latestDate,omitempty"`
	LatestWeight  string       `json:"latestWeight,omitempty"`
	LatestHeight  string       `json:"latestHeight,omitempty"`
	WeightTrend   growth.Trend `json:"weightTrend"`
	TrendText     string       `json:"trendText"`
	Observations  int          `json:"observations"`
	MilkFeedCount int          `json:"milkFeedCount"`
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

func (s *Service) Summary(babyID string) (SummaryView, error) {
	snap, err := s.snapshot(babyID)
	if err != nil {
		return SummaryView{}, err
	}

	b := snap.baby
	tr := s.catalog.Translator(snap.settings.Language)
	summary := growth.Summarize(b.Observations)

	view := SummaryView{
		BabyID:        b.ID,
		Name:          b.Name,
		Gender:        tr.T(string(b.Gender)),
		WeightTrend:   summary.WeightTrend,
		TrendText:     tr.T(trendKey(summary.WeightTrend)),
		Observations:  len(b.Observations),
		MilkFeedCount: len(b.MilkObservations),
	}

	if birth := b.Birth(); birth != nil {
		age := growth.AgeInMonths(*birth, s.now())
		if age < 0 {
			age = 0
		}
		view.AgeMonths = &age
		view.AgeText = tr.Tf("ageInMonths", map[string]any{"Months": fmt.Sprintf("%.1f", age)})
	}

	if latest := summary.Latest; latest != nil {
		view.LatestDate = tr.FormatShortDate(latest.Date.Time)
		if latest.HasWeight() {
			view.LatestWeight = units.DisplayWeight(latest.WeightKg, snap.settings.WeightUnit) + " " +
				units.WeightLabel(snap.settings.WeightUnit)
		}
		if latest.HasHeight() {
			view.LatestHeight = units.DisplayHeight(latest.HeightCm, snap.settings.HeightUnit) + " " +
				units.HeightLabel(snap.settings.HeightUnit)
		}
	}
	return view, nil
}

type MilestonesView struct {
	AgeMonths int                `json:"ageMonths"`
	Current   milestones.Entry   `json:"current"`
	All       []milestones.Entry `json:"all"`
}

// Milestones picks the development stage for the baby's age in whole
// months. Without a birth date the earliest observation is used, and
// without either the baby is treated as a newborn.
func (s *Service) Milestones(babyID string) (MilestonesView, error) {
	snap, err := s.snapshot(babyID)
	if err != nil {
		return MilestonesView{}, err
	}

	age := 0
	if anchor, ok := growth.Anchor(snap.baby.Birth(), snap.baby.Observations); ok {
		age = growth.WholeMonthsBetween(anchor, s.now())
	}
	if age < 0 {
		age = 0
	}

	return MilestonesView{
		AgeMonths: age,
		Current:   s.milestones.ForAge(age),
		All:       s.milestones.Entries(),
	}, nil
}

type FeedingView struct {
	Days    []feeding.DailyTotal `json:"days"`
	TotalMl float64              `json:"totalMl"`
}

func (s *Service) Feeding(babyID string, days int) (FeedingView, error) {
	snap, err := s.snapshot(babyID)
	if err != nil {
		return FeedingView{}, err
	}

	totals := feeding.DailyTotals(snap.baby.MilkObservations, s.now(), days)
	view := FeedingView{Days: totals}
	for _, t := range totals {
		view.TotalMl += t.AmountMl
	}
	return view, nil
}

func (s *Service) References() *growth.References {
	return s.refs
}

// ExportCSV writes the growth history in the display units. Name is the
// baby's name, for the download file name.
func (s *Service) ExportCSV(ctx context.Context, babyID string, w io.Writer) (name string, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "service.tracker.export_csv")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	snap, err := s.snapshot(babyID)
	if err != nil {
		return "", err
	}
	if err := export.WriteCSV(w, snap.baby.Observations, snap.settings.WeightUnit, snap.settings.HeightUnit); err != nil {
		return "", err
	}
	s.metrics.CounterExports.WithLabelValues("csv").Inc()
	return snap.baby.Name, nil
}

func (s *Service) ExportMilkCSV(ctx context.Context, babyID string, w io.Writer) (name string, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "service.tracker.export_milk_csv")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	snap, err := s.snapshot(babyID)
	if err != nil {
		return "", err
	}
	if err := export.WriteMilkCSV(w, snap.baby.MilkObservations); err != nil {
		return "", err
	}
	s.metrics.CounterExports.WithLabelValues("milk_csv").Inc()
	return snap.baby.Name, nil
}

// ExportPDF writes the PDF report, with the weight chart when there is
// anything to draw.
func (s *Service) ExportPDF(ctx context.Context, babyID string, w io.Writer) (name string, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "service.tracker.export_pdf")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	snap, err := s.snapshot(babyID)
	if err != nil {
		return "", err
	}

	chartPNG, err := s.chartPNG(snap, growth.Weight)
	if err != nil {
		if !errors.Is(err, export.ErrNothingToRender) {
			return "", fmt.Errorf("render pdf chart: %w", err)
		}
		chartPNG = nil
	}

	b := snap.baby
	err = export.WritePDF(w, export.Report{
		Name:         b.Name,
		Gender:       b.Gender,
		BirthDate:    b.Birth(),
		Observations: b.Observations,
		Summary:      growth.Summarize(b.Observations),
		WeightUnit:   snap.settings.WeightUnit,
		HeightUnit:   snap.settings.HeightUnit,
		Translator:   s.catalog.Translator(snap.settings.Language),
		ChartPNG:     chartPNG,
		GeneratedAt:  s.now(),
	})
	if err != nil {
		return "", err
	}
	s.metrics.CounterExports.WithLabelValues("pdf").Inc()
	return b.Name, nil
}

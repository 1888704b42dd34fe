package tracker

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/2beens/babygrowth/internal/feeding"
	"github.com/2beens/babygrowth/internal/growth"
	"github.com/2beens/babygrowth/internal/i18n"
	"github.com/2beens/babygrowth/internal/units"

	"github.com/google/uuid"
)

// ActiveAlias can be used in place of a baby id to address the active baby.
const ActiveAlias = "active"

type MilkObservation = feeding.MilkObservation

var newID = uuid.NewString

type Baby struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Gender           growth.Gender        `json:"gender"`
	BirthDate        *growth.Date         `json:"birthDate,omitempty"`
	Observations     []growth.Observation `json:"observations"`
	MilkObservations []MilkObservation    `json:"milkObservations"`
}

// Birth returns the birth date as a time, nil when unknown.
func (b *Baby) Birth() *time.Time {
	if b.BirthDate == nil || b.BirthDate.IsZero() {
		return nil
	}
	t := b.BirthDate.Time
	return &t
}

func (b *Baby) clone() Baby {
	c := *b
	if b.BirthDate != nil {
		d := *b.BirthDate
		c.BirthDate = &d
	}
	c.Observations = append([]growth.Observation{}, b.Observations...)
	c.MilkObservations = append([]MilkObservation{}, b.MilkObservations...)
	return c
}

func (b *Baby) sortObservations() {
	sort.SliceStable(b.Observations, func(i, j int) bool {
		return b.Observations[i].Date.Before(b.Observations[j].Date.Time)
	})
}

func (b *Baby) observationIndex(id string) (int, error) {
	for i := range b.Observations {
		if b.Observations[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrObservationNotFound, id)
}

func (b *Baby) milkIndex(id string) (int, error) {
	for i := range b.MilkObservations {
		if b.MilkObservations[i].ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrObservationNotFound, id)
}

type Settings struct {
	WeightUnit units.WeightUnit `json:"weightUnit"`
	HeightUnit units.HeightUnit `json:"heightUnit"`
	Language   i18n.Language    `json:"language"`
}

func DefaultSettings() Settings {
	return Settings{
		WeightUnit: units.Kilograms,
		HeightUnit: units.Centimeters,
		Language:   i18n.English,
	}
}

// State is the whole persisted application state. It is mutated only
// through its named operations; all values are in storage units.
type State struct {
	Babies       []Baby   `json:"babies"`
	ActiveBabyID string   `json:"activeBabyId"`
	Settings     Settings `json:"settings"`
}

func DefaultState() State {
	return State{
		Babies:   []Baby{},
		Settings: DefaultSettings(),
	}
}

// Clone returns a deep copy.
func (s *State) Clone() State {
	c := State{
		ActiveBabyID: s.ActiveBabyID,
		Settings:     s.Settings,
		Babies:       make([]Baby, len(s.Babies)),
	}
	for i := range s.Babies {
		c.Babies[i] = s.Babies[i].clone()
	}
	return c
}

// Normalize fills missing settings and empty slices and restores the
// ordering of observations. Used after loading.
func (s *State) Normalize() {
	if s.Babies == nil {
		s.Babies = []Baby{}
	}
	def := DefaultSettings()
	if !s.Settings.WeightUnit.IsValid() {
		s.Settings.WeightUnit = def.WeightUnit
	}
	if !s.Settings.HeightUnit.IsValid() {
		s.Settings.HeightUnit = def.HeightUnit
	}
	if !s.Settings.Language.IsValid() {
		s.Settings.Language = def.Language
	}
	for i := range s.Babies {
		b := &s.Babies[i]
		if b.Observations == nil {
			b.Observations = []growth.Observation{}
		}
		if b.MilkObservations == nil {
			b.MilkObservations = []MilkObservation{}
		}
		b.sortObservations()
		feeding.SortByTimestamp(b.MilkObservations)
	}
	if s.ActiveBabyID != "" {
		if _, err := s.baby(s.ActiveBabyID); err != nil {
			s.ActiveBabyID = ""
		}
	}
	if s.ActiveBabyID == "" && len(s.Babies) > 0 {
		s.ActiveBabyID = s.Babies[0].ID
	}
}

func (s *State) baby(id string) (*Baby, error) {
	if id == ActiveAlias {
		id = s.ActiveBabyID
	}
	for i := range s.Babies {
		if s.Babies[i].ID == id {
			return &s.Babies[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBabyNotFound, id)
}

// Baby returns a copy of the baby with the given id (or ActiveAlias).
func (s *State) Baby(id string) (Baby, error) {
	b, err := s.baby(id)
	if err != nil {
		return Baby{}, err
	}
	return b.clone(), nil
}

func (s *State) ActiveBaby() (Baby, bool) {
	b, err := s.baby(s.ActiveBabyID)
	if err != nil {
		return Baby{}, false
	}
	return b.clone(), true
}

type BabyInput struct {
	Name      string
	Gender    growth.Gender
	BirthDate *growth.Date
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name empty", ErrInvalidInput)
	}
	return name, nil
}

// AddBaby creates a baby and makes it the active one.
func (s *State) AddBaby(in BabyInput) (Baby, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return Baby{}, err
	}
	if !in.Gender.IsValid() {
		return Baby{}, fmt.Errorf("%w: gender %q", ErrInvalidInput, in.Gender)
	}

	b := Baby{
		ID:               newID(),
		Name:             name,
		Gender:           in.Gender,
		Observations:     []growth.Observation{},
		MilkObservations: []MilkObservation{},
	}
	if in.BirthDate != nil && !in.BirthDate.IsZero() {
		d := *in.BirthDate
		b.BirthDate = &d
	}

	s.Babies = append(s.Babies, b)
	s.ActiveBabyID = b.ID
	return b.clone(), nil
}

type BabyPatch struct {
	Name           *string
	Gender         *growth.Gender
	BirthDate      *growth.Date
	ClearBirthDate bool
}

func (s *State) UpdateBaby(id string, patch BabyPatch) (Baby, error) {
	b, err := s.baby(id)
	if err != nil {
		return Baby{}, err
	}

	updated := b.clone()
	if patch.Name != nil {
		if updated.Name, err = validateName(*patch.Name); err != nil {
			return Baby{}, err
		}
	}
	if patch.Gender != nil {
		if !patch.Gender.IsValid() {
			return Baby{}, fmt.Errorf("%w: gender %q", ErrInvalidInput, *patch.Gender)
		}
		updated.Gender = *patch.Gender
	}
	switch {
	case patch.ClearBirthDate:
		updated.BirthDate = nil
	case patch.BirthDate != nil:
		d := *patch.BirthDate
		updated.BirthDate = &d
	}

	*b = updated
	return b.clone(), nil
}

// DeleteBaby removes the baby with all of its observations. If it was the
// active one, the first remaining baby becomes active.
func (s *State) DeleteBaby(id string) error {
	b, err := s.baby(id)
	if err != nil {
		return err
	}
	deletedID := b.ID

	babies := s.Babies[:0]
	for _, other := range s.Babies {
		if other.ID != deletedID {
			babies = append(babies, other)
		}
	}
	s.Babies = babies

	if s.ActiveBabyID == deletedID {
		s.ActiveBabyID = ""
		if len(s.Babies) > 0 {
			s.ActiveBabyID = s.Babies[0].ID
		}
	}
	return nil
}

func (s *State) SetActiveBaby(id string) error {
	b, err := s.baby(id)
	if err != nil {
		return err
	}
	s.ActiveBabyID = b.ID
	return nil
}

type ObservationInput struct {
	Date     growth.Date
	WeightKg float64
	HeightCm float64
	Note     string
}

func validMeasurement(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateObservation(o growth.Observation) error {
	if o.Date.IsZero() {
		return fmt.Errorf("%w: date missing", ErrInvalidInput)
	}
	if !validMeasurement(o.WeightKg) || !validMeasurement(o.HeightCm) {
		return fmt.Errorf("%w: weight and height must be non-negative numbers", ErrInvalidInput)
	}
	if !o.HasWeight() && !o.HasHeight() {
		return fmt.Errorf("%w: at least one of weight or height is required", ErrInvalidInput)
	}
	return nil
}

func (s *State) AddObservation(babyID string, in ObservationInput) (growth.Observation, error) {
	b, err := s.baby(babyID)
	if err != nil {
		return growth.Observation{}, err
	}

	o := growth.Observation{
		ID:       newID(),
		Date:     in.Date,
		WeightKg: in.WeightKg,
		HeightCm: in.HeightCm,
		Note:     strings.TrimSpace(in.Note),
	}
	if err := validateObservation(o); err != nil {
		return growth.Observation{}, err
	}

	b.Observations = append(b.Observations, o)
	b.sortObservations()
	return o, nil
}

// ObservationPatch holds the fields to change; nil fields are kept.
type ObservationPatch struct {
	Date     *growth.Date
	WeightKg *float64
	HeightCm *float64
	Note     *string
}

func (p ObservationPatch) input() ObservationInput {
	var in ObservationInput
	if p.Date != nil {
		in.Date = *p.Date
	}
	if p.WeightKg != nil {
		in.WeightKg = *p.WeightKg
	}
	if p.HeightCm != nil {
		in.HeightCm = *p.HeightCm
	}
	if p.Note != nil {
		in.Note = *p.Note
	}
	return in
}

// ObservationForm is an observation as the user typed it: Weight and Height
// are in the display units of whatever settings it is resolved under. An
// empty value means not recorded, nil leaves the value unchanged.
type ObservationForm struct {
	Date   *growth.Date
	Weight *string
	Height *string
	Note   *string
}

// Resolve converts the typed values to kg and cm.
func (f ObservationForm) Resolve(settings Settings) (ObservationPatch, error) {
	patch := ObservationPatch{Date: f.Date, Note: f.Note}
	if f.Weight != nil {
		kg, err := units.ParseWeightInput(*f.Weight, settings.WeightUnit)
		if err != nil {
			return ObservationPatch{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}
		patch.WeightKg = &kg
	}
	if f.Height != nil {
		cm, err := units.ParseHeightInput(*f.Height, settings.HeightUnit)
		if err != nil {
			return ObservationPatch{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}
		patch.HeightCm = &cm
	}
	return patch, nil
}

func (s *State) UpdateObservation(babyID, observationID string, patch ObservationPatch) (growth.Observation, error) {
	b, err := s.baby(babyID)
	if err != nil {
		return growth.Observation{}, err
	}
	i, err := b.observationIndex(observationID)
	if err != nil {
		return growth.Observation{}, err
	}

	o := b.Observations[i]
	if patch.Date != nil {
		o.Date = *patch.Date
	}
	if patch.WeightKg != nil {
		o.WeightKg = *patch.WeightKg
	}
	if patch.HeightCm != nil {
		o.HeightCm = *patch.HeightCm
	}
	if patch.Note != nil {
		o.Note = strings.TrimSpace(*patch.Note)
	}
	if err := validateObservation(o); err != nil {
		return growth.Observation{}, err
	}

	b.Observations[i] = o
	b.sortObservations()
	return o, nil
}

func (s *State) DeleteObservation(babyID, observationID string) error {
	b, err := s.baby(babyID)
	if err != nil {
		return err
	}
	i, err := b.observationIndex(observationID)
	if err != nil {
		return err
	}
	b.Observations = append(b.Observations[:i], b.Observations[i+1:]...)
	return nil
}

type MilkInput struct {
	Timestamp time.Time
	AmountMl  float64
	Note      string
}

func validateMilk(m MilkObservation) error {
	if m.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp missing", ErrInvalidInput)
	}
	if !validMeasurement(m.AmountMl) || m.AmountMl == 0 {
		return fmt.Errorf("%w: amount must be a positive number", ErrInvalidInput)
	}
	return nil
}

func (s *State) AddMilkObservation(babyID string, in MilkInput) (MilkObservation, error) {
	b, err := s.baby(babyID)
	if err != nil {
		return MilkObservation{}, err
	}

	m := MilkObservation{
		ID:        newID(),
		Timestamp: in.Timestamp,
		AmountMl:  in.AmountMl,
		Note:      strings.TrimSpace(in.Note),
	}
	if err := validateMilk(m); err != nil {
		return MilkObservation{}, err
	}

	b.MilkObservations = append(b.MilkObservations, m)
	feeding.SortByTimestamp(b.MilkObservations)
	return m, nil
}

type MilkPatch struct {
	Timestamp *time.Time
	AmountMl  *float64
	Note      *string
}

func (s *State) UpdateMilkObservation(babyID, milkID string, patch MilkPatch) (MilkObservation, error) {
	b, err := s.baby(babyID)
	if err != nil {
		return MilkObservation{}, err
	}
	i, err := b.milkIndex(milkID)
	if err != nil {
		return MilkObservation{}, err
	}

	m := b.MilkObservations[i]
	if patch.Timestamp != nil {
		m.Timestamp = *patch.Timestamp
	}
	if patch.AmountMl != nil {
		m.AmountMl = *patch.AmountMl
	}
	if patch.Note != nil {
		m.Note = strings.TrimSpace(*patch.Note)
	}
	if err := validateMilk(m); err != nil {
		return MilkObservation{}, err
	}

	b.MilkObservations[i] = m
	feeding.SortByTimestamp(b.MilkObservations)
	return m, nil
}

func (s *State) DeleteMilkObservation(babyID, milkID string) error {
	b, err := s.baby(babyID)
	if err != nil {
		return err
	}
	i, err := b.milkIndex(milkID)
	if err != nil {
		return err
	}
	b.MilkObservations = append(b.MilkObservations[:i], b.MilkObservations[i+1:]...)
	return nil
}

// SetWeightUnit changes the display unit only; stored values stay in kg.
func (s *State) SetWeightUnit(u units.WeightUnit) error {
	if !u.IsValid() {
		return fmt.Errorf("%w: weight unit %q", ErrInvalidInput, u)
	}
	s.Settings.WeightUnit = u
	return nil
}

// SetHeightUnit changes the display unit only; stored values stay in cm.
func (s *State) SetHeightUnit(u units.HeightUnit) error {
	if !u.IsValid() {
		return fmt.Errorf("%w: height unit %q", ErrInvalidInput, u)
	}
	s.Settings.HeightUnit = u
	return nil
}

func (s *State) SetLanguage(lang i18n.Language) error {
	if !lang.IsValid() {
		return fmt.Errorf("%w: language %q", ErrInvalidInput, lang)
	}
	s.Settings.Language = lang
	return nil
}

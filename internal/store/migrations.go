package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CurrentVersion is the document version written by Save.
const CurrentVersion = 2

var (
	ErrUnknownSchema      = errors.New("unrecognized state document")
	ErrUnsupportedVersion = errors.New("unsupported state version")
)

// migration turns a document of version N into version N+1.
type migration func(json.RawMessage) (json.RawMessage, error)

var migrations = map[int]migration{
	0: migrateV0ToV1,
	1: migrateV1ToV2,
}

// v0: single baby, as the first release stored it.
type v0Entry struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
	Height float64 `json:"height"`
}

type v0Document struct {
	Gender  string    `json:"gender"`
	Entries []v0Entry `json:"entries"`
}

// v1: multi baby, untagged.
type v1MilkEntry struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Amount    float64 `json:"amount"`
	Note      string  `json:"note,omitempty"`
}

type v1Baby struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Gender      string        `json:"gender"`
	BirthDate   string        `json:"birthDate,omitempty"`
	Entries     []v0Entry     `json:"entries"`
	MilkEntries []v1MilkEntry `json:"milkEntries"`
}

type v1Settings struct {
	WeightUnit string `json:"weightUnit,omitempty"`
	HeightUnit string `json:"heightUnit,omitempty"`
	Language   string `json:"language,omitempty"`
}

type v1Document struct {
	Babies       []v1Baby   `json:"babies"`
	ActiveBabyID string     `json:"activeBabyId"`
	Settings     v1Settings `json:"settings"`
}

// v2 renames the value fields after their storage unit and tags the version.
type v2Observation struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	WeightKg float64 `json:"weightKg"`
	HeightCm float64 `json:"heightCm"`
}

type v2MilkObservation struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	AmountMl  float64 `json:"amountMl"`
	Note      string  `json:"note,omitempty"`
}

type v2Baby struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Gender           string              `json:"gender"`
	BirthDate        string              `json:"birthDate,omitempty"`
	Observations     []v2Observation     `json:"observations"`
	MilkObservations []v2MilkObservation `json:"milkObservations"`
}

type v2Document struct {
	Version      int        `json:"version"`
	Babies       []v2Baby   `json:"babies"`
	ActiveBabyID string     `json:"activeBabyId"`
	Settings     v1Settings `json:"settings"`
}

// probe is enough of every shape to tell them apart.
type probe struct {
	Version *int            `json:"version"`
	Babies  json.RawMessage `json:"babies"`
	Entries json.RawMessage `json:"entries"`
	Gender  *string         `json:"gender"`
}

// detectVersion reads the version tag, or sniffs the untagged shapes.
func detectVersion(data json.RawMessage) (int, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSchema, err)
	}
	switch {
	case p.Version != nil:
		return *p.Version, nil
	case p.Babies != nil:
		return 1, nil
	case p.Entries != nil || p.Gender != nil:
		return 0, nil
	default:
		return 0, ErrUnknownSchema
	}
}

// migrate runs the chain from the document's version up to CurrentVersion.
// It returns the migrated document and the version it started from.
func migrate(data json.RawMessage) (json.RawMessage, int, error) {
	from, err := detectVersion(data)
	if err != nil {
		return nil, 0, err
	}
	if from > CurrentVersion || from < 0 {
		return nil, from, fmt.Errorf("%w: %d", ErrUnsupportedVersion, from)
	}

	for v := from; v < CurrentVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			return nil, from, fmt.Errorf("no migration from version %d", v)
		}
		if data, err = step(data); err != nil {
			return nil, from, fmt.Errorf("migrate v%d to v%d: %w", v, v+1, err)
		}
	}
	return data, from, nil
}

// migrateV0ToV1 wraps the single baby into a list, named "Baby", with an
// empty feeding history.
func migrateV0ToV1(data json.RawMessage) (json.RawMessage, error) {
	var doc v0Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	gender := doc.Gender
	if gender == "" {
		gender = "male"
	}
	entries := doc.Entries
	if entries == nil {
		entries = []v0Entry{}
	}

	baby := v1Baby{
		ID:          uuid.NewString(),
		Name:        "Baby",
		Gender:      gender,
		Entries:     entries,
		MilkEntries: []v1MilkEntry{},
	}
	return json.Marshal(v1Document{
		Babies:       []v1Baby{baby},
		ActiveBabyID: baby.ID,
		Settings: v1Settings{
			WeightUnit: "kg",
			HeightUnit: "cm",
			Language:   "en",
		},
	})
}

func migrateV1ToV2(data json.RawMessage) (json.RawMessage, error) {
	var doc v1Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	out := v2Document{
		Version:      2,
		Babies:       make([]v2Baby, 0, len(doc.Babies)),
		ActiveBabyID: doc.ActiveBabyID,
		Settings:     doc.Settings,
	}
	for _, b := range doc.Babies {
		nb := v2Baby{
			ID:               b.ID,
			Name:             b.Name,
			Gender:           b.Gender,
			BirthDate:        b.BirthDate,
			Observations:     make([]v2Observation, 0, len(b.Entries)),
			MilkObservations: make([]v2MilkObservation, 0, len(b.MilkEntries)),
		}
		for _, e := range b.Entries {
			nb.Observations = append(nb.Observations, v2Observation{
				ID:       e.ID,
				Date:     e.Date,
				WeightKg: e.Weight,
				HeightCm: e.Height,
			})
		}
		for _, m := range b.MilkEntries {
			nb.MilkObservations = append(nb.MilkObservations, v2MilkObservation{
				ID:        m.ID,
				Timestamp: m.Timestamp,
				AmountMl:  m.Amount,
				Note:      m.Note,
			})
		}
		out.Babies = append(out.Babies, nb)
	}
	return json.Marshal(out)
}

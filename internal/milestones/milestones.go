package milestones

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

//go:embed data/milestones.json
var milestonesJSON []byte

type Entry struct {
	Month           int      `json:"month"`
	Title           string   `json:"title"`
	Milestones      []string `json:"milestones"`
	Physical        []string `json:"physical"`
	Cognitive       []string `json:"cognitive"`
	SocialEmotional []string `json:"social_emotional"`
	Language        []string `json:"language"`
}

// Dataset is ordered by Month ascending.
type Dataset struct {
	entries []Entry
}

func Load() (*Dataset, error) {
	return Parse(milestonesJSON)
}

func Parse(data []byte) (*Dataset, error) {
	var doc struct {
		MonthlyDevelopment []Entry `json:"monthly_development"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal milestones: %w", err)
	}
	if len(doc.MonthlyDevelopment) == 0 {
		return nil, errors.New("milestones dataset is empty")
	}

	entries := doc.MonthlyDevelopment
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Month < entries[j].Month
	})
	return &Dataset{entries: entries}, nil
}

func (d *Dataset) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// ForAge returns the entry with the greatest month not past ageMonths.
// Babies younger than the first entry get the first entry.
func (d *Dataset) ForAge(ageMonths int) Entry {
	i := sort.Search(len(d.entries), func(i int) bool {
		return d.entries[i].Month > ageMonths
	})
	if i == 0 {
		return d.entries[0]
	}
	return d.entries[i-1]
}

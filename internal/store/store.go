package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/2beens/babygrowth/internal/telemetry/metrics"
	"github.com/2beens/babygrowth/internal/tracker"

	log "github.com/sirupsen/logrus"
)

const (
	// CurrentKey holds the versioned document.
	CurrentKey = "baby-growth-tracker-v2"
	// LegacyKey holds the untagged documents of older releases. It is
	// only ever read.
	LegacyKey = "baby-growth-tracker"
)

type document struct {
	Version int `json:"version"`
	tracker.State
}

// Store reads and writes the tracker state through a Backend.
type Store struct {
	backend Backend
	metrics *metrics.Manager
}

func New(backend Backend, metricsManager *metrics.Manager) *Store {
	return &Store{
		backend: backend,
		metrics: metricsManager,
	}
}

// ErrUnreadableState is returned by Snapshot when the stored document
// cannot be decoded.
var ErrUnreadableState = errors.New("stored state unreadable")

// loadRaw returns the current document, or the legacy one when there is no
// current document. ErrNotFound means neither exists.
func (s *Store) loadRaw(ctx context.Context) (data []byte, fromLegacy bool, err error) {
	data, err = s.backend.Load(ctx, CurrentKey)
	if errors.Is(err, ErrNotFound) {
		data, err = s.backend.Load(ctx, LegacyKey)
		fromLegacy = true
	}
	if err != nil {
		return nil, fromLegacy, err
	}
	return data, fromLegacy, nil
}

// Load returns the stored state. A missing current document is looked up
// under the legacy key and migrated; the result is then written under the
// current key. A document that cannot be read back is logged and replaced
// by the default state.
func (s *Store) Load(ctx context.Context) (tracker.State, error) {
	data, fromLegacy, err := s.loadRaw(ctx)
	if errors.Is(err, ErrNotFound) {
		log.Debugln("no stored state, starting empty")
		return tracker.DefaultState(), nil
	}
	if err != nil {
		return tracker.State{}, fmt.Errorf("load state: %w", err)
	}

	state, from, err := Decode(data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedVersion) {
			return tracker.State{}, err
		}
		log.Errorf("stored state unreadable, starting empty: %s", err)
		return tracker.DefaultState(), nil
	}

	if fromLegacy || from < CurrentVersion {
		if s.metrics != nil {
			s.metrics.CounterMigrations.WithLabelValues(strconv.Itoa(from)).Inc()
		}
		log.Infof("state migrated from version %d to %d", from, CurrentVersion)
		if err := s.Save(ctx, state); err != nil {
			log.Errorf("persist migrated state: %s", err)
		}
	}
	return state, nil
}

func (s *Store) Save(ctx context.Context, state tracker.State) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, CurrentKey, data); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Snapshot returns the stored document at the current version. It never
// writes, and fails with ErrUnreadableState instead of falling back to the
// default state, so a broken document is never backed up as an empty one.
func (s *Store) Snapshot(ctx context.Context) ([]byte, error) {
	data, _, err := s.loadRaw(ctx)
	if errors.Is(err, ErrNotFound) {
		return Encode(tracker.DefaultState())
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	state, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableState, err)
	}
	return Encode(state)
}

// Restore replaces the current document with data, which may be of any
// known version.
func (s *Store) Restore(ctx context.Context, data []byte) (tracker.State, error) {
	state, _, err := Decode(data)
	if err != nil {
		return tracker.State{}, fmt.Errorf("decode backup: %w", err)
	}
	if err := s.Save(ctx, state); err != nil {
		return tracker.State{}, err
	}
	return state, nil
}

func (s *Store) Backend() Backend {
	return s.backend
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Encode serializes state as a current version document.
func Encode(state tracker.State) ([]byte, error) {
	data, err := json.Marshal(document{Version: CurrentVersion, State: state})
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

// Decode migrates data to the current version and decodes it. It also
// returns the version the document was stored at.
func Decode(data []byte) (tracker.State, int, error) {
	migrated, from, err := migrate(data)
	if err != nil {
		return tracker.State{}, from, err
	}

	var doc document
	if err := json.Unmarshal(migrated, &doc); err != nil {
		return tracker.State{}, from, fmt.Errorf("decode v%d document: %w", CurrentVersion, err)
	}
	doc.State.Normalize()
	return doc.State, from, nil
}

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2beens/babygrowth/internal/telemetry/metrics"
	"github.com/2beens/babygrowth/pkg"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	backupFilePrefix = "state-"
	backupFileSuffix = ".json"
	// fixed width nanoseconds keep names unique and lexically ordered
	backupTimeLayout  = "20060102-150405.000000000"
	DefaultMaxBackups = 30
	backupTimeout     = time.Minute
)

type snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// BackupService writes timestamped snapshots of the state document into a
// directory, on a cron schedule, keeping the newest maxBackups files.
type BackupService struct {
	store      snapshotter
	dir        string
	maxBackups int
	metrics    *metrics.Manager
	now        func() time.Time
	cron       *cron.Cron

	mu       sync.Mutex
	lastTime time.Time
}

func NewBackupService(store snapshotter, dir string, maxBackups int, metricsManager *metrics.Manager) (*BackupService, error) {
	if err := pkg.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create backup dir %s: %w", dir, err)
	}
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &BackupService{
		store:      store,
		dir:        dir,
		maxBackups: maxBackups,
		metrics:    metricsManager,
		now:        time.Now,
	}, nil
}

// Start schedules RunOnce with a standard 5 field cron spec.
func (b *BackupService) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
		defer cancel()
		if _, err := b.RunOnce(ctx); err != nil {
			log.Errorf("scheduled state backup failed: %s", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}

	b.cron = c
	c.Start()
	log.Infof("state backups scheduled [%s] into %s", schedule, b.dir)
	return nil
}

// Stop waits for a running backup to finish.
func (b *BackupService) Stop() {
	if b.cron == nil {
		return
	}
	<-b.cron.Stop().Done()
}

// RunOnce writes one snapshot and prunes the old ones. It returns the path
// of the new file.
func (b *BackupService) RunOnce(ctx context.Context) (_ string, err error) {
	defer func() {
		if b.metrics == nil {
			return
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		b.metrics.CounterBackups.WithLabelValues(result).Inc()
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.store.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot state: %w", err)
	}

	path := filepath.Join(b.dir, backupFilePrefix+b.nextTime().Format(backupTimeLayout)+backupFileSuffix)
	if err := writeNewFile(path, data); err != nil {
		return "", fmt.Errorf("write backup %s: %w", path, err)
	}
	log.Debugf("state backup written: %s, %d bytes", path, len(data))

	if err := b.prune(); err != nil {
		log.Warnf("prune state backups: %s", err)
	}
	return path, nil
}

// nextTime returns the backup time, strictly after the previous one even
// when the clock has not moved.
func (b *BackupService) nextTime() time.Time {
	t := b.now().UTC()
	if !t.After(b.lastTime) {
		t = b.lastTime.Add(time.Nanosecond)
	}
	b.lastTime = t
	return t
}

// writeNewFile fails instead of overwriting an existing backup.
func writeNewFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return multierr.Append(err, f.Close())
	}
	return f.Close()
}

// List returns the backup file paths, oldest first.
func (b *BackupService) List() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupFilePrefix) || !strings.HasSuffix(name, backupFileSuffix) {
			continue
		}
		names = append(names, name)
	}
	// the timestamp layout sorts lexically
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(b.dir, n)
	}
	return paths, nil
}

func (b *BackupService) prune() error {
	paths, err := b.List()
	if err != nil {
		return err
	}
	for len(paths) > b.maxBackups {
		if err := os.Remove(paths[0]); err != nil {
			return err
		}
		log.Debugf("old state backup removed: %s", paths[0])
		paths = paths[1:]
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/2beens/babygrowth/pkg"

	"go.uber.org/multierr"
)

var _ Backend = (*DiskBackend)(nil)

// DiskBackend keeps one JSON file per key in a directory.
type DiskBackend struct {
	dir string
}

func NewDiskBackend(dir string) (*DiskBackend, error) {
	if err := pkg.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &DiskBackend{dir: dir}, nil
}

func (b *DiskBackend) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid key: %q", key)
	}
	return filepath.Join(b.dir, key+".json"), nil
}

func (b *DiskBackend) Load(_ context.Context, key string) ([]byte, error) {
	path, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Save writes to a temp file in the same dir and renames it over the
// target, so readers never see a partial document.
func (b *DiskBackend) Save(_ context.Context, key string, data []byte) (err error) {
	path, err := b.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return multierr.Append(fmt.Errorf("write temp file: %w", err), tmp.Close())
	}
	if err := tmp.Sync(); err != nil {
		return multierr.Append(fmt.Errorf("sync temp file: %w", err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

func (b *DiskBackend) Close() error {
	return nil
}

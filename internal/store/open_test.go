package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/babygrowth/internal/config"
)

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := OpenBackend(ctx, OpenBackendParams{Kind: config.BackendDisk, StateDir: filepath.Join(dir, "state")})
	require.NoError(t, err)
	assert.IsType(t, &DiskBackend{}, b)

	b, err = OpenBackend(ctx, OpenBackendParams{Kind: config.BackendSqlite, SqlitePath: filepath.Join(dir, "state.db")})
	require.NoError(t, err)
	assert.IsType(t, &SqliteBackend{}, b)
	require.NoError(t, b.Close())

	_, err = OpenBackend(ctx, OpenBackendParams{Kind: config.BackendRedis})
	assert.ErrorContains(t, err, "redis client not configured")
	_, err = OpenBackend(ctx, OpenBackendParams{Kind: config.BackendPostgres})
	assert.ErrorContains(t, err, "db pool not configured")
	_, err = OpenBackend(ctx, OpenBackendParams{Kind: "s3"})
	assert.ErrorContains(t, err, "unknown storage backend")
}

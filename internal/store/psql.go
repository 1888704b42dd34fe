package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var _ Backend = (*PsqlBackend)(nil)

const createAppStateTable = `
CREATE TABLE IF NOT EXISTS app_state
(
    key        VARCHAR PRIMARY KEY,
    data       JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PsqlBackend keeps documents in a JSONB column. The pool is owned by the
// caller.
type PsqlBackend struct {
	db *pgxpool.Pool
}

func NewPsqlBackend(ctx context.Context, db *pgxpool.Pool) (*PsqlBackend, error) {
	if _, err := db.Exec(ctx, createAppStateTable); err != nil {
		return nil, fmt.Errorf("create app_state table: %w", err)
	}
	log.Debugln("psql state backend ready")
	return &PsqlBackend{db: db}, nil
}

func (b *PsqlBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRow(ctx, `SELECT data FROM app_state WHERE key = $1;`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select state %s: %w", key, err)
	}
	return data, nil
}

func (b *PsqlBackend) Save(ctx context.Context, key string, data []byte) error {
	_, err := b.db.Exec(ctx, `
		INSERT INTO app_state (key, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at;`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert state %s: %w", key, err)
	}
	return nil
}

func (b *PsqlBackend) Close() error {
	return nil
}

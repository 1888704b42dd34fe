package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/2beens/babygrowth/internal/config"
)

type OpenBackendParams struct {
	Kind        string
	StateDir    string
	SqlitePath  string
	RedisClient *redis.Client
	DBPool      *pgxpool.Pool
}

// OpenBackend builds the backend named by Kind (one of the config backends).
func OpenBackend(ctx context.Context, params OpenBackendParams) (Backend, error) {
	switch params.Kind {
	case config.BackendDisk:
		return NewDiskBackend(params.StateDir)
	case config.BackendSqlite:
		return NewSqliteBackend(ctx, params.SqlitePath)
	case config.BackendRedis:
		if params.RedisClient == nil {
			return nil, errors.New("redis client not configured")
		}
		return NewRedisBackend(params.RedisClient), nil
	case config.BackendPostgres:
		if params.DBPool == nil {
			return nil, errors.New("db pool not configured")
		}
		return NewPsqlBackend(ctx, params.DBPool)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", params.Kind)
	}
}

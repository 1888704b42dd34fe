package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2beens/babygrowth/internal/cache"
	"github.com/2beens/babygrowth/internal/growth"

	"github.com/BurntSushi/toml"
)

const (
	BackendDisk     = "disk"
	BackendSqlite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`

	// state storage
	StorageBackend string `toml:"storage_backend"`
	StateDir       string `toml:"state_dir"`
	SqlitePath     string `toml:"sqlite_path"`

	// redis (state backend and export rate limiting)
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`

	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	CorsAllowedOrigins []string `toml:"cors_allowed_origins"`

	ExportRateLimitAllowedPerMin int `toml:"export_rate_limit_allowed_per_min"`

	// chart merge: "last-write-wins" or "average"
	MergePolicy string `toml:"merge_policy"`
	// chart PNG cache size, in MB, at least cache.MinSizeMB
	ChartCacheSizeMB int `toml:"chart_cache_size_mb"`

	// state backups, cron spec, empty disables
	BackupSchedule string `toml:"backup_schedule"`
	BackupDir      string `toml:"backup_dir"`
}

type Toml struct {
	Development *Config
	Production  *Config
	DockerDev   *Config `toml:"dockerdev"`
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	case "ddev", "dockerdev":
		cfg = t.DockerDev
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config block for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the block for env,
// with defaults filled in.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fromToml(&t, env)
}

// Parse is Load for an in-memory TOML document.
func Parse(env, data string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(data, &t); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fromToml(&t, env)
}

func fromToml(t *Toml, env string) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config for %s: %w", env, err)
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.StorageBackend == "" {
		c.StorageBackend = BackendDisk
	}
	if c.StateDir == "" {
		c.StateDir = "./data"
	}
	if c.MergePolicy == "" {
		c.MergePolicy = "last-write-wins"
	}
	if c.ChartCacheSizeMB == 0 {
		c.ChartCacheSizeMB = cache.MinSizeMB
	}
	if c.ExportRateLimitAllowedPerMin == 0 {
		c.ExportRateLimitAllowedPerMin = 10
	}
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendDisk:
	case BackendSqlite:
		if c.SqlitePath == "" {
			return errors.New("sqlite_path required for sqlite backend")
		}
	case BackendRedis:
		if c.RedisHost == "" {
			return errors.New("redis_host required for redis backend")
		}
	case BackendPostgres:
		if c.PostgresHost == "" || c.PostgresDBName == "" {
			return errors.New("postgres_host and postgres_db_name required for postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}

	if _, err := growth.ParseMergePolicy(c.MergePolicy); err != nil {
		return err
	}

	if c.ChartCacheSizeMB < cache.MinSizeMB {
		return fmt.Errorf("chart_cache_size_mb must be at least %d, got %d", cache.MinSizeMB, c.ChartCacheSizeMB)
	}

	if c.BackupSchedule != "" && c.BackupDir == "" {
		return errors.New("backup_dir required when backup_schedule is set")
	}
	return nil
}

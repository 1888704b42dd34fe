package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/babygrowth/internal/config"
	"github.com/2beens/babygrowth/internal/db"
	"github.com/2beens/babygrowth/internal/logging"
	"github.com/2beens/babygrowth/internal/store"
)

const usage = `usage: state_backup [flags] <command>

commands:
  snapshot   write the current state document to -file (stdout when empty)
  restore    replace the current state with the document in -file
  backup     write a timestamped snapshot into -dir, pruning old ones
  list       list the snapshots in -dir
`

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	file := flag.String("file", "", "snapshot file for snapshot / restore")
	dir := flag.String("dir", "", "backups dir for backup / list (defaults to backup_dir from config)")
	maxBackups := flag.Int("max", store.DefaultMaxBackups, "backups to keep")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	logging.Setup(logging.LoggerSetupParams{LogLevel: *logLevel})

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}
	if *dir == "" {
		*dir = cfg.BackupDir
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, closeAll, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open state store: %s", err)
	}
	defer closeAll()

	if err := run(ctx, flag.Arg(0), st, *file, *dir, *maxBackups); err != nil {
		log.Errorf("%s: %s", flag.Arg(0), err)
		closeAll()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, st *store.Store, file, dir string, maxBackups int) error {
	switch cmd {
	case "snapshot":
		data, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		if file == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return err
		}
		log.Infof("snapshot written to %s", file)
		return nil
	case "restore":
		if file == "" {
			return errors.New("-file is required")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		state, err := st.Restore(ctx, data)
		if err != nil {
			return err
		}
		log.Infof("restored %d babies from %s", len(state.Babies), file)
		return nil
	case "backup", "list":
		if dir == "" {
			return errors.New("-dir is required when backup_dir is not configured")
		}
		backups, err := store.NewBackupService(st, dir, maxBackups, nil)
		if err != nil {
			return err
		}
		if cmd == "backup" {
			path, err := backups.RunOnce(ctx)
			if err != nil {
				return err
			}
			log.Infof("backup written to %s", path)
			return nil
		}
		paths, err := backups.List()
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// openStore connects to the configured backend. Credentials come from the
// same env vars the service reads.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, func(), error) {
	var (
		rdb    *redis.Client
		dbPool *pgxpool.Pool
	)
	if cfg.StorageBackend == config.BackendRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: os.Getenv("BABYGROWTH_REDIS_PASS"),
		})
	}
	if cfg.StorageBackend == config.BackendPostgres {
		var err error
		dbPool, err = db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:     cfg.PostgresHost,
			DBPort:     cfg.PostgresPort,
			DBName:     cfg.PostgresDBName,
			DBUser:     os.Getenv("BABYGROWTH_DB_USER"),
			DBPassword: os.Getenv("BABYGROWTH_DB_PASS"),
		})
		if err != nil {
			return nil, nil, err
		}
	}

	backend, err := store.OpenBackend(ctx, store.OpenBackendParams{
		Kind:        cfg.StorageBackend,
		StateDir:    cfg.StateDir,
		SqlitePath:  cfg.SqlitePath,
		RedisClient: rdb,
		DBPool:      dbPool,
	})
	if err != nil {
		return nil, nil, err
	}

	st := store.New(backend, nil)
	closed := false
	closeAll := func() {
		if closed {
			return
		}
		closed = true
		if err := st.Close(); err != nil {
			log.Errorf("close store: %s", err)
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.Errorf("close redis: %s", err)
			}
		}
		if dbPool != nil {
			dbPool.Close()
		}
	}
	return st, closeAll, nil
}

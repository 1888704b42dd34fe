package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/babygrowth/internal/cache"
	"github.com/2beens/babygrowth/internal/config"
	"github.com/2beens/babygrowth/internal/db"
	"github.com/2beens/babygrowth/internal/growth"
	"github.com/2beens/babygrowth/internal/i18n"
	"github.com/2beens/babygrowth/internal/middleware"
	"github.com/2beens/babygrowth/internal/milestones"
	"github.com/2beens/babygrowth/internal/store"
	"github.com/2beens/babygrowth/internal/telemetry/metrics"
	"github.com/2beens/babygrowth/internal/telemetry/tracing"
	"github.com/2beens/babygrowth/internal/tracker"
	"github.com/2beens/babygrowth/pkg"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config         *config.Config
	store          *store.Store
	trackerService *tracker.Service
	backupService  *store.BackupService

	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	PostgresUser            string
	PostgresPassword        string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	s := &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
	}

	// redis serves the redis state backend and export rate limiting
	if cfg.RedisHost != "" {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: params.RedisPassword,
			DB:       0, // use default DB
		})
		rdbStatus := s.redisClient.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "babygrowth", s.redisClient)
	if err != nil {
		return nil, err
	}
	s.otelShutdown = otelShutdown

	var collectors []prometheus.Collector
	if cfg.StorageBackend == config.BackendPostgres {
		dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBUser:         params.PostgresUser,
			DBPassword:     params.PostgresPassword,
			TracingEnabled: params.HoneycombTracingEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}
		s.dbPool = dbPool
		collectors = append(collectors, pgxpoolprometheus.NewCollector(
			dbPool,
			map[string]string{"db_name": cfg.PostgresDBName},
		))
	}

	s.promRegistry = metrics.SetupPrometheus(collectors...)
	s.metricsManager = metrics.NewManager("babygrowth", "main", s.promRegistry)
	s.metricsManager.GaugeLifeSignal.Set(0)

	backend, err := store.OpenBackend(ctx, store.OpenBackendParams{
		Kind:        cfg.StorageBackend,
		StateDir:    cfg.StateDir,
		SqlitePath:  cfg.SqlitePath,
		RedisClient: s.redisClient,
		DBPool:      s.dbPool,
	})
	if err != nil {
		return nil, fmt.Errorf("new %s state backend: %w", cfg.StorageBackend, err)
	}
	s.store = store.New(backend, s.metricsManager)

	refs, err := growth.LoadReferences()
	if err != nil {
		return nil, fmt.Errorf("load who references: %w", err)
	}
	milestonesData, err := milestones.Load()
	if err != nil {
		return nil, fmt.Errorf("load milestones: %w", err)
	}
	catalog, err := i18n.NewCatalog()
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}
	mergePolicy, err := growth.ParseMergePolicy(cfg.MergePolicy)
	if err != nil {
		return nil, err
	}

	s.trackerService, err = tracker.NewService(ctx, tracker.ServiceParams{
		Store:       s.store,
		References:  refs,
		Milestones:  milestonesData,
		Catalog:     catalog,
		ChartCache:  cache.NewChartCache(cfg.ChartCacheSizeMB),
		MergePolicy: mergePolicy,
		Metrics:     s.metricsManager,
	})
	if err != nil {
		return nil, fmt.Errorf("new tracker service: %w", err)
	}

	if cfg.BackupSchedule != "" {
		s.backupService, err = store.NewBackupService(s.store, cfg.BackupDir, store.DefaultMaxBackups, s.metricsManager)
		if err != nil {
			return nil, fmt.Errorf("new backup service: %w", err)
		}
	}

	return s, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("babygrowth-router"))

	var exportMiddleware []mux.MiddlewareFunc
	if s.redisClient != nil {
		exportMiddleware = append(exportMiddleware, middleware.RateLimit(
			redis_rate.NewLimiter(s.redisClient),
			"export",
			s.config.ExportRateLimitAllowedPerMin,
			s.metricsManager,
		))
	} else {
		log.Warnln("redis not configured, exports are not rate limited")
	}

	trackerHandler := tracker.NewHandler(s.trackerService)
	trackerHandler.RegisterRoutes(r, exportMiddleware...)

	r.HandleFunc("/version", s.handleVersion).Methods("GET", "OPTIONS").Name("version")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.CorsAllowedOrigins))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	version := s.versionInfo
	if version == "" {
		version = "unknown"
	}
	pkg.WriteTextResponseOK(w, version)
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", otelhttp.NewHandler(
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
		"metrics",
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	if s.backupService != nil {
		if err := s.backupService.Start(s.config.BackupSchedule); err != nil {
			log.Errorf("failed to start state backups: %s", err)
		} else {
			log.Infof("state backups scheduled [%s] into [%s]", s.config.BackupSchedule, s.config.BackupDir)
		}
	}

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	// no more mutations from here on; one last backup if scheduled
	if s.backupService != nil {
		s.backupService.Stop()
		if path, err := s.backupService.RunOnce(ctx); err != nil {
			log.Errorf("final state backup: %s", err)
		} else {
			log.Debugf("final state backup: %s", path)
		}
	}

	if err := s.store.Close(); err != nil {
		log.Errorf("failed to close state store: %s", err)
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}

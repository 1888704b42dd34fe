package integration_testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/2beens/babygrowth/internal"
	"github.com/2beens/babygrowth/internal/config"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

const (
	serverPort = 9001
	serverHost = "localhost"
)

var serverEndpoint = fmt.Sprintf("http://%s:%d", serverHost, serverPort)

func getTestConfig(redisPort string) *config.Config {
	return &config.Config{
		Host:                         serverHost,
		Port:                         serverPort,
		StorageBackend:               config.BackendRedis,
		StateDir:                     filepath.Join(os.TempDir(), "babygrowth-it"),
		RedisHost:                    "localhost",
		RedisPort:                    redisPort,
		PrometheusMetricsHost:        serverHost,
		PrometheusMetricsPort:        "9101",
		ExportRateLimitAllowedPerMin: 10,
		MergePolicy:                  "average",
		ChartCacheSizeMB:             128,
	}
}

func redisSetup(pool *dockertest.Pool) (string, func(), error) {
	redisResource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Name:       "babygrowth-it-redis",
		Tag:        "6.2",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		return "", nil, fmt.Errorf("run redis: %s", err)
	}

	redisPort := redisResource.GetPort("6379/tcp")
	return redisPort, func() {
		redisResource.Close()
	}, nil
}

// serverSetup starts a server keeping its state in a fresh redis container.
func serverSetup(ctx context.Context) (*internal.Server, string, func(), error) {
	// uses a sensible default on windows (tcp/http) and linux/osx (socket)
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, "", nil, fmt.Errorf("could not create new dockertest pool: %s", err)
	}

	// uses pool to try to connect to Docker
	if err = pool.Client.Ping(); err != nil {
		return nil, "", nil, fmt.Errorf("could not ping dockertest pool: %s", err)
	}

	redisPort, redisCleanup, err := redisSetup(pool)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to setup redis: %s", err.Error())
	}

	cfg := getTestConfig(redisPort)
	var server *internal.Server
	// redis needs a moment before it takes connections
	err = pool.Retry(func() error {
		var err error
		server, err = internal.NewServer(
			ctx,
			internal.NewServerParams{
				Config:                  cfg,
				VersionInfo:             "test-version-info",
				RedisPassword:           "",
				HoneycombTracingEnabled: false,
			},
		)
		return err
	})
	if err != nil {
		redisCleanup()
		return nil, "", nil, err
	}

	server.Serve(cfg.Host, cfg.Port)

	return server, redisPort, func() {
		server.GracefulShutdown()
		redisCleanup()
	}, nil
}

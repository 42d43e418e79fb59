// Engagement-API serves the engagement feed and, unless told otherwise, keeps
// it fresh by ingesting from the providers on an interval.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/strykerhq/engagement/internal/api"
	"github.com/strykerhq/engagement/internal/cache"
	"github.com/strykerhq/engagement/internal/feed"
	"github.com/strykerhq/engagement/internal/ingest"
	"github.com/strykerhq/engagement/internal/logger"
	"github.com/strykerhq/engagement/internal/migrations"
	"github.com/strykerhq/engagement/internal/normalize"
	"github.com/strykerhq/engagement/internal/provider"
	"github.com/strykerhq/engagement/internal/relevance"
	"github.com/strykerhq/engagement/internal/sqlite"
	"github.com/strykerhq/engagement/internal/telemetry"
)

type config struct {
	Database string `env:"DATABASE, required"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	// When set, the feed cache lives in redis instead of in process
	RedisURL     string        `env:"REDIS_URL"`
	CacheSize    int           `env:"CACHE_SIZE, default=1024"`
	FeedCacheTTL time.Duration `env:"FEED_CACHE_TTL, default=5m"`

	// inprocess or none
	Scheduler string `env:"SCHEDULER, default=inprocess"`

	Server    api.ServerConfig
	Relevance relevance.Config
	Provider  provider.Config
	Ingest    ingest.Config
	Telemetry telemetry.Config
}

func main() {
	ctx := context.Background()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}
	if cfg.Scheduler != "inprocess" && cfg.Scheduler != "none" {
		log.Fatalf("unknown scheduler %q", cfg.Scheduler)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LoggerFormat))

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("error setting up telemetry: %s", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("error shutting down telemetry", "error", err)
		}
	}()

	dbx, err := sqlite.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("error opening database: %s", err)
	}
	defer dbx.Close()

	if err := migrations.Run(dbx); err != nil {
		log.Fatalf("error running migrations: %s", err)
	}
	repo := sqlite.New(dbx)

	feedCache, err := newCache(ctx, cfg)
	if err != nil {
		log.Fatalf("error creating feed cache: %s", err)
	}

	filter, err := relevance.Load(cfg.Relevance)
	if err != nil {
		log.Fatalf("error loading vocabulary: %s", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := feed.NewService(repo, feedCache, feed.WithTTL(cfg.FeedCacheTTL), feed.WithMetrics(feed.NewMetrics(reg)))
	srv := api.NewServer(cfg.Server, svc, reg)

	coord := ingest.NewCoordinator(
		repo,
		normalize.New(filter, time.Now),
		ingest.Pipelines(cfg.Ingest, provider.NewMicroblog(cfg.Provider), provider.NewVideo(cfg.Provider)),
		ingest.WithMetrics(ingest.NewMetrics(reg)),
	)

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})
	if cfg.Scheduler == "inprocess" {
		sched := ingest.NewScheduler(coord, ingest.Schedules(cfg.Ingest), cfg.Ingest.RunTimeout)
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return sched.Run(ctx)
		}, func(error) {
			cancel()
		})
	}

	err = g.Run()
	var sigErr run.SignalError
	if err != nil && !errors.As(err, &sigErr) {
		slog.Error("exiting", "error", err)
		os.Exit(1)
	}
	slog.Info("stopped", "reason", err)
}

func newCache(ctx context.Context, cfg config) (feed.Cache, error) {
	if cfg.RedisURL == "" {
		mem, err := cache.NewMemory(cfg.CacheSize, time.Now)
		if err != nil {
			return nil, err
		}
		return mem, nil
	}

	rdb, err := cache.DialRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return cache.NewRedis(rdb, ""), nil
}

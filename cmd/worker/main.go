// Engagement-Worker runs ingestion on Temporal schedules. Run it instead of
// the api's in-process scheduler (SCHEDULER=none on the api).
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/strykerhq/engagement/internal/ingest"
	"github.com/strykerhq/engagement/internal/logger"
	"github.com/strykerhq/engagement/internal/migrations"
	"github.com/strykerhq/engagement/internal/normalize"
	"github.com/strykerhq/engagement/internal/provider"
	"github.com/strykerhq/engagement/internal/relevance"
	"github.com/strykerhq/engagement/internal/sqlite"
	"github.com/strykerhq/engagement/internal/worker"
)

type config struct {
	Database     string `env:"DATABASE, required"`
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	Temporal  worker.Config
	Relevance relevance.Config
	Provider  provider.Config
	Ingest    ingest.Config
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LoggerFormat))

	dbx, err := sqlite.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("error opening database: %s", err)
	}
	defer dbx.Close()

	if err := migrations.Run(dbx); err != nil {
		log.Fatalf("error running migrations: %s", err)
	}

	filter, err := relevance.Load(cfg.Relevance)
	if err != nil {
		log.Fatalf("error loading vocabulary: %s", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	coord := ingest.NewCoordinator(
		sqlite.New(dbx),
		normalize.New(filter, time.Now),
		ingest.Pipelines(cfg.Ingest, provider.NewMicroblog(cfg.Provider), provider.NewVideo(cfg.Provider)),
		ingest.WithMetrics(ingest.NewMetrics(reg)),
	)

	metricsSrv := worker.NewMetricsServer(cfg.Temporal.MetricsPort, reg)
	go func() {
		slog.Info("serving metrics", "port", cfg.Temporal.MetricsPort)
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	defer metricsSrv.Close()

	// Retry until temporal is ready
	var temporalCli client.Client
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		c, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.TemporalHostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    slog.Default(),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		temporalCli = c

		return nil
	}); err != nil {
		log.Fatalln("Unable to create Temporal client:", err)
	}
	defer temporalCli.Close()

	if err := worker.EnsureNamespace(ctx, temporalCli.WorkflowService(), cfg.Temporal.Namespace); err != nil {
		log.Fatalf("error ensuring namespace: %s", err)
	}

	w, err := worker.NewWorker(ctx, coord, temporalCli, ingest.Schedules(cfg.Ingest))
	if err != nil {
		log.Fatalf("error creating worker: %s", err)
	}

	intChan := make(chan any)
	go func() {
		<-ctx.Done()
		close(intChan)
	}()

	if err := w.Run(intChan); err != nil {
		log.Fatalf("worker stopped: %s", err)
	}
}

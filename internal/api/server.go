// Package api serves the engagement feed over http.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/strykerhq/engagement/internal/feed"
	"github.com/strykerhq/engagement/internal/serverutil"
)

type (
	// Server answers feed reads. It never writes.
	Server struct {
		*http.Server

		feed FeedService
	}

	ServerConfig struct {
		Port       int    `env:"PORT, default=4444"`
		CorsOrigin string `env:"CORS_ORIGIN, default=*"`
	}

	// FeedService produces one page of the feed.
	FeedService interface {
		Feed(ctx context.Context, req feed.Request) (feed.Page, error)
	}
)

func NewServer(config ServerConfig, svc FeedService, gatherer prometheus.Gatherer) *Server {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}

	srvr := Server{
		feed: svc,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			Handler: otelhttp.NewHandler(handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsOrigin}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r), "engagement-api"),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.HandleFuncE("/health", srvr.getHealth).Methods(http.MethodGet)
	r.HandleFuncE("/feed", srvr.getFeed).Methods(http.MethodGet)
	r.HandleFuncE("/api/v1/engagement/feed", srvr.getFeed).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	slog.Debug("configured api server", "port", config.Port)

	return &srvr
}

func (s Server) getHealth(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

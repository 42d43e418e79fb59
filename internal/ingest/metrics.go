package ingest

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	runs     *prometheus.CounterVec
	posts    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engagement_ingest_runs_total",
			Help: "Ingestion runs by platform and outcome.",
		}, []string{"platform", "outcome"}),
		posts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "engagement_ingest_posts_total",
			Help: "Posts written by ingestion runs, by platform and whether they were new.",
		}, []string{"platform", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engagement_ingest_run_duration_seconds",
			Help:    "Wall time of ingestion runs.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"platform"}),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrFetch):
		return "fetch_error"
	case errors.Is(err, ErrPersist):
		return "persist_error"
	}

	return "error"
}

func (m *Metrics) observeRun(sum Summary, err error, took time.Duration) {
	if m == nil {
		return
	}

	platform := string(sum.Platform)
	m.runs.WithLabelValues(platform, outcome(err)).Inc()
	m.duration.WithLabelValues(platform).Observe(took.Seconds())
	if err == nil {
		m.posts.WithLabelValues(platform, "inserted").Add(float64(sum.Inserted))
		m.posts.WithLabelValues(platform, "updated").Add(float64(sum.Updated))
	}
}

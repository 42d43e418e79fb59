// Package provider holds the adapters for the external search APIs. Each one
// performs a single search call and hands back the raw JSON body untouched.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config is shared by every provider.
type Config struct {
	RapidAPIKey   string        `env:"RAPID_API_KEY"`
	TwitterHost   string        `env:"TWITTER_HOST, default=twitter241.p.rapidapi.com"`
	YouTubeAPIKey string        `env:"YOUTUBE_API_KEY"`
	Timeout       time.Duration `env:"PROVIDER_TIMEOUT, default=10s"`
	Retries       uint64        `env:"PROVIDER_RETRIES, default=2"`
}

// ErrNoCredentials is returned by a search when its API key is not configured.
var ErrNoCredentials = errors.New("provider api key not configured")

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s search returned status %d", e.Provider, e.Code)
}

// Retryable reports whether the provider asked us to come back later.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// Responses above this are cut off; a search page is far smaller.
const maxBodySize = 8 << 20

const defaultBackoff = 500 * time.Millisecond

// Option tweaks a provider, mostly for tests.
type Option func(*base)

// WithBaseURL points the provider at another host, such as a test server.
func WithBaseURL(u string) Option {
	return func(b *base) {
		b.baseURL = u
	}
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		b.client = c
	}
}

// WithBackoff sets the first retry delay. Later delays grow along a Fibonacci sequence.
func WithBackoff(d time.Duration) Option {
	return func(b *base) {
		b.backoff = d
	}
}

// base is the transport shared by every provider.
type base struct {
	name    string
	client  *http.Client
	baseURL string
	retries uint64
	backoff time.Duration
}

func newBase(name, baseURL string, cfg Config, opts ...Option) base {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b := base{
		name: name,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: baseURL,
		retries: cfg.Retries,
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(&b)
	}

	return b
}

// Performs the request built by newReq, retrying throttling, server errors and
// network failures a bounded number of times.
func (b base) get(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var (
		body    []byte
		attempt int
	)
	backoff := retry.WithMaxRetries(b.retries, retry.NewFibonacci(b.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		req, err := newReq(ctx)
		if err != nil {
			return fmt.Errorf("error building %s request: %w", b.name, err)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			slog.WarnContext(ctx, "provider request failed", "provider", b.name, "attempt", attempt, "error", err)
			return retry.RetryableError(fmt.Errorf("error calling %s: %w", b.name, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			serr := &StatusError{Provider: b.name, Code: resp.StatusCode}
			if serr.Retryable() {
				slog.WarnContext(ctx, "provider throttled or failing", "provider", b.name, "attempt", attempt, "status", resp.StatusCode)
				return retry.RetryableError(serr)
			}
			return serr
		}

		byts, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("error reading %s response: %w", b.name, err))
		}
		body = byts

		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		RapidAPIKey:   "rapid-key",
		TwitterHost:   "twitter241.p.rapidapi.com",
		YouTubeAPIKey: "yt-key",
		Timeout:       time.Second,
		Retries:       2,
	}
}

func TestMicroblog_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search-v2", r.URL.Path)
		assert.Equal(t, "Latest", r.URL.Query().Get("type"))
		assert.Equal(t, "20", r.URL.Query().Get("count"))
		assert.Equal(t, "#USACricket OR #T20Cricket", r.URL.Query().Get("query"))
		assert.Equal(t, "rapid-key", r.Header.Get("x-rapidapi-key"))
		assert.Equal(t, "twitter241.p.rapidapi.com", r.Header.Get("x-rapidapi-host"))
		w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	m := NewMicroblog(testConfig(), WithBaseURL(srv.URL))
	body, err := m.Search(context.Background(), "#USACricket OR #T20Cricket", 20)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{}}`, string(body))
}

func TestVideo_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/youtube/v3/search", r.URL.Path)
		assert.Equal(t, "snippet", q.Get("part"))
		assert.Equal(t, "video", q.Get("type"))
		assert.Equal(t, "date", q.Get("order"))
		assert.Equal(t, "10", q.Get("maxResults"))
		assert.Equal(t, "cricket highlights", q.Get("q"))
		assert.Equal(t, "yt-key", q.Get("key"))
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	v := NewVideo(testConfig(), WithBaseURL(srv.URL))
	body, err := v.Search(context.Background(), "cricket highlights", 10)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(body))
}

func TestSearch_RetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	v := NewVideo(testConfig(), WithBaseURL(srv.URL), WithBackoff(time.Millisecond))
	_, err := v.Search(context.Background(), "cricket", 5)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearch_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := NewVideo(testConfig(), WithBaseURL(srv.URL), WithBackoff(time.Millisecond))
	_, err := v.Search(context.Background(), "cricket", 5)

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadGateway, serr.Code)
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
}

func TestSearch_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	m := NewMicroblog(testConfig(), WithBaseURL(srv.URL), WithBackoff(time.Millisecond))
	_, err := m.Search(context.Background(), "cricket", 5)

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusForbidden, serr.Code)
	assert.False(t, serr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Retries = 0
	v := NewVideo(cfg, WithBaseURL(srv.URL), WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	_, err := v.Search(context.Background(), "cricket", 5)
	assert.Error(t, err)
}

func TestSearch_NoCredentials(t *testing.T) {
	_, err := NewMicroblog(Config{TwitterHost: "example.com"}).Search(context.Background(), "cricket", 1)
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = NewVideo(Config{}).Search(context.Background(), "cricket", 1)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

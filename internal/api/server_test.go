package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strykerhq/engagement/internal/cache"
	"github.com/strykerhq/engagement/internal/engagement"
	"github.com/strykerhq/engagement/internal/feed"
	"github.com/strykerhq/engagement/internal/migrations"
	"github.com/strykerhq/engagement/internal/sqlite"
)

var base = time.Date(2025, 7, 13, 12, 0, 0, 0, time.UTC)

type feedResp struct {
	Data       []engagement.Post `json:"data"`
	Pagination struct {
		NextCursor *string `json:"next_cursor"`
	} `json:"pagination"`
}

func newTestServer(t *testing.T, posts ...engagement.Post) *httptest.Server {
	t.Helper()

	dbx, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "engagement.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))
	repo := sqlite.New(dbx)

	err = repo.WithTx(context.Background(), func(tx engagement.PostTx) error {
		for _, p := range posts {
			if err := tx.Insert(context.Background(), &p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	mem, err := cache.NewMemory(64, nil)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc := feed.NewService(repo, mem, feed.WithMetrics(feed.NewMetrics(reg)))

	srv := httptest.NewServer(NewServer(ServerConfig{CorsOrigin: "*"}, svc, reg).Handler)
	t.Cleanup(srv.Close)

	return srv
}

func videoPost(id string, published time.Time) engagement.Post {
	title := "Cricket highlights " + id
	return engagement.Post{
		Source:      engagement.SourceVideo,
		SourceID:    id,
		Title:       &title,
		URL:         "https://www.youtube.com/watch?v=" + id,
		Media:       []engagement.Media{{Type: engagement.MediaEmbed, URL: "https://www.youtube.com/embed/" + id}},
		Author:      engagement.Author{Name: "MLC"},
		PublishedAt: published,
		FetchedAt:   base,
	}
}

func getFeed(t *testing.T, srv *httptest.Server, path string) (int, feedResp) {
	t.Helper()

	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body feedResp
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}

	return resp.StatusCode, body
}

func TestGetFeed_Pages(t *testing.T) {
	srv := newTestServer(t,
		videoPost("v1", base.Add(2*time.Hour)),
		videoPost("v2", base.Add(time.Hour)),
		videoPost("v3", base),
		engagement.Post{
			Source:      engagement.SourceMicroblog,
			SourceID:    "m1",
			URL:         "https://twitter.com/i/status/m1",
			Author:      engagement.Author{Name: "Unknown"},
			PublishedAt: base.Add(3 * time.Hour),
			FetchedAt:   base,
		},
	)

	code, page := getFeed(t, srv, "/feed?source=video&limit=2")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "v1", page.Data[0].SourceID)
	assert.Equal(t, "v2", page.Data[1].SourceID)
	require.NotNil(t, page.Pagination.NextCursor)
	assert.Equal(t, engagement.FormatTime(page.Data[1].PublishedAt), *page.Pagination.NextCursor)

	code, page = getFeed(t, srv, "/feed?source=video&limit=2&cursor="+*page.Pagination.NextCursor)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "v3", page.Data[0].SourceID)
	assert.Nil(t, page.Pagination.NextCursor)
}

func TestGetFeed_AliasesAndDefaults(t *testing.T) {
	srv := newTestServer(t, videoPost("v1", base))

	code, page := getFeed(t, srv, "/api/v1/engagement/feed?source=youtube")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, page.Data, 1)

	code, page = getFeed(t, srv, "/api/v1/engagement/feed?source=twitter")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, page.Data)

	code, page = getFeed(t, srv, "/feed")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, page.Data, 1)
	assert.Nil(t, page.Pagination.NextCursor)
}

func TestGetFeed_UnreadableCursorIsIgnored(t *testing.T) {
	srv := newTestServer(t, videoPost("v1", base))

	code, page := getFeed(t, srv, "/feed?cursor=yesterday")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, page.Data, 1)

	// The cache is neither read nor written for it.
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	byts, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(byts), "engagement_feed_cache_requests_total{")
}

func TestGetFeed_BadQuery(t *testing.T) {
	srv := newTestServer(t)

	for _, q := range []string{"limit=0", "limit=51", "limit=ten", "source=podcast"} {
		resp, err := http.Get(srv.URL + "/feed?" + q)
		require.NoError(t, err)

		var body struct {
			Status  int `json:"status"`
			Details []struct {
				Field string `json:"field"`
			} `json:"details"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		assert.Equal(t, http.StatusBadRequest, body.Status, q)
		assert.Len(t, body.Details, 1, q)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, videoPost("v1", base))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, map[string]string{"status": "ok"}, health)

	// One miss to populate the counter.
	getFeed(t, srv, "/feed")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	byts, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(byts), `engagement_feed_cache_requests_total{result="miss"} 1`)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/feed", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://fans.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

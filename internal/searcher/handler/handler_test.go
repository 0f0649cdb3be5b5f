package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/highlight"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/store"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/view"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/ratelimit"
)

type fakeBackend struct {
	total int32
	err   error
}

func (b *fakeBackend) Execute(_ context.Context, req *proto.SearchRequest) (*proto.SearchResponse, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &proto.SearchResponse{
		Args:       req.Args,
		PageNumber: req.PageNumber,
		Total:      b.total,
		Rows: []proto.ResultRow{{
			Key:     fmt.Sprintf("p%d", req.PageNumber),
			Preview: "<p>God is love</p>",
		}},
	}, nil
}

type fakeCache struct{ invalidated bool }

func (c *fakeCache) Stats() (int64, int64) { return 3, 1 }

func (c *fakeCache) Invalidate(context.Context) (int64, error) {
	c.invalidated = true
	return 7, nil
}

type server struct {
	http.Handler
	pages *store.Memory
}

func newServer(t *testing.T, backend *fakeBackend, cache handler.PageCache) *server {
	t.Helper()
	return newServerWith(t, backend, cache, router.Options{Timeout: 5 * time.Second})
}

func newServerWith(t *testing.T, backend *fakeBackend, cache handler.PageCache, opts router.Options) *server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	reg := view.NewRegistry(ctx, 10)
	t.Cleanup(func() {
		cancel()
		reg.Shutdown()
	})

	engine, err := highlight.New(highlight.ClassMarker{Class: "secondaryBackground"}, 0)
	require.NoError(t, err)

	pages := store.NewMemory()
	paging := config.Default().Paging
	paging.PageSize = 20
	h := handler.New(handler.Deps{
		Registry:   reg,
		Dispatcher: executor.NewDispatcher(backend, nil, nil),
		Engine:     engine,
		Cache:      cache,
		Store:      pages,
		Paging:     paging,
	})
	return &server{Handler: router.New(h, opts), pages: pages}
}

func (s *server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) view.Snapshot {
	t.Helper()
	var snap view.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func TestViewLifecycle(t *testing.T) {
	srv := newServer(t, &fakeBackend{total: 45}, nil)

	rec := srv.do(t, http.MethodPost, "/api/v1/views", `{"query":"t=love in (KJV)"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	created := decodeSnapshot(t, rec)
	assert.Equal(t, "Showing 45", created.Label)
	assert.Equal(t, 1, created.Page)
	assert.Contains(t, created.HTML, `<span class="secondaryBackground">love</span>`)
	assert.Contains(t, created.HTML, `name="p1"`)

	viewPath := "/api/v1/views/" + created.ID
	rec = srv.do(t, http.MethodPost, viewPath+"/scroll", `{"scroll_top":950,"scroll_height":1000,"height":400}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var scroll handler.ScrollResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scroll))
	assert.Equal(t, "fetch", string(scroll.Decision))
	assert.True(t, scroll.Fetching)

	require.Eventually(t, func() bool {
		snap := decodeSnapshot(t, srv.do(t, http.MethodGet, viewPath, ""))
		return snap.State == "idle" && strings.Contains(snap.HTML, `name="p2"`)
	}, time.Second, 10*time.Millisecond)

	page, ok, err := srv.pages.PageNumber(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, page)

	rec = srv.do(t, http.MethodPost, viewPath+"/paging/disable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(t, http.MethodPost, viewPath+"/scroll", `{"scroll_top":950,"scroll_height":1000,"height":400}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scroll))
	assert.Equal(t, "disabled", string(scroll.Decision))

	rec = srv.do(t, http.MethodDelete, viewPath, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok, err = srv.pages.PageNumber(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.False(t, ok)

	rec = srv.do(t, http.MethodGet, viewPath, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateView_Errors(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		body    string
		status  int
	}{
		{"missing versions", &fakeBackend{total: 1}, `{"query":"t=love"}`, http.StatusBadRequest},
		{"blank query", &fakeBackend{total: 1}, `{"query":"  "}`, http.StatusBadRequest},
		{"empty body", &fakeBackend{total: 1}, ``, http.StatusBadRequest},
		{"unknown field", &fakeBackend{total: 1}, `{"query":"t=love in (KJV)","limit":3}`, http.StatusBadRequest},
		{"negative page size", &fakeBackend{total: 1}, `{"query":"t=love in (KJV)","page_size":-1}`, http.StatusBadRequest},
		{
			"backend down",
			&fakeBackend{err: apperrors.New(apperrors.ErrSearchUnavailable, http.StatusServiceUnavailable, "connection refused")},
			`{"query":"t=love in (KJV)"}`,
			http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.backend, nil)
			rec := srv.do(t, http.MethodPost, "/api/v1/views", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCreateView_ZeroResults(t *testing.T) {
	srv := newServer(t, &fakeBackend{total: 0}, nil)

	rec := srv.do(t, http.MethodPost, "/api/v1/views", `{"query":"t=zzz in (KJV)"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	snap := decodeSnapshot(t, rec)
	assert.Equal(t, "Showing 0", snap.Label)
	assert.Contains(t, snap.HTML, "notApplicable")
	assert.Zero(t, snap.Marks)
}

func TestUnknownView(t *testing.T) {
	srv := newServer(t, &fakeBackend{total: 1}, nil)

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/v1/views/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodPost, "/api/v1/views/nope/scroll", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodDelete, "/api/v1/views/nope", "").Code)
}

func TestTerms(t *testing.T) {
	srv := newServer(t, &fakeBackend{total: 1}, nil)

	rec := srv.do(t, http.MethodGet, `/api/v1/terms?q=t%3D%22the+Lord%22+in+(KJV)`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.TermsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"the Lord"}, resp.Terms)
	assert.Equal(t, "text", resp.SearchType)
	assert.Equal(t, []string{"KJV"}, resp.Versions)

	rec = srv.do(t, http.MethodGet, "/api/v1/terms", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheEndpoints(t *testing.T) {
	disabled := newServer(t, &fakeBackend{total: 1}, nil)
	rec := disabled.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")
	assert.Equal(t, http.StatusServiceUnavailable, disabled.do(t, http.MethodPost, "/api/v1/cache/invalidate", "").Code)

	cache := &fakeCache{}
	srv := newServer(t, &fakeBackend{total: 1}, cache)
	rec = srv.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(3), stats["hits"])
	assert.Equal(t, "75.0%", stats["hit_rate"])

	rec = srv.do(t, http.MethodPost, "/api/v1/cache/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, cache.invalidated)
	assert.Contains(t, rec.Body.String(), `"keys_deleted":7`)
}

func TestCreateView_RateLimited(t *testing.T) {
	srv := newServerWith(t, &fakeBackend{total: 1}, nil, router.Options{
		ViewLimiter: ratelimit.New(1, time.Minute),
	})

	rec := srv.do(t, http.MethodPost, "/api/v1/views", `{"query":"t=love in (KJV)"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = srv.do(t, http.MethodPost, "/api/v1/views", `{"query":"t=love in (KJV)"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// other routes are not throttled
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/v1/terms?q=t%3Dlove+in+(KJV)", "").Code)
}

package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/postgres"
)

type fakeLister struct {
	snapshots []analytics.AggregatedStats
	err       error
	limit     int
}

func (f *fakeLister) ListSnapshots(_ context.Context, limit int) ([]analytics.AggregatedStats, error) {
	f.limit = limit
	return f.snapshots, f.err
}

func TestHistoryHandler(t *testing.T) {
	lister := &fakeLister{snapshots: []analytics.AggregatedStats{{ViewsCreated: 4}, {ViewsCreated: 2}}}
	h := HistoryHandler(lister)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, lister.limit)

	var body struct {
		Snapshots []analytics.AggregatedStats `json:"snapshots"`
		Count     int                         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, int64(4), body.Snapshots[0].ViewsCreated)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=9999", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistoryLimit, lister.limit)
}

func TestHistoryHandler_Errors(t *testing.T) {
	rec := httptest.NewRecorder()
	HistoryHandler(&fakeLister{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	HistoryHandler(&fakeLister{err: errors.New("db down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")

	rec = httptest.NewRecorder()
	HistoryHandler(&fakeLister{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"snapshots":[],"count":0}`, rec.Body.String())
}

func TestStore_Snapshots(t *testing.T) {
	client := skipIfNoPostgres(t)
	ctx := context.Background()
	require.NoError(t, client.Migrate(ctx, Schema))
	_, err := client.DB.ExecContext(ctx, `DELETE FROM display_analytics_snapshots`)
	require.NoError(t, err)

	store := NewStore(client)
	latest, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.SaveSnapshot(ctx, analytics.AggregatedStats{ViewsCreated: 1}))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.SaveSnapshot(ctx, analytics.AggregatedStats{ViewsCreated: 2}))

	latest, err = store.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(2), latest.ViewsCreated)

	all, err := store.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[1].ViewsCreated)
}

type staticSource struct{ stats analytics.AggregatedStats }

func (s staticSource) Stats() analytics.AggregatedStats { return s.stats }

func TestStore_RunPeriodicSaveWritesFinalSnapshot(t *testing.T) {
	client := skipIfNoPostgres(t)
	require.NoError(t, client.Migrate(context.Background(), Schema))
	store := NewStore(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, store.RunPeriodicSave(ctx, staticSource{analytics.AggregatedStats{PageFetches: 42}}, time.Hour))

	latest, err := store.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(42), latest.PageFetches)
}

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, err := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	require.NoError(t, err)
	client, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "searchdisplay_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "searchdisplay"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

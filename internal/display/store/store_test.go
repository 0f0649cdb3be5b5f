package store

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/postgres"
)

// PageStore is the behaviour shared by both implementations.
type PageStore interface {
	SavePageNumber(ctx context.Context, sessionID string, page int) error
	PageNumber(ctx context.Context, sessionID string) (int, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

func exercise(t *testing.T, s PageStore) {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()

	_, ok, err := s.PageNumber(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SavePageNumber(ctx, id, 2))
	require.NoError(t, s.SavePageNumber(ctx, id, 3))
	require.NoError(t, s.SavePageNumber(ctx, id, 2))

	page, ok, err := s.PageNumber(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, page, "page number never decreases")

	require.NoError(t, s.Delete(ctx, id))
	_, ok, err = s.PageNumber(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestPostgres(t *testing.T) {
	client := skipIfNoPostgres(t)
	require.NoError(t, client.Migrate(context.Background(), Schema))
	exercise(t, NewPostgres(client))
}

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	client, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
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

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

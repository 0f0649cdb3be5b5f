package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Paging.PageSize)
	assert.InDelta(t, 0.7, cfg.Paging.ScrollProportion, 0.0001)
	assert.InDelta(t, 800.0, cfg.Paging.RemainingThreshold, 0.0001)
	assert.Equal(t, "Showing %d", cfg.Paging.ShowingFormat)
	assert.Equal(t, "display-events", cfg.Kafka.Topics.DisplayEvents)
	assert.Equal(t, 120, cfg.Server.ViewsPerMinute)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.yaml")
	data := []byte(`
paging:
  pageSize: 20
  showingFormat: "%d results"
redis:
  cacheTTL: 90s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Paging.PageSize)
	assert.Equal(t, "%d results", cfg.Paging.ShowingFormat)
	assert.Equal(t, 90*time.Second, cfg.Redis.CacheTTL)
	// untouched sections keep their defaults
	assert.InDelta(t, 0.7, cfg.Paging.ScrollProportion, 0.0001)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SD_PAGING_PAGE_SIZE", "25")
	t.Setenv("SD_KAFKA_ENABLED", "false")
	t.Setenv("SD_SEARCH_ADDR", "search:9100")
	t.Setenv("SD_SERVER_VIEWS_PER_MINUTE", "0")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Paging.PageSize)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "search:9100", cfg.Search.Addr)
	assert.Zero(t, cfg.Server.ViewsPerMinute)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero page size", func(c *Config) { c.Paging.PageSize = 0 }},
		{"proportion above one", func(c *Config) { c.Paging.ScrollProportion = 1.5 }},
		{"negative remaining", func(c *Config) { c.Paging.RemainingThreshold = -1 }},
		{"format without verb", func(c *Config) { c.Paging.ShowingFormat = "Showing" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

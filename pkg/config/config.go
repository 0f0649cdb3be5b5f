// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Search, Paging, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Search   SearchConfig   `yaml:"search"`
	Paging   PagingConfig   `yaml:"paging"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// ViewsPerMinute caps view creation per client address. Zero disables it.
	ViewsPerMinute  int           `yaml:"viewsPerMinute"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DisplayEvents string `yaml:"displayEvents"`
}

// RedisConfig holds Redis connection and page-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig points at the search-execution backend and controls how calls
// to it are retried and guarded.
type SearchConfig struct {
	Addr             string        `yaml:"addr"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxAttempts      int           `yaml:"maxAttempts"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// PagingConfig controls the scroll-proximity trigger, page sizing and the
// presentation hints handed to the renderer.
type PagingConfig struct {
	PageSize           int     `yaml:"pageSize"`
	ScrollProportion   float64 `yaml:"scrollProportion"`
	RemainingThreshold float64 `yaml:"remainingThreshold"`
	ContextSize        int     `yaml:"contextSize"`
	Order              string  `yaml:"order"`
	ShowingFormat      string  `yaml:"showingFormat"`
	Language           string  `yaml:"language"`
	LoadingClass       string  `yaml:"loadingClass"`
	HighlightClass     string  `yaml:"highlightClass"`
	TermCacheSize      int     `yaml:"termCacheSize"`
	MaxViews           int     `yaml:"maxViews"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the paging state machine cannot work with.
func (c *Config) Validate() error {
	if c.Paging.PageSize < 1 {
		return fmt.Errorf("paging.pageSize must be positive, got %d", c.Paging.PageSize)
	}
	if c.Paging.ScrollProportion <= 0 || c.Paging.ScrollProportion > 1 {
		return fmt.Errorf("paging.scrollProportion must be in (0, 1], got %v", c.Paging.ScrollProportion)
	}
	if c.Paging.RemainingThreshold < 0 {
		return fmt.Errorf("paging.remainingThreshold must not be negative, got %v", c.Paging.RemainingThreshold)
	}
	if !strings.Contains(c.Paging.ShowingFormat, "%d") {
		return fmt.Errorf("paging.showingFormat must contain %%d, got %q", c.Paging.ShowingFormat)
	}
	return nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			ViewsPerMinute:  120,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searchdisplay",
			User:            "searchdisplay",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       true,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "searchdisplay-group",
			Topics: KafkaTopics{
				DisplayEvents: "display-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Search: SearchConfig{
			Addr:             "localhost:9000",
			Timeout:          10 * time.Second,
			MaxAttempts:      3,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Paging: PagingConfig{
			PageSize:           60,
			ScrollProportion:   0.7,
			RemainingThreshold: 800,
			ShowingFormat:      "Showing %d",
			Language:           "en",
			LoadingClass:       "waiting",
			HighlightClass:     "secondaryBackground",
			TermCacheSize:      512,
			MaxViews:           1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SD_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SD_SERVER_VIEWS_PER_MINUTE"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Server.ViewsPerMinute = limit
		}
	}
	if v := os.Getenv("SD_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SD_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SD_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SD_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SD_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SD_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("SD_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SD_SEARCH_ADDR"); v != "" {
		cfg.Search.Addr = v
	}
	if v := os.Getenv("SD_PAGING_PAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Paging.PageSize = size
		}
	}
	if v := os.Getenv("SD_PAGING_SHOWING_FORMAT"); v != "" {
		cfg.Paging.ShowingFormat = v
	}
	if v := os.Getenv("SD_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SD_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Package cache memoizes search pages in Redis. PageCache decorates an
// executor.Executor: identical page requests are served from the cache and
// concurrent misses for the same request share one backend call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/proto"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/redis"
)

const keyPrefix = "display:page:"

// Store is the key-value surface the cache needs; *pkgredis.Client
// implements it.
type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type PageCache struct {
	next    executor.Executor
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps next. m may be nil.
func New(next executor.Executor, store Store, ttl time.Duration, m *metrics.Metrics) *PageCache {
	return &PageCache{
		next:    next,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "page-cache"),
	}
}

// Execute returns the cached page for req, or runs it on the wrapped
// executor and caches the result. Cache failures degrade to a plain call.
func (c *PageCache) Execute(ctx context.Context, req *proto.SearchRequest) (*proto.SearchResponse, error) {
	key := BuildKey(req)
	if resp, ok := c.get(ctx, key); ok {
		return resp, nil
	}

	val, err, shared := c.group.Do(key, func() (any, error) {
		if resp, ok := c.get(ctx, key); ok {
			return resp, nil
		}
		resp, err := c.next.Execute(ctx, req)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp := val.(*proto.SearchResponse)
	if shared {
		cp := *resp
		resp = &cp
	}
	return resp, nil
}

func (c *PageCache) get(ctx context.Context, key string) (*proto.SearchResponse, bool) {
	data, err := c.store.GetBytes(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var resp proto.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	resp.Cached = true
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "args", resp.Args, "page", resp.PageNumber)
	return &resp, true
}

func (c *PageCache) set(ctx context.Context, key string, resp *proto.SearchResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *PageCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Invalidate drops every cached page.
func (c *PageCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("invalidating page cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *PageCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BuildKey derives the cache key of a page request. The append flag does not
// change the page contents and is left out; strong's numbers are order
// independent.
func BuildKey(req *proto.SearchRequest) string {
	strongs := slices.Clone(req.Strongs)
	slices.Sort(strongs)
	raw := fmt.Sprintf("%s|p=%d|n=%d|i=%s|o=%s|c=%d|s=%s|t=%s",
		strings.TrimSpace(req.Args),
		req.PageNumber,
		req.PageSize,
		req.InterlinearMode,
		req.Order,
		req.Context,
		strings.Join(strongs, ","),
		strings.Join(req.HighlightTerms, "\x1f"),
	)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

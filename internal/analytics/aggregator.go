package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	ViewsCreated      int64            `json:"views_created"`
	PageFetches       int64            `json:"page_fetches"`
	PagesReady        int64            `json:"pages_ready"`
	PageFailures      int64            `json:"page_failures"`
	CacheHits         int64            `json:"cache_hits"`
	ZeroResultRenders int64            `json:"zero_result_renders"`
	HighlightPasses   map[string]int64 `json:"highlight_passes"`
	AvgFetchMs        float64          `json:"avg_fetch_ms"`
	P50FetchMs        int64            `json:"p50_fetch_ms"`
	P95FetchMs        int64            `json:"p95_fetch_ms"`
	P99FetchMs        int64            `json:"p99_fetch_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	SearchTypes       map[string]int64 `json:"search_types"`
	FetchesPerMinute  float64          `json:"fetches_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds display events into running statistics. It implements
// Tracker, so it can be fed directly when no event stream is configured.
type Aggregator struct {
	mu                sync.RWMutex
	viewsCreated      int64
	pageFetches       int64
	pagesReady        int64
	pageFailures      int64
	cacheHits         int64
	zeroResults       int64
	highlightPasses   map[string]int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	searchTypes       map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		highlightPasses:   make(map[string]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		searchTypes:       make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleMessage decodes display events from the event stream.
func (a *Aggregator) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[DisplayEvent](value)
		if err != nil {
			a.logger.Error("failed to decode display event", "key", string(key), "error", err)
			return nil
		}
		a.Track(event)
		return nil
	}
}

func (a *Aggregator) Track(event DisplayEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case EventViewCreated:
		a.viewsCreated++
		a.queryCounts[event.Query]++
		if event.SearchType != "" {
			a.searchTypes[event.SearchType]++
		}
	case EventPageFetch:
		a.pageFetches++
	case EventPageReady:
		a.pagesReady++
		if event.CacheHit {
			a.cacheHits++
		}
		a.latencies = append(a.latencies, event.LatencyMs)
		if len(a.latencies) > maxLatencySamples {
			a.latencies = a.latencies[len(a.latencies)-maxLatencySamples:]
		}
	case EventPageFailed:
		a.pageFailures++
	case EventHighlight:
		a.highlightPasses[event.HighlightMode]++
	case EventZeroResult:
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
	default:
		a.logger.Debug("ignoring unknown event type", "type", event.Type)
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		ViewsCreated:      a.viewsCreated,
		PageFetches:       a.pageFetches,
		PagesReady:        a.pagesReady,
		PageFailures:      a.pageFailures,
		CacheHits:         a.cacheHits,
		ZeroResultRenders: a.zeroResults,
		HighlightPasses:   copyCounts(a.highlightPasses),
		SearchTypes:       copyCounts(a.searchTypes),
		TopQueries:        topN(a.queryCounts, 10),
		ZeroResultQueries: topN(a.zeroResultQueries, 10),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgFetchMs = float64(sum) / float64(len(sorted))
		stats.P50FetchMs = percentile(sorted, 50)
		stats.P95FetchMs = percentile(sorted, 95)
		stats.P99FetchMs = percentile(sorted, 99)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.FetchesPerMinute = float64(stats.PageFetches) / elapsed
	}
	return stats
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

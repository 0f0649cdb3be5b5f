package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var defaultLoadQueries = []string{
	"t=love in (KJV)",
	`t="the Lord" in (KJV)`,
	"t=faith AND hope in (ESV)",
	"s=grace in (ESV)",
	"t=shepherd in (NIV)",
	"og=logos in (SBLG)",
	"t=light -darkness in (KJV)",
	"t=peace in (KJV, ESV)",
}

type loadConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Scrolls     int
	Queries     []string
}

// opStats collects latencies and status codes of one API operation.
type opStats struct {
	total    atomic.Int64
	failures atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
}

func newOpStats() *opStats {
	return &opStats{statuses: make(map[int]int64)}
}

func (s *opStats) record(elapsed time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil || status < 200 || status >= 300 {
		s.failures.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, elapsed)
	s.statuses[status]++
	s.mu.Unlock()
}

type loadStats struct {
	create  *opStats
	scroll  *opStats
	destroy *opStats
}

func newLoadTestCmd() *cobra.Command {
	cfg := loadConfig{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive create/scroll/destroy view cycles against a running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Queries = defaultLoadQueries
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== Search View Load Test ===")
			fmt.Fprintf(out, "Target:      %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "Concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(out, "Duration:    %s\n", cfg.Duration)
			fmt.Fprintf(out, "Scrolls:     %d per view\n\n", cfg.Scrolls)

			stats, err := runLoadTest(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return printLoadReport(out, stats, cfg.Duration)
		},
	}

	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the display service")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent workers")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().IntVar(&cfg.Scrolls, "scrolls", 5, "scroll signals sent to each view before it is destroyed")
	return cmd
}

func runLoadTest(ctx context.Context, cfg loadConfig) (*loadStats, error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	stats := &loadStats{create: newOpStats(), scroll: newOpStats(), destroy: newOpStats()}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; gctx.Err() == nil; i++ {
				viewCycle(gctx, client, cfg, cfg.Queries[i%len(cfg.Queries)], stats)
			}
			return nil
		})
	}
	return stats, g.Wait()
}

// viewCycle creates one view, scrolls it to the bottom cfg.Scrolls times and
// destroys it. Requests cut short by the end of the run are not recorded.
func viewCycle(ctx context.Context, client *http.Client, cfg loadConfig, query string, stats *loadStats) {
	body, _ := json.Marshal(map[string]string{"query": query})
	var created struct {
		ID string `json:"id"`
	}
	status, elapsed, err := call(ctx, client, http.MethodPost, cfg.BaseURL+"/api/v1/views", body, &created)
	if ctx.Err() != nil {
		return
	}
	stats.create.record(elapsed, status, err)
	if err != nil || status != http.StatusCreated || created.ID == "" {
		return
	}

	viewURL := cfg.BaseURL + "/api/v1/views/" + created.ID
	scroll := []byte(`{"scroll_top":950,"scroll_height":1000,"height":400}`)
	for i := 0; i < cfg.Scrolls && ctx.Err() == nil; i++ {
		status, elapsed, err = call(ctx, client, http.MethodPost, viewURL+"/scroll", scroll, nil)
		if ctx.Err() == nil {
			stats.scroll.record(elapsed, status, err)
		}
	}

	// destroy even after the deadline so the service is not left with views
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	status, elapsed, err = call(cleanupCtx, client, http.MethodDelete, viewURL, nil, nil)
	stats.destroy.record(elapsed, status, err)
}

func call(ctx context.Context, client *http.Client, method, url string, body []byte, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, elapsed, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, elapsed, fmt.Errorf("decoding response: %w", err)
		}
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, elapsed, nil
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) error {
	var total int64
	for _, op := range []struct {
		name  string
		stats *opStats
	}{
		{"create", stats.create},
		{"scroll", stats.scroll},
		{"destroy", stats.destroy},
	} {
		total += op.stats.total.Load()
		printOpReport(w, op.name, op.stats, duration)
	}
	if total == 0 {
		return fmt.Errorf("no requests completed, is the service running?")
	}
	return nil
}

func printOpReport(w io.Writer, name string, s *opStats, duration time.Duration) {
	total := s.total.Load()
	failures := s.failures.Load()

	fmt.Fprintf(w, "=== %s ===\n", name)
	fmt.Fprintf(w, "Requests:     %d\n", total)
	fmt.Fprintf(w, "Failures:     %d\n", failures)
	if total == 0 {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "Failure Rate: %.2f%%\n", float64(failures)/float64(total)*100)
	fmt.Fprintf(w, "Requests/sec: %.2f\n", float64(total)/duration.Seconds())

	s.mu.Lock()
	latencies := append([]time.Duration(nil), s.latencies...)
	codes := make([]int, 0, len(s.statuses))
	for code := range s.statuses {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(s.statuses))
	for code, n := range s.statuses {
		counts[code] = n
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintf(w, "Latency:      min %s  avg %s  p50 %s  p95 %s  p99 %s  max %s\n",
			latencies[0],
			sum/time.Duration(len(latencies)),
			latencyPercentile(latencies, 50),
			latencyPercentile(latencies, 95),
			latencyPercentile(latencies, 99),
			latencies[len(latencies)-1],
		)
	}

	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, counts[code])
	}
	fmt.Fprintln(w)
}

func latencyPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

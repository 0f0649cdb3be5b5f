package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/pager"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/session"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/tracing"
)

// Dispatcher runs page fetches in the background and delivers the results to
// the owning session, which notifies its views.
type Dispatcher struct {
	exec    Executor
	tracker analytics.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. tracker and m may be nil.
func NewDispatcher(exec Executor, tracker analytics.Tracker, m *metrics.Metrics) *Dispatcher {
	if tracker == nil {
		tracker = analytics.Discard
	}
	return &Dispatcher{
		exec:    exec,
		tracker: tracker,
		metrics: m,
		logger:  slog.Default().With("component", "fetch-dispatcher"),
	}
}

// ToRequest converts a pager request to its wire form.
func ToRequest(req pager.Request, pageSize int) *proto.SearchRequest {
	return &proto.SearchRequest{
		Args:            req.Args,
		PageNumber:      int32(req.PageNumber),
		PageSize:        int32(pageSize),
		InterlinearMode: req.InterlinearMode,
		HighlightTerms:  req.HighlightTerms,
		Strongs:         req.Strongs,
		Order:           req.Order,
		Context:         int32(req.Context),
		Append:          req.Append,
	}
}

func toRows(in []proto.ResultRow) []session.Row {
	rows := make([]session.Row, len(in))
	for i, r := range in {
		rows[i] = session.Row{Key: r.Key, Preview: r.Preview}
	}
	return rows
}

// LoadFirstPage fetches page 1 synchronously and stores it on the session
// without notifying views.
func (d *Dispatcher) LoadFirstPage(ctx context.Context, sess *session.Session) error {
	req := sess.FetchParams()
	req.PageNumber = 1
	resp, err := d.exec.Execute(ctx, ToRequest(req, sess.PageSize()))
	if err != nil {
		return fmt.Errorf("loading first page of session %s: %w", sess.ID(), err)
	}
	sess.SetResults(toRows(resp.Rows), int(resp.Total))
	return nil
}

// For returns the pager.Fetcher of one session.
func (d *Dispatcher) For(sess *session.Session) pager.Fetcher {
	return &sessionFetcher{d: d, sess: sess}
}

// Wait blocks until every background fetch has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

type sessionFetcher struct {
	d    *Dispatcher
	sess *session.Session
}

// Fetch starts the fetch and returns immediately. On failure nothing is
// delivered, so the pager stays in its fetching state.
func (f *sessionFetcher) Fetch(ctx context.Context, req pager.Request) {
	f.d.wg.Add(1)
	go func() {
		defer f.d.wg.Done()
		f.d.run(ctx, f.sess, req)
	}()
}

func (d *Dispatcher) run(ctx context.Context, sess *session.Session, req pager.Request) {
	ctx, span := tracing.Start(ctx, "page_fetch")
	span.Set("session_id", sess.ID())
	span.Set("page", req.PageNumber)
	defer func() {
		span.End()
		span.Log(ctx, d.logger)
	}()

	start := time.Now()
	event := analytics.DisplayEvent{
		Type:      analytics.EventPageFetch,
		SessionID: sess.ID(),
		Query:     sess.Query(),
		Page:      req.PageNumber,
		Timestamp: start.UTC(),
	}
	d.tracker.Track(event)

	execCtx, execSpan := tracing.Start(ctx, "execute")
	resp, err := d.exec.Execute(execCtx, ToRequest(req, sess.PageSize()))
	execSpan.End()
	if err != nil {
		span.Set("error", err.Error())
		d.observe("failed", 0)
		event.Type = analytics.EventPageFailed
		event.Timestamp = time.Now().UTC()
		d.tracker.Track(event)
		if errors.Is(err, context.Canceled) {
			d.logger.Info("page fetch cancelled", "session_id", sess.ID(), "page", req.PageNumber)
			return
		}
		d.logger.Error("page fetch failed",
			"session_id", sess.ID(),
			"page", req.PageNumber,
			"error", err,
		)
		return
	}

	page := int(resp.PageNumber)
	if page == 0 {
		page = req.PageNumber
	}
	_, deliverSpan := tracing.Start(ctx, "deliver")
	sess.DeliverPage(page, toRows(resp.Rows), int(resp.Total))
	deliverSpan.End()
	span.Set("rows", len(resp.Rows))
	span.Set("cached", resp.Cached)

	elapsed := time.Since(start)
	d.observe("delivered", elapsed)
	event.Type = analytics.EventPageReady
	event.Page = page
	event.Total = int(resp.Total)
	event.Rows = len(resp.Rows)
	event.LatencyMs = elapsed.Milliseconds()
	event.CacheHit = resp.Cached
	event.Timestamp = time.Now().UTC()
	d.tracker.Track(event)
}

func (d *Dispatcher) observe(status string, elapsed time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.PageFetchesTotal.WithLabelValues(status).Inc()
	if elapsed > 0 {
		d.metrics.PageFetchLatency.Observe(elapsed.Seconds())
	}
}

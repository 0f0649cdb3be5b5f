// Package view is the owning view of a search session. A View holds the
// rendered results area, drives its pager.Controller from scroll signals and
// session notifications, highlights every rendered fragment and keeps the
// results label current.
//
// All paging work happens on the goroutine running Run; the exported methods
// hand their work to that loop, or read a snapshot under a mutex.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/accumulator"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/highlight"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/pager"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/session"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/metrics"
)

const (
	contentClass       = "passageContent"
	resultsClass       = "searchResults"
	rowClass           = "searchResultRow"
	notApplicableClass = "notApplicable"

	defaultLoadingClass  = "waiting"
	defaultShowingFormat = "Showing %d"
	noResultsMessage     = "No search results found"
)

// Options configure a View.
type Options struct {
	Trigger       pager.Trigger
	ShowingFormat string
	Language      string
	LoadingClass  string
	// SearchType tags analytics events.
	SearchType string
	// PartRendered is markup rendered ahead of the view. When set, the first
	// render highlights it instead of rendering the session's rows.
	PartRendered string
}

// Deps are the collaborators of a View. Tracker and Metrics may be nil.
type Deps struct {
	Fetcher pager.Fetcher
	Engine  *highlight.Engine
	Tracker analytics.Tracker
	Metrics *metrics.Metrics
}

type command func(ctx context.Context)

// View is safe for concurrent use once Run has been started.
type View struct {
	id      string
	sess    *session.Session
	ctrl    *pager.Controller
	acc     *accumulator.Accumulator
	engine  *highlight.Engine
	tracker analytics.Tracker
	metrics *metrics.Metrics
	opts    Options
	logger  *slog.Logger

	events      <-chan session.Event
	unsubscribe func()
	commands    chan command
	closing     chan struct{}
	closeOnce   sync.Once
	done        chan struct{}

	mu           sync.RWMutex
	doc          *goquery.Document
	label        string
	status       status
	partRendered bool
}

type status struct {
	page     int
	state    pager.State
	hasPages bool
	mode     highlight.Mode
	marks    int
}

// New builds the view of sess and performs its first full render from the
// results already stored on the session. The caller must start Run.
func New(sess *session.Session, deps Deps, opts Options) (*View, error) {
	if sess == nil {
		return nil, apperrors.Invalid("view requires a session")
	}
	if deps.Fetcher == nil || deps.Engine == nil {
		return nil, apperrors.Invalid("view requires a fetcher and a highlight engine")
	}
	if opts.Trigger == (pager.Trigger{}) {
		opts.Trigger = pager.DefaultTrigger()
	}
	if opts.ShowingFormat == "" {
		opts.ShowingFormat = defaultShowingFormat
	}
	if opts.LoadingClass == "" {
		opts.LoadingClass = defaultLoadingClass
	}
	if deps.Tracker == nil {
		deps.Tracker = analytics.Discard
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		fmt.Sprintf(`<div class=%q><div class=%q></div></div>`, contentClass, resultsClass),
	))
	if err != nil {
		return nil, fmt.Errorf("creating results document: %w", err)
	}

	id := uuid.NewString()
	v := &View{
		id:           id,
		sess:         sess,
		engine:       deps.Engine,
		tracker:      deps.Tracker,
		metrics:      deps.Metrics,
		opts:         opts,
		logger:       slog.Default().With("component", "search-view", "view_id", id, "session_id", sess.ID()),
		commands:     make(chan command),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
		doc:          doc,
		partRendered: opts.PartRendered != "",
	}
	v.acc = accumulator.New(opts.ShowingFormat, opts.Language, v)
	v.ctrl = pager.New(opts.Trigger, sess.PageSize(), pager.Deps{
		Bounds:      v.acc,
		Params:      sess,
		Fetcher:     deps.Fetcher,
		Pages:       sess,
		Placeholder: v,
	})
	v.events, v.unsubscribe = sess.Subscribe()

	rows, total := sess.Results()
	if err := v.render(false, rows, total); err != nil {
		v.unsubscribe()
		return nil, err
	}
	v.partRendered = false
	v.syncStatus()

	if v.metrics != nil {
		v.metrics.ActiveViews.Inc()
	}
	v.tracker.Track(analytics.DisplayEvent{
		Type:       analytics.EventViewCreated,
		SessionID:  sess.ID(),
		Query:      sess.Query(),
		SearchType: opts.SearchType,
		Total:      total,
		Rows:       len(rows),
		Timestamp:  time.Now().UTC(),
	})
	return v, nil
}

func (v *View) ID() string { return v.id }

func (v *View) Session() *session.Session { return v.sess }

// Done is closed once the view has been torn down.
func (v *View) Done() <-chan struct{} { return v.done }

// Run is the view's event loop. It returns after the session is destroyed,
// Close is called or ctx is cancelled, tearing the view down in every case.
// Fetches issued by the view are bound to ctx.
func (v *View) Run(ctx context.Context) error {
	defer v.teardown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-v.closing:
			return nil
		case ev, ok := <-v.events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case session.EventNewPage:
				v.onNewPage(ev.Page)
			case session.EventDestroy:
				v.logger.Debug("session destroyed")
				return nil
			}
		case cmd := <-v.commands:
			cmd(ctx)
		}
	}
}

// Close stops the event loop. It does not wait for teardown; use Done.
func (v *View) Close() {
	v.closeOnce.Do(func() { close(v.closing) })
}

func (v *View) teardown() {
	v.unsubscribe()
	if v.metrics != nil {
		v.metrics.ActiveViews.Dec()
	}
	close(v.done)
	v.logger.Debug("view torn down")
}

func (v *View) submit(ctx context.Context, cmd command) error {
	select {
	case v.commands <- cmd:
		return nil
	case <-v.done:
		return apperrors.ErrViewClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Scroll reports a scroll read-out of the results area and returns the
// paging decision it led to.
func (v *View) Scroll(ctx context.Context, m pager.ScrollMetrics) (pager.Decision, error) {
	reply := make(chan pager.Decision, 1)
	err := v.submit(ctx, func(loopCtx context.Context) {
		d := v.ctrl.OnScroll(loopCtx, m)
		v.syncStatus()
		reply <- d
	})
	if err != nil {
		return "", err
	}
	select {
	case d := <-reply:
		if v.metrics != nil {
			v.metrics.ScrollDecisions.WithLabelValues(string(d)).Inc()
		}
		return d, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// DisablePaging stops the view from ever loading another page.
func (v *View) DisablePaging(ctx context.Context) error {
	ack := make(chan struct{})
	err := v.submit(ctx, func(context.Context) {
		v.ctrl.DisablePaging()
		v.syncStatus()
		close(ack)
	})
	if err != nil {
		return err
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *View) onNewPage(page int) {
	if !v.ctrl.OnPageReady(page) {
		return
	}
	rows, total := v.sess.Results()
	if err := v.render(true, rows, total); err != nil {
		v.logger.Error("append render failed", "page", page, "error", err)
	}
	v.syncStatus()
}

func (v *View) syncStatus() {
	v.mu.Lock()
	v.status.page = v.ctrl.PageNumber()
	v.status.state = v.ctrl.State()
	v.status.hasPages = v.ctrl.HasPages()
	v.mu.Unlock()
}

// Package pager decides when a search view should load its next page of
// results. A Controller is driven by scroll signals and page-ready
// notifications and guarantees that at most one page fetch is in flight.
//
// Controller is not safe for concurrent use; the owning view serializes all
// calls on its event loop.
package pager

import (
	"context"
	"log/slog"
)

// State is the fetch state of a Controller.
type State int

const (
	StateIdle State = iota
	StateFetching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating one scroll signal.
type Decision string

const (
	DecisionFetch     Decision = "fetch"
	DecisionDisabled  Decision = "disabled"
	DecisionBusy      Decision = "busy"
	DecisionNotNear   Decision = "not_near"
	DecisionExhausted Decision = "exhausted"
)

// Request is the fixed parameter set of a page fetch. At most one of
// HighlightTerms and Strongs is set.
type Request struct {
	Args            string   `json:"args"`
	PageNumber      int      `json:"page_number"`
	InterlinearMode string   `json:"interlinear_mode,omitempty"`
	HighlightTerms  []string `json:"highlight_terms,omitempty"`
	Strongs         []string `json:"strongs,omitempty"`
	Order           string   `json:"order,omitempty"`
	Context         int      `json:"context"`
	Append          bool     `json:"append"`
}

// Bounds exposes the total result count the page guard is checked against.
type Bounds interface {
	Total() int
}

// ParamSource supplies the current search parameters of the owning session.
type ParamSource interface {
	FetchParams() Request
}

// Fetcher issues a page fetch. It must not block on the search itself;
// completion is reported later through OnPageReady.
type Fetcher interface {
	Fetch(ctx context.Context, req Request)
}

// PageWriter records the current page number without any navigation side
// effect.
type PageWriter interface {
	SavePageNumber(ctx context.Context, page int) error
}

// Placeholder shows and hides the loading indicator in the content area.
type Placeholder interface {
	ShowLoading()
	HideLoading()
}

// Deps are the collaborators of a Controller. Pages and Placeholder may be
// nil.
type Deps struct {
	Bounds      Bounds
	Params      ParamSource
	Fetcher     Fetcher
	Pages       PageWriter
	Placeholder Placeholder
}

// Controller is the paging state machine of one search view.
type Controller struct {
	trigger  Trigger
	pageSize int
	deps     Deps

	state    State
	page     int
	hasPages bool
	logger   *slog.Logger
}

// New creates a Controller on page 1 in the Idle state.
func New(trigger Trigger, pageSize int, deps Deps) *Controller {
	if pageSize < 1 {
		pageSize = 1
	}
	return &Controller{
		trigger:  trigger,
		pageSize: pageSize,
		deps:     deps,
		state:    StateIdle,
		page:     1,
		hasPages: true,
		logger:   slog.Default().With("component", "pager"),
	}
}

// OnScroll evaluates a scroll signal and, when every guard holds, moves to
// Fetching and issues the fetch of the next page.
func (c *Controller) OnScroll(ctx context.Context, m ScrollMetrics) Decision {
	if !c.hasPages {
		return DecisionDisabled
	}
	if c.state == StateFetching {
		return DecisionBusy
	}
	if !c.trigger.Fires(m) {
		return DecisionNotNear
	}

	next := c.page + 1
	total := c.deps.Bounds.Total()
	if next*c.pageSize > total {
		return DecisionExhausted
	}

	c.state = StateFetching
	c.page = next

	if c.deps.Pages != nil {
		if err := c.deps.Pages.SavePageNumber(ctx, next); err != nil {
			c.logger.Warn("saving page number failed", "page", next, "error", err)
		}
	}
	if c.deps.Placeholder != nil {
		c.deps.Placeholder.ShowLoading()
	}

	req := c.deps.Params.FetchParams()
	req.PageNumber = next
	req.Append = true
	c.deps.Fetcher.Fetch(ctx, req)

	c.logger.Debug("next page requested", "page", next, "page_size", c.pageSize, "total", total)
	return DecisionFetch
}

// OnPageReady completes the outstanding fetch. A notification for a page
// other than the one requested is stale and ignored; page 0 means the
// notifier does not know the page and is always accepted. It reports whether
// the notification was accepted.
func (c *Controller) OnPageReady(page int) bool {
	if c.state != StateFetching {
		c.logger.Debug("page ready without outstanding fetch", "page", page)
		return false
	}
	if page != 0 && page != c.page {
		c.logger.Warn("ignoring stale page", "page", page, "current", c.page)
		return false
	}
	if c.deps.Placeholder != nil {
		c.deps.Placeholder.HideLoading()
	}
	c.state = StateIdle
	return true
}

// DisablePaging stops the controller from ever fetching again.
func (c *Controller) DisablePaging() {
	c.hasPages = false
}

// State returns the current fetch state.
func (c *Controller) State() State {
	return c.state
}

// PageNumber returns the highest page requested so far.
func (c *Controller) PageNumber() int {
	return c.page
}

// HasPages reports whether paging is still enabled.
func (c *Controller) HasPages() bool {
	return c.hasPages
}

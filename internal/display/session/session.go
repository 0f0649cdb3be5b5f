// Package session holds the state of one search session: the query and its
// fetch parameters, the latest page of results, the session-scoped highlight
// terms, and the notifications views subscribe to.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/pager"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/terms"
)

// Row is one pre-rendered result row.
type Row struct {
	Key     string `json:"key"`
	Preview string `json:"preview"`
}

// Params describe the search a session displays.
type Params struct {
	Query           string   `json:"query"`
	Args            string   `json:"args,omitempty"`
	InterlinearMode string   `json:"interlinear_mode,omitempty"`
	Order           string   `json:"order,omitempty"`
	Context         int      `json:"context,omitempty"`
	PageSize        int      `json:"page_size,omitempty"`
	Strongs         []string `json:"strongs,omitempty"`
}

// PageStore records page numbers outside the process.
type PageStore interface {
	SavePageNumber(ctx context.Context, sessionID string, page int) error
}

// Session is safe for concurrent use.
type Session struct {
	id        string
	params    Params
	terms     []string
	highlight HighlightState
	store     PageStore
	logger    *slog.Logger

	mu        sync.RWMutex
	rows      []Row
	total     int
	page      int
	destroyed bool
	subs      map[int]chan Event
	nextSub   int
}

// New creates a session for params. Strongs keeps its nil-ness: a nil list
// means the search did not supply lexical codes. store may be nil.
func New(params Params, store PageStore) (*Session, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("session query must not be blank")
	}
	if params.PageSize < 1 {
		return nil, fmt.Errorf("session page size must be positive, got %d", params.PageSize)
	}
	if params.Args == "" {
		params.Args = params.Query
	}
	if params.Strongs != nil {
		params.Strongs = slices.Clone(params.Strongs)
	}
	var highlightTerms []string
	if params.Strongs == nil {
		highlightTerms = terms.Extract(params.Query)
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		params: params,
		terms:  highlightTerms,
		store:  store,
		page:   1,
		subs:   make(map[int]chan Event),
		logger: slog.Default().With("component", "search-session", "session_id", id),
	}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Params() Params { return s.params }

func (s *Session) Query() string { return s.params.Query }

func (s *Session) PageSize() int { return s.params.PageSize }

// Strongs returns the lexical codes supplied with the search, or nil.
func (s *Session) Strongs() []string { return s.params.Strongs }

// Highlight returns the session's highlight state.
func (s *Session) Highlight() *HighlightState { return &s.highlight }

// FetchParams implements pager.ParamSource. A session with lexical codes
// sends those; otherwise it sends the terms extracted from its query.
func (s *Session) FetchParams() pager.Request {
	return pager.Request{
		Args:            s.params.Args,
		InterlinearMode: s.params.InterlinearMode,
		HighlightTerms:  slices.Clone(s.terms),
		Strongs:         s.params.Strongs,
		Order:           s.params.Order,
		Context:         s.params.Context,
	}
}

// Results returns the most recently delivered rows and the total result
// count reported with them.
func (s *Session) Results() ([]Row, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows, s.total
}

// PageNumber returns the last saved page number.
func (s *Session) PageNumber() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// SetResults replaces the current rows without notifying subscribers. It is
// used for the first page, which views render on construction.
func (s *Session) SetResults(rows []Row, total int) {
	s.mu.Lock()
	s.rows = rows
	s.total = total
	s.mu.Unlock()
}

// DeliverPage stores an appended page and notifies subscribers.
func (s *Session) DeliverPage(page int, rows []Row, total int) {
	s.SetResults(rows, total)
	s.publish(Event{Kind: EventNewPage, Page: page})
}

// SavePageNumber implements pager.PageWriter. It updates the page number
// silently: subscribers are not notified.
func (s *Session) SavePageNumber(ctx context.Context, page int) error {
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	if err := s.store.SavePageNumber(ctx, s.id, page); err != nil {
		return fmt.Errorf("persisting page %d of session %s: %w", page, s.id, err)
	}
	return nil
}

// Destroy notifies subscribers that their views must be torn down. Later
// calls are no-ops.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.mu.Unlock()
	s.publish(Event{Kind: EventDestroy})
}

// Destroyed reports whether Destroy has been called.
func (s *Session) Destroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

// HighlightState is the last set of terms used by a term highlight pass.
type HighlightState struct {
	mu    sync.RWMutex
	terms []string
}

func (h *HighlightState) Set(terms []string) {
	h.mu.Lock()
	h.terms = slices.Clone(terms)
	h.mu.Unlock()
}

func (h *HighlightState) Clear() {
	h.mu.Lock()
	h.terms = []string{}
	h.mu.Unlock()
}

// Terms returns a copy of the current terms.
func (h *HighlightState) Terms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.terms)
}

// Package handler serves the search-view HTTP API: views are created from a
// query, scrolled, inspected and destroyed over JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/highlight"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/pager"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/session"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/terms"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/view"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// PageStore persists page numbers and forgets destroyed sessions.
type PageStore interface {
	session.PageStore
	Delete(ctx context.Context, sessionID string) error
}

// PageCache is the admin surface of the result-page cache.
type PageCache interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) (int64, error)
}

// Deps are the collaborators of a Handler. Cache, Store, Tracker and Metrics
// may be nil.
type Deps struct {
	Registry   *view.Registry
	Dispatcher *executor.Dispatcher
	Engine     *highlight.Engine
	Cache      PageCache
	Store      PageStore
	Tracker    analytics.Tracker
	Metrics    *metrics.Metrics
	Paging     config.PagingConfig
}

type Handler struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps) *Handler {
	if deps.Tracker == nil {
		deps.Tracker = analytics.Discard
	}
	return &Handler{
		deps:   deps,
		logger: slog.Default().With("component", "view-handler"),
	}
}

// CreateViewRequest is the body of POST /api/v1/views.
type CreateViewRequest struct {
	Query           string   `json:"query"`
	Args            string   `json:"args,omitempty"`
	InterlinearMode string   `json:"interlinear_mode,omitempty"`
	Order           string   `json:"order,omitempty"`
	Context         *int     `json:"context,omitempty"`
	PageSize        int      `json:"page_size,omitempty"`
	Strongs         []string `json:"strongs,omitempty"`
	PartRendered    string   `json:"part_rendered,omitempty"`
}

// ScrollResponse is the result of POST /api/v1/views/{id}/scroll.
type ScrollResponse struct {
	Decision pager.Decision `json:"decision"`
	Fetching bool           `json:"fetching"`
}

// TermsResponse is the result of GET /api/v1/terms.
type TermsResponse struct {
	Query      string   `json:"query"`
	Terms      []string `json:"terms"`
	SearchType string   `json:"search_type,omitempty"`
	Versions   []string `json:"versions,omitempty"`
}

// CreateView validates the query, loads its first page, and opens a view on
// it.
func (h *Handler) CreateView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req CreateViewRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	search, err := query.Parse(req.Query)
	if err != nil {
		h.writeError(w, err)
		return
	}

	params := session.Params{
		Query:           req.Query,
		Args:            req.Args,
		InterlinearMode: req.InterlinearMode,
		Order:           req.Order,
		Context:         h.deps.Paging.ContextSize,
		PageSize:        req.PageSize,
		Strongs:         req.Strongs,
	}
	if params.Order == "" {
		params.Order = h.deps.Paging.Order
	}
	if req.Context != nil {
		params.Context = *req.Context
	}
	if params.PageSize == 0 {
		params.PageSize = h.deps.Paging.PageSize
	}

	var store session.PageStore
	if h.deps.Store != nil {
		store = h.deps.Store
	}
	sess, err := session.New(params, store)
	if err != nil {
		h.writeError(w, apperrors.Invalid("%v", err))
		return
	}
	if err := h.deps.Dispatcher.LoadFirstPage(ctx, sess); err != nil {
		log.Error("first page failed", "query", req.Query, "error", err)
		h.writeError(w, err)
		return
	}

	v, err := view.New(sess, view.Deps{
		Fetcher: h.deps.Dispatcher.For(sess),
		Engine:  h.deps.Engine,
		Tracker: h.deps.Tracker,
		Metrics: h.deps.Metrics,
	}, view.Options{
		Trigger: pager.Trigger{
			Proportion: h.deps.Paging.ScrollProportion,
			Remaining:  h.deps.Paging.RemainingThreshold,
		},
		ShowingFormat: h.deps.Paging.ShowingFormat,
		Language:      h.deps.Paging.Language,
		LoadingClass:  h.deps.Paging.LoadingClass,
		SearchType:    search.Type.String(),
		PartRendered:  req.PartRendered,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.deps.Registry.Add(v); err != nil {
		h.writeError(w, err)
		return
	}

	snap, err := v.Snapshot()
	if err != nil {
		h.writeError(w, err)
		return
	}
	log.Info("view created",
		"view_id", v.ID(),
		"session_id", sess.ID(),
		"search_type", search.Type.String(),
		"total", snap.Total,
	)
	h.writeJSON(w, http.StatusCreated, snap)
}

func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := v.Snapshot()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// Scroll feeds a scroll read-out to the view's pager.
func (h *Handler) Scroll(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var m pager.ScrollMetrics
	if err := decode(r, &m); err != nil {
		h.writeError(w, err)
		return
	}
	d, err := v.Scroll(r.Context(), m)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ScrollResponse{Decision: d, Fetching: d == pager.DecisionFetch})
}

func (h *Handler) DisablePaging(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := v.DisablePaging(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "paging disabled"})
}

// DeleteView destroys the view's session and forgets its saved page.
func (h *Handler) DeleteView(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Registry.Remove(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.deps.Store != nil {
		if err := h.deps.Store.Delete(r.Context(), v.Session().ID()); err != nil {
			logger.FromContext(r.Context()).Warn("forgetting session page failed",
				"session_id", v.Session().ID(),
				"error", err,
			)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Terms reports the highlight terms of a query and, when it classifies, its
// search type.
func (h *Handler) Terms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		h.writeError(w, apperrors.Invalid("query parameter 'q' is required"))
		return
	}
	resp := TermsResponse{Query: q, Terms: terms.Extract(q)}
	if search, err := query.Parse(q); err == nil {
		resp.SearchType = search.Type.String()
		resp.Versions = search.Versions
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.deps.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrSearchUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}

	deleted, err := h.deps.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Invalid("request body is required")
		}
		return apperrors.Invalid("malformed request body: %v", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
		message = "internal server error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

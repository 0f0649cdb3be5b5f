// Package router wires up the search-view API routes and applies the
// middleware chain (RequestID → AccessLog → CORS → Metrics → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/ratelimit"
)

// Options carry the optional parts of the router. Nil fields disable the
// routes or middleware they back.
type Options struct {
	Analytics *analytics.Handler
	History   http.HandlerFunc
	Health    *health.Checker
	Metrics   *metrics.Metrics
	Timeout   time.Duration

	// ViewLimiter throttles view creation per client address.
	ViewLimiter *ratelimit.Limiter
}

// New builds the full HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/views                       → create view, load page 1
//	GET    /api/v1/views/{id}                  → view snapshot
//	POST   /api/v1/views/{id}/scroll           → scroll signal
//	POST   /api/v1/views/{id}/paging/disable   → stop paging
//	DELETE /api/v1/views/{id}                  → destroy view
//	GET    /api/v1/terms                       → highlight terms of ?q=
//	GET    /api/v1/cache/stats                 → page cache counters
//	POST   /api/v1/cache/invalidate            → drop cached pages
//	GET    /api/v1/analytics                   → aggregated display stats
//	GET    /api/v1/analytics/history           → persisted stats snapshots
//	GET    /health/live, /health/ready         → probes
func New(h *handler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()

	if opts.Health != nil {
		mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}

	// Views
	var create http.Handler = http.HandlerFunc(h.CreateView)
	if opts.ViewLimiter != nil {
		create = middleware.RateLimit(opts.ViewLimiter)(create)
	}
	mux.Handle("POST /api/v1/views", create)
	mux.HandleFunc("GET /api/v1/views/{id}", h.GetView)
	mux.HandleFunc("POST /api/v1/views/{id}/scroll", h.Scroll)
	mux.HandleFunc("POST /api/v1/views/{id}/paging/disable", h.DisablePaging)
	mux.HandleFunc("DELETE /api/v1/views/{id}", h.DeleteView)

	mux.HandleFunc("GET /api/v1/terms", h.Terms)

	// Cache
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	if opts.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", opts.Analytics.Stats)
	}
	if opts.History != nil {
		mux.HandleFunc("GET /api/v1/analytics/history", opts.History)
	}

	// applied inside-out: request → RequestID → AccessLog → CORS → Metrics → Timeout → mux
	var chain http.Handler = mux
	if opts.Timeout > 0 {
		chain = middleware.Timeout(opts.Timeout)(chain)
	}
	if opts.Metrics != nil {
		chain = middleware.Metrics(opts.Metrics)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.AccessLog(chain)
	chain = middleware.RequestID(chain)

	return chain
}

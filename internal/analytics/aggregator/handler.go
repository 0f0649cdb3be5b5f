package aggregator

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// SnapshotLister is the read side of Store.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error)
}

// HistoryHandler serves GET /api/v1/analytics/history?limit=N, newest first.
func HistoryHandler(store SnapshotLister) http.HandlerFunc {
	log := logger.WithComponent("analytics-history")
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		snapshots, err := store.ListSnapshots(r.Context(), limit)
		if err != nil {
			log.Error("listing snapshots failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if snapshots == nil {
			snapshots = []analytics.AggregatedStats{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots, "count": len(snapshots)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

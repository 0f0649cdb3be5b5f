// Package proto defines the wire messages exchanged with the search backend
// over the JSON-over-TCP RPC layer (see pkg/grpc).
package proto

// RPC method names served by the search backend.
const (
	MethodSearch = "SearchService.Execute"
	MethodHealth = "SearchService.Health"
)

// HealthCheckResponse mirrors the gRPC health check spec.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING, UNKNOWN
}

// SearchRequest is the fixed parameter set of one page fetch.
type SearchRequest struct {
	Args            string   `json:"args"`
	PageNumber      int32    `json:"page_number"`
	PageSize        int32    `json:"page_size"`
	InterlinearMode string   `json:"interlinear_mode,omitempty"`
	HighlightTerms  []string `json:"highlight_terms,omitempty"`
	Strongs         []string `json:"strongs,omitempty"`
	Order           string   `json:"order,omitempty"`
	Context         int32    `json:"context"`
	Append          bool     `json:"append"`
}

// SearchResponse is one page of pre-rendered rows plus the total result
// count of the whole search.
type SearchResponse struct {
	Args       string      `json:"args"`
	PageNumber int32       `json:"page_number"`
	Total      int32       `json:"total"`
	Rows       []ResultRow `json:"rows"`
	LatencyMs  int64       `json:"latency_ms"`
	// Cached is set locally when the page came from the page cache.
	Cached bool `json:"-"`
}

// ResultRow is a single rendered result.
type ResultRow struct {
	Key     string `json:"key"`
	Preview string `json:"preview"`
}

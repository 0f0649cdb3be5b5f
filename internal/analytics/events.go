package analytics

import "time"

type EventType string

const (
	EventViewCreated EventType = "view_created"
	EventPageFetch   EventType = "page_fetch"
	EventPageReady   EventType = "page_ready"
	EventPageFailed  EventType = "page_failed"
	EventHighlight   EventType = "highlight"
	EventZeroResult  EventType = "zero_result"
)

// DisplayEvent is one observation from a search view. Fields that do not
// apply to the event type are left zero.
type DisplayEvent struct {
	Type          EventType `json:"type"`
	SessionID     string    `json:"session_id"`
	Query         string    `json:"query"`
	SearchType    string    `json:"search_type,omitempty"`
	Page          int       `json:"page,omitempty"`
	Total         int       `json:"total,omitempty"`
	Rows          int       `json:"rows,omitempty"`
	HighlightMode string    `json:"highlight_mode,omitempty"`
	Marks         int       `json:"marks,omitempty"`
	LatencyMs     int64     `json:"latency_ms,omitempty"`
	CacheHit      bool      `json:"cache_hit,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Tracker accepts display events. Track must not block.
type Tracker interface {
	Track(event DisplayEvent)
}

// Discard is a Tracker that drops every event.
var Discard Tracker = discard{}

type discard struct{}

func (discard) Track(DisplayEvent) {}

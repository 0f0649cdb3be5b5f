// Package store records the page number each search session has reached.
// Writes are silent: nothing is notified and nothing navigates.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/postgres"
)

// Schema creates the page-number table.
const Schema = `CREATE TABLE IF NOT EXISTS search_sessions (
    session_id  TEXT PRIMARY KEY,
    page_number INTEGER NOT NULL CHECK (page_number >= 1),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres stores page numbers in the search_sessions table.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgres(client *postgres.Client) *Postgres {
	return &Postgres{
		db:     client.DB,
		logger: slog.Default().With("component", "page-store"),
	}
}

// SavePageNumber upserts the page number of a session. The stored value never
// decreases.
func (p *Postgres) SavePageNumber(ctx context.Context, sessionID string, page int) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO search_sessions (session_id, page_number, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_id) DO UPDATE
		SET page_number = GREATEST(search_sessions.page_number, EXCLUDED.page_number),
		    updated_at  = NOW()`,
		sessionID, page,
	)
	if err != nil {
		return fmt.Errorf("saving page number for session %s: %w", sessionID, err)
	}
	p.logger.Debug("page number saved", "session_id", sessionID, "page", page)
	return nil
}

// PageNumber returns the stored page number of a session and whether one
// exists.
func (p *Postgres) PageNumber(ctx context.Context, sessionID string) (int, bool, error) {
	var page int
	err := p.db.QueryRowContext(ctx,
		`SELECT page_number FROM search_sessions WHERE session_id = $1`, sessionID,
	).Scan(&page)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("loading page number for session %s: %w", sessionID, err)
	}
	return page, true, nil
}

// Delete removes a session's row.
func (p *Postgres) Delete(ctx context.Context, sessionID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM search_sessions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// Memory keeps page numbers in process. It is used when no database is
// configured.
type Memory struct {
	mu    sync.RWMutex
	pages map[string]int
}

func NewMemory() *Memory {
	return &Memory{pages: make(map[string]int)}
}

func (m *Memory) SavePageNumber(_ context.Context, sessionID string, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if page > m.pages[sessionID] {
		m.pages[sessionID] = page
	}
	return nil
}

func (m *Memory) PageNumber(_ context.Context, sessionID string) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, ok := m.pages[sessionID]
	return page, ok, nil
}

func (m *Memory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, sessionID)
	return nil
}

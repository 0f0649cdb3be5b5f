package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/errors"
)

// Registry tracks the open views and runs their event loops.
type Registry struct {
	ctx      context.Context
	maxViews int
	logger   *slog.Logger

	mu    sync.RWMutex
	views map[string]*View
	wg    sync.WaitGroup
}

// NewRegistry creates a Registry whose view loops are bound to ctx. A
// maxViews of zero or less means no limit.
func NewRegistry(ctx context.Context, maxViews int) *Registry {
	return &Registry{
		ctx:      ctx,
		maxViews: maxViews,
		views:    make(map[string]*View),
		logger:   slog.Default().With("component", "view-registry"),
	}
}

// Add registers v and starts its event loop. The view is dropped from the
// registry when its loop exits. A view rejected for the limit is torn down.
func (r *Registry) Add(v *View) error {
	r.mu.Lock()
	if r.maxViews > 0 && len(r.views) >= r.maxViews {
		r.mu.Unlock()
		v.Close()
		go v.Run(r.ctx)
		return apperrors.Newf(apperrors.ErrTooManyViews, http.StatusTooManyRequests,
			"view limit of %d reached", r.maxViews)
	}
	r.views[v.ID()] = v
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		err := v.Run(r.ctx)
		r.mu.Lock()
		delete(r.views, v.ID())
		r.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("view loop exited", "view_id", v.ID(), "error", err)
		}
	}()
	return nil
}

func (r *Registry) Get(id string) (*View, error) {
	r.mu.RLock()
	v, ok := r.views[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrSessionNotFound, http.StatusNotFound, "view %s not found", id)
	}
	return v, nil
}

// Remove destroys the view's session and waits for the view to be torn down.
func (r *Registry) Remove(ctx context.Context, id string) (*View, error) {
	v, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	v.Session().Destroy()
	v.Close()
	select {
	case <-v.Done():
		return v, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for view %s teardown: %w", id, ctx.Err())
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// Shutdown closes every view and waits for their loops to exit.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	for _, v := range r.views {
		v.Close()
	}
	r.mu.RUnlock()
	r.wg.Wait()
}

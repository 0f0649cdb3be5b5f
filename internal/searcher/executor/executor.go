// Package executor runs page fetches against the search backend. Executor is
// the synchronous call; Dispatcher turns it into the fire-and-forget fetch a
// pager issues and reports completion through the session.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/resilience"
)

// Executor runs one search page request.
type Executor interface {
	Execute(ctx context.Context, req *proto.SearchRequest) (*proto.SearchResponse, error)
}

// Caller is the RPC client surface the executor needs.
type Caller interface {
	Call(ctx context.Context, method string, params any, result any) error
}

// RPC executes searches on the remote backend, with per-attempt timeouts,
// retries and a circuit breaker.
type RPC struct {
	client  Caller
	cfg     config.SearchConfig
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRPC wraps client. m may be nil.
func NewRPC(client Caller, cfg config.SearchConfig, m *metrics.Metrics) *RPC {
	r := &RPC{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "search-executor"),
	}
	r.breaker = resilience.NewCircuitBreaker("search-backend", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
		IsFailure:        isBackendFailure,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return r
}

// isBackendFailure excludes errors the backend reported itself: it answered,
// so it is up.
func isBackendFailure(err error) bool {
	return !errors.Is(err, grpc.ErrRemote) && !errors.Is(err, context.Canceled)
}

func isRetryable(err error) bool {
	return isBackendFailure(err) && !errors.Is(err, resilience.ErrCircuitOpen)
}

func (r *RPC) Execute(ctx context.Context, req *proto.SearchRequest) (*proto.SearchResponse, error) {
	start := time.Now()
	var result *proto.SearchResponse

	err := resilience.Retry(ctx, "search-execute", resilience.RetryConfig{
		MaxAttempts: r.cfg.MaxAttempts,
		Retryable:   isRetryable,
		OnRetry: func(int, error) {
			if r.metrics != nil {
				r.metrics.SearchRetries.Inc()
			}
		},
	}, func(ctx context.Context) error {
		return r.breaker.Execute(func() error {
			out := &proto.SearchResponse{}
			err := resilience.WithTimeout(ctx, r.cfg.Timeout, "search rpc", func(ctx context.Context) error {
				return r.client.Call(ctx, proto.MethodSearch, req, out)
			})
			if err == nil {
				result = out
			}
			return err
		})
	})
	if err != nil {
		r.observe("error")
		r.logger.Error("search execution failed",
			"args", req.Args,
			"page", req.PageNumber,
			"error", err,
		)
		return nil, classify(err)
	}

	if result.LatencyMs == 0 {
		result.LatencyMs = time.Since(start).Milliseconds()
	}
	if result.Total == 0 {
		r.observe("zero_result")
	} else {
		r.observe("hit")
	}
	r.logger.Debug("search executed",
		"args", req.Args,
		"page", req.PageNumber,
		"total", result.Total,
		"rows", len(result.Rows),
		"latency_ms", result.LatencyMs,
	)
	return result, nil
}

func (r *RPC) observe(resultType string) {
	if r.metrics != nil {
		r.metrics.SearchExecutions.WithLabelValues(resultType).Inc()
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, grpc.ErrRemote):
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "search rejected: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout, "search timed out: %v", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return apperrors.Newf(apperrors.ErrSearchUnavailable, http.StatusServiceUnavailable, "%v", err)
	}
}

// BreakerState returns the state of the backend circuit breaker.
func (r *RPC) BreakerState() resilience.State {
	return r.breaker.GetState()
}

// HealthCheck probes the backend's health method.
func (r *RPC) HealthCheck() health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		var resp proto.HealthCheckResponse
		if err := r.client.Call(ctx, proto.MethodHealth, struct{}{}, &resp); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		if resp.Status != "SERVING" {
			return health.ComponentHealth{
				Status:  health.StatusDegraded,
				Message: fmt.Sprintf("backend reports %s", resp.Status),
			}
		}
		if state := r.breaker.GetState(); state != resilience.StateClosed {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + state.String()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	}
}

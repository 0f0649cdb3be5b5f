package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "short and stout"), http.StatusTeapot},
		{"invalid helper", Invalid("page %d", 0), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("loading view: %w", ErrSessionNotFound), http.StatusNotFound},
		{"closed view", ErrViewClosed, http.StatusGone},
		{"too many views", ErrTooManyViews, http.StatusTooManyRequests},
		{"backend down", fmt.Errorf("rpc: %w", ErrSearchUnavailable), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "query %q is blank", " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, `invalid input: query " " is blank`, err.Error())
}

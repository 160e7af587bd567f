package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped explicit", eris.Wrap(NewTransientError(errors.New("rate limited"), 429), "extract: ai"), true},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"connection reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"tls pattern", errors.New("net/http: TLS handshake timeout"), true},
		{"broken pipe pattern", errors.New("write: broken pipe"), true},
		{"plain", errors.New("invalid input: missing field"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 409, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestTransientError_UnwrapAndMessage(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)

	assert.ErrorIs(t, te, inner)
	assert.Equal(t, 500, te.StatusCode)
	assert.Equal(t, "root cause", te.Error())
}

func TestNewUpstreamError(t *testing.T) {
	inner := errors.New("overloaded")

	err := NewUpstreamError("anthropic", 400, inner)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "anthropic", ue.Service)
	assert.False(t, IsTransient(err))
	assert.Equal(t, "anthropic: http 400: overloaded", err.Error())

	err = NewUpstreamError("fetch", 503, inner)
	assert.True(t, IsTransient(err))
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 503, ue.StatusCode)
	assert.ErrorIs(t, err, inner)

	err = NewUpstreamError("fetch", 0, inner)
	assert.Equal(t, "fetch: overloaded", err.Error())
	assert.Equal(t, "permanent", ClassifyError(err))
}

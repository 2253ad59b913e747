package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ValidationError("bad input"), http.StatusBadRequest},
		{NotFoundError("missing"), http.StatusNotFound},
		{RateLimitedError("slow down"), http.StatusTooManyRequests},
		{UnavailableError("full"), http.StatusServiceUnavailable},
		{InternalError("boom", nil), http.StatusInternalServerError},
		{&Error{Type: "unknown"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus(), "type %s", tt.err.Type)
	}
}

func TestError_ErrorString(t *testing.T) {
	assert.Equal(t, "validation: bad input", ValidationError("bad input").Error())

	cause := stderrors.New("socket closed")
	err := InternalError("upgrade failed", cause)
	assert.Equal(t, "internal: upgrade failed: socket closed", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := InternalError("wrapper", cause)

	assert.True(t, stderrors.Is(err, cause))

	wrapped := fmt.Errorf("outer: %w", err)
	var structured *Error
	require.True(t, stderrors.As(wrapped, &structured))
	assert.Equal(t, TypeInternal, structured.Type)
}

func TestError_WithContext(t *testing.T) {
	err := RateLimitedError("too fast").
		WithContext("ip", "10.0.0.1").
		WithContext("limit", 10)

	assert.Equal(t, "10.0.0.1", err.Context["ip"])
	assert.Equal(t, 10, err.Context["limit"])
}

func TestError_ToResponse(t *testing.T) {
	err := UnavailableError("server at capacity").WithContext("limit", 100)
	resp := err.ToResponse()

	assert.Equal(t, "server at capacity", resp.Error)
	assert.Equal(t, TypeUnavailable, resp.Type)
	assert.Equal(t, 100, resp.Context["limit"])
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	structured := NotFoundError("gone")
	assert.Same(t, structured, AsStructuredError(structured))

	plain := stderrors.New("something broke")
	converted := AsStructuredError(plain)
	assert.Equal(t, TypeInternal, converted.Type)
	assert.True(t, stderrors.Is(converted, plain))
}

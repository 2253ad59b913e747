package errors

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMiddleware(t *testing.T, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Middleware()(handler)(c)
	return rec, err
}

func TestMiddleware_PassesThroughSuccess(t *testing.T) {
	rec, err := runMiddleware(t, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMiddleware_StructuredError(t *testing.T) {
	rec, err := runMiddleware(t, func(c echo.Context) error {
		return RateLimitedError("too many connection attempts").WithContext("ip", "10.0.0.1")
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t,
		`{"error":"too many connection attempts","type":"rate_limited","context":{"ip":"10.0.0.1"}}`,
		rec.Body.String(),
	)
}

func TestMiddleware_PlainErrorBecomesInternal(t *testing.T) {
	rec, err := runMiddleware(t, func(c echo.Context) error {
		return stderrors.New("unexpected")
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// The original message must not leak to the client.
	assert.NotContains(t, rec.Body.String(), "unexpected")
	assert.Contains(t, rec.Body.String(), `"type":"internal"`)
}

func TestMiddleware_EchoHTTPErrorPreserved(t *testing.T) {
	httpErr := echo.NewHTTPError(http.StatusNotFound, "no such route")
	_, err := runMiddleware(t, func(c echo.Context) error {
		return httpErr
	})

	// Echo errors pass through for the framework's own handler.
	require.Error(t, err)
	assert.Equal(t, httpErr, err)
}

func TestWrapHTTPError(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{http.StatusBadRequest, TypeValidation},
		{http.StatusNotFound, TypeNotFound},
		{http.StatusTooManyRequests, TypeRateLimited},
		{http.StatusServiceUnavailable, TypeUnavailable},
		{http.StatusTeapot, TypeInternal},
	}

	for _, tt := range tests {
		got := wrapHTTPError(echo.NewHTTPError(tt.code, "msg"))
		assert.Equal(t, tt.want, got.Type, "code %d", tt.code)
		assert.Equal(t, "msg", got.Message)
	}
}

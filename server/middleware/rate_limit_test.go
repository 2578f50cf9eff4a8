package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowRespectsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("client-a"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("client-a"))

	// Another client has its own budget.
	assert.True(t, rl.Allow("client-b"))
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	e := echo.New()
	handler := rl.Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	do := func() (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		return rec, handler(e.NewContext(req, rec))
	}

	rec, err := do()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = do()
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
}

package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type healthResponse struct {
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp"`
	Backend      string `json:"backend"`
	Database     string `json:"database"`
	SessionCount int    `json:"session_count"`
	LLM          string `json:"llm"`
}

// Health handles GET /api/health. It reports which backend won at startup,
// whether that backend is currently reachable, and how many sessions it
// holds.
func (s *APIV1Service) Health(c echo.Context) error {
	ctx := c.Request().Context()
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Backend:   s.Store.BackendName(),
		Database:  "ok",
		LLM:       "configured",
	}
	if err := s.Store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
	}
	if count, err := s.Store.CountSessions(ctx); err == nil {
		resp.SessionCount = count
	}
	if !s.Provider.IsConfigured() {
		resp.LLM = "not configured"
	}
	return c.JSON(http.StatusOK, resp)
}

package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/J12003LPZ/Chatbot/server/internal/observability"
)

type historyMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type historyResponse struct {
	SessionID string           `json:"session_id"`
	CreatedAt string           `json:"created_at,omitempty"`
	Messages  []historyMessage `json:"messages"`
}

type sessionSummary struct {
	SessionID    string `json:"session_id"`
	Preview      string `json:"preview"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
}

type listSessionsResponse struct {
	Sessions []sessionSummary `json:"sessions"`
}

// GetHistory handles GET /api/history/:session_id. Unknown sessions return
// an empty message list, not an error.
func (s *APIV1Service) GetHistory(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" || sessionID == "undefined" {
		return respondError(c, http.StatusBadRequest, errKindClient, "invalid session id")
	}

	messages, err := s.Store.GetHistory(c.Request().Context(), sessionID)
	if err != nil {
		s.logError(sessionID, "failed to load history", err)
		return respondError(c, http.StatusInternalServerError, errKindPersistence, "failed to load history")
	}

	resp := historyResponse{
		SessionID: sessionID,
		Messages:  make([]historyMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		content := msg.Content
		if content == "" && msg.AttachmentExcerpt != "" {
			// System rows carry upload excerpts in the attachment field.
			content = msg.AttachmentExcerpt
		}
		resp.Messages = append(resp.Messages, historyMessage{
			Role:      string(msg.Role),
			Content:   content,
			Timestamp: formatTs(msg.CreatedTs),
		})
	}
	if len(messages) > 0 {
		resp.CreatedAt = formatTs(messages[0].CreatedTs)
	}
	return c.JSON(http.StatusOK, resp)
}

// ListSessions handles GET /api/sessions, most recently updated first.
func (s *APIV1Service) ListSessions(c echo.Context) error {
	summaries, err := s.Store.ListSessions(c.Request().Context())
	if err != nil {
		s.logError("", "failed to list sessions", err)
		return respondError(c, http.StatusInternalServerError, errKindPersistence, "failed to list sessions")
	}

	resp := listSessionsResponse{Sessions: make([]sessionSummary, 0, len(summaries))}
	for _, summary := range summaries {
		resp.Sessions = append(resp.Sessions, sessionSummary{
			SessionID:    summary.SessionID,
			Preview:      summary.Preview,
			CreatedAt:    formatTs(summary.CreatedTs),
			UpdatedAt:    formatTs(summary.UpdatedTs),
			MessageCount: summary.MessageCount,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// DeleteSession handles DELETE /api/sessions/:session_id. Deleting a session
// that does not exist succeeds.
func (s *APIV1Service) DeleteSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" || sessionID == "undefined" {
		return respondError(c, http.StatusBadRequest, errKindClient, "invalid session id")
	}

	if err := s.Store.DeleteSession(c.Request().Context(), sessionID); err != nil {
		s.logError(sessionID, "failed to delete session", err)
		return respondError(c, http.StatusInternalServerError, errKindPersistence, "failed to delete session")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *APIV1Service) logError(sessionID, msg string, err error) {
	observability.NewRequestContext(s.logger, sessionID).Error(msg, err)
}

func formatTs(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

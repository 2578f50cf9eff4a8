package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/J12003LPZ/Chatbot/plugin/llm"
	"github.com/J12003LPZ/Chatbot/server/internal/observability"
	"github.com/J12003LPZ/Chatbot/store"
)

// imageMarkerPrefix tags stored user messages that carried an image, so the
// history view can flag them without keeping the image bytes.
const imageMarkerPrefix = "[IMAGE ATTACHED] "

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	// ImageData is an optional base64 JPEG produced by a prior upload.
	ImageData string `json:"image_data"`
}

type chatResponse struct {
	Response     string `json:"response"`
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
}

// Chat handles POST /api/chat: persist the user message, assemble the
// prompt from history, call the inference API and persist the reply.
func (s *APIV1Service) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, errKindClient, "invalid request body")
	}
	if req.Message == "" {
		return respondError(c, http.StatusBadRequest, errKindClient, "no message provided")
	}

	ctx := c.Request().Context()
	reqCtx := observability.NewRequestContext(s.logger, req.SessionID)

	session, err := s.Store.CreateOrGetSession(ctx, req.SessionID)
	if err != nil {
		reqCtx.Error("failed to resolve session", err)
		return respondError(c, http.StatusInternalServerError, errKindPersistence, "failed to resolve session")
	}
	reqCtx.SessionID = session.ID

	storageContent := req.Message
	if req.ImageData != "" {
		storageContent = imageMarkerPrefix + req.Message
	}

	// The user message is persisted before the inference call: a failed
	// generation must not lose the turn.
	if _, err := s.Store.AppendMessage(ctx, session.ID, store.MessageRoleUser, storageContent, ""); err != nil {
		reqCtx.Error("failed to persist user message", err)
		return respondError(c, http.StatusInternalServerError, errKindPersistence, "failed to save message")
	}

	if !s.Provider.IsConfigured() {
		return respondError(c, http.StatusServiceUnavailable, errKindGeneration, "AI service is currently unavailable, check the API configuration")
	}

	history, err := s.Store.GetHistory(ctx, session.ID)
	if err != nil {
		reqCtx.Error("failed to load history", err)
		return respondError(c, http.StatusInternalServerError, errKindPersistence, "failed to load history")
	}

	prompt := llm.BuildPrompt(history, s.Profile.HistoryWindow, req.ImageData)
	reply, err := s.Provider.Chat(ctx, prompt)
	if err != nil {
		// The user message above stays persisted.
		reqCtx.Error("inference call failed", err)
		return respondError(c, http.StatusBadGateway, errKindGeneration, "AI service error")
	}

	if _, err := s.Store.AppendMessage(ctx, session.ID, store.MessageRoleAssistant, reply, ""); err != nil {
		reqCtx.Error("failed to persist assistant message", err)
		return respondError(c, http.StatusInternalServerError, errKindPersistence, "failed to save AI response")
	}

	count := len(prompt)
	if updated, err := s.Store.GetHistory(ctx, session.ID); err == nil {
		count = 0
		for _, msg := range updated {
			if msg.Role.IsChatTurn() {
				count++
			}
		}
	}

	reqCtx.Info("chat turn completed",
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
		slog.String(observability.LogFieldBackend, s.Store.BackendName()))

	return c.JSON(http.StatusOK, chatResponse{
		Response:     reply,
		SessionID:    session.ID,
		MessageCount: count,
	})
}

// Package v1 exposes the REST surface: chat, upload, history, sessions and
// health. All persistence flows through the store selected at startup; the
// handlers never know which backend is active.
package v1

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/J12003LPZ/Chatbot/internal/profile"
	"github.com/J12003LPZ/Chatbot/plugin/fileparse"
	"github.com/J12003LPZ/Chatbot/plugin/llm"
	"github.com/J12003LPZ/Chatbot/server/middleware"
	"github.com/J12003LPZ/Chatbot/store"
)

type APIV1Service struct {
	Profile  *profile.Profile
	Store    *store.Store
	Provider *llm.Provider
	Parser   *fileparse.Parser

	logger *slog.Logger

	// uploadSemaphore limits concurrent file extraction to prevent memory
	// exhaustion from large uploads.
	uploadSemaphore *semaphore.Weighted
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, provider *llm.Provider, parser *fileparse.Parser) *APIV1Service {
	return &APIV1Service{
		Profile:         profile,
		Store:           store,
		Provider:        provider,
		Parser:          parser,
		logger:          slog.Default(),
		uploadSemaphore: semaphore.NewWeighted(2),
	}
}

// RegisterRoutes registers all API routes with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	limiter := middleware.NewRateLimiter(10, 20)

	api := e.Group("/api")
	api.POST("/chat", s.Chat, limiter.Middleware())
	api.POST("/upload", s.Upload, limiter.Middleware())
	api.GET("/history/:session_id", s.GetHistory)
	api.GET("/sessions", s.ListSessions)
	api.DELETE("/sessions/:session_id", s.DeleteSession)
	api.GET("/health", s.Health)
}

// Error kinds let clients tell a failed reply generation apart from a failed
// write: a generation failure leaves the user message persisted.
const (
	errKindClient      = "client"
	errKindPersistence = "persistence"
	errKindGeneration  = "generation"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func respondError(c echo.Context, status int, kind, message string) error {
	return c.JSON(status, errorResponse{Error: message, Kind: kind})
}

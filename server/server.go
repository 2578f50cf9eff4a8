// Package server assembles the HTTP surface on top of echo: middleware,
// route registration and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/J12003LPZ/Chatbot/internal/profile"
	"github.com/J12003LPZ/Chatbot/plugin/fileparse"
	"github.com/J12003LPZ/Chatbot/plugin/llm"
	apiv1 "github.com/J12003LPZ/Chatbot/server/router/api/v1"
	"github.com/J12003LPZ/Chatbot/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			slog.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status))
			return nil
		},
	}))

	s := &Server{
		Profile:    profile,
		Store:      store,
		echoServer: e,
	}

	provider, err := llm.NewProvider(llm.ConfigFromProfile(profile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create llm provider")
	}
	parser := fileparse.NewParser(profile)

	apiService := apiv1.NewAPIV1Service(profile, store, provider, parser)
	apiService.RegisterRoutes(e)

	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started",
		slog.String("address", address),
		slog.String("backend", s.Store.BackendName()))
	if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down server", slog.Any("error", err))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", slog.Any("error", err))
	}
	slog.Info("server shut down")
}

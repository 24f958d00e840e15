package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// requestTimeout bounds every non-streaming request.
const requestTimeout = 60 * time.Second

// ServerDeps are the collaborators the HTTP surface is built from.
// Camera, Overlay, Recorder and Pinger may be nil.
type ServerDeps struct {
	Service   *recognition.Service
	Directory database.IdentityReader
	Recorder  database.AttendanceRecorder
	Pinger    database.Pinger
	Camera    handlers.Camera
	Overlay   handlers.Overlay
	StreamFPS int
	Info      handlers.ServiceInfo

	// AllowedOrigins extends the localhost-only CORS and websocket policy.
	AllowedOrigins []string
}

// Server represents the web server
type Server struct {
	deps       ServerDeps
	origins    *middleware.OriginPolicy
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server
func NewServer(deps ServerDeps, host string, port int) *Server {
	r := chi.NewRouter()

	s := &Server{
		deps:    deps,
		origins: middleware.NewOriginPolicy(deps.AllowedOrigins),
		router:  r,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.origins.CORS())
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	// Streaming handlers clear their own write deadline.
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * requestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

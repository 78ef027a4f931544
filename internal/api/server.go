// Package api provides the HTTP API server and handlers for the Voiceline
// synchronization service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bluefxvideo/voiceline-server/internal/service"
	"github.com/bluefxvideo/voiceline-server/internal/sse"
	"github.com/bluefxvideo/voiceline-server/internal/store"
	"github.com/bluefxvideo/voiceline-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      *store.Store
	timelines  *service.TimelineService
	sseManager *sse.Manager
	sseHandler *sse.Handler
	router     *chi.Mux
	api        huma.API
	validator  *validation.Validator
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st *store.Store, timelines *service.TimelineService, sseManager *sse.Manager, sseHandler *sse.Handler, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		store:      st,
		timelines:  timelines,
		sseManager: sseManager,
		sseHandler: sseHandler,
		router:     router,
		validator:  validation.New(),
		logger:     logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Voiceline API", "1.0.0")
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// Browser-based editors connect from their own origin; the SSE stream
	// needs CORS headers or EventSource silently fails.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerTimelineRoutes()

	// SSE is a long-lived stream, mounted on chi directly rather than huma.
	s.router.Get("/api/v1/sync/stream", s.sseHandler.ServeHTTP)
}

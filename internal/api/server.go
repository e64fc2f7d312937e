// Package api provides the HTTP API server and handlers for the cellar application.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mycellarapp/cellar-server/internal/sse"
)

// Options configures the HTTP surface.
type Options struct {
	Version     string
	CORSOrigins []string

	// Auth routes are limited per client IP.
	AuthRequests int
	AuthWindow   time.Duration
	AuthBurst    int
}

func (o *Options) defaults() {
	if o.Version == "" {
		o.Version = "dev"
	}
	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"*"}
	}
	if o.AuthRequests <= 0 {
		o.AuthRequests = 20
	}
	if o.AuthWindow <= 0 {
		o.AuthWindow = time.Minute
	}
	if o.AuthBurst <= 0 {
		o.AuthBurst = 10
	}
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services        *Services
	events          *sse.Manager
	router          *chi.Mux
	api             huma.API
	authRateLimiter *RateLimiter
	logger          *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, events *sse.Manager, opts Options, logger *slog.Logger) *Server {
	opts.defaults()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(authMiddleware(services.Accounts))

	humaConfig := huma.DefaultConfig("Cellar API", opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		services:        services,
		events:          events,
		router:          router,
		api:             api,
		authRateLimiter: NewRateLimiter(opts.AuthRequests, opts.AuthWindow, opts.AuthBurst),
		logger:          logger,
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, used by tests and the OpenAPI dump.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources.
func (s *Server) Close() {
	s.authRateLimiter.Stop()
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerCellarRoutes()
	s.registerWineRoutes()
	s.registerExperiencedRoutes()
	s.registerSearchRoutes()
	s.registerTransferRoutes()
	s.registerAIRoutes()
	s.registerLabelRoutes()

	// The event stream is long-lived and not JSON, so it bypasses huma.
	if s.events != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(s.events, eventUser, s.logger).ServeHTTP)
	}
}

// bearerSecurity marks an operation as requiring an access token.
var bearerSecurity = []map[string][]string{{"bearer": {}}}

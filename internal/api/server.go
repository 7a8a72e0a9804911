// Package api provides the HTTP API server and handlers for the ChordSeq application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chordseqapp/chordseq-server/internal/ratelimit"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
)

// Options holds server-level tunables.
type Options struct {
	Name           string
	Version        string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxUploadBytes int64
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    *sqlite.Store
	services *Services
	router   *chi.Mux
	api      huma.API
	limiter  *ratelimit.KeyedRateLimiter
	opts     Options
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(store *sqlite.Store, services *Services, opts Options, logger *slog.Logger) *Server {
	if opts.Name == "" {
		opts.Name = "ChordSeq API"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 40
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		store:    store,
		services: services,
		router:   chi.NewRouter(),
		limiter:  ratelimit.New(opts.RateLimitRPS, opts.RateLimitBurst),
		opts:     opts,
		logger:   logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig(opts.Name, opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerTagRoutes()
	s.registerChartRoutes()
	s.registerShareRoutes()
	s.registerMediaRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases server-held resources.
func (s *Server) Close() {
	s.limiter.Stop()
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(s.rateLimitMiddleware)
	s.router.Use(authMiddleware(s.services.Tokens, s.services.User))
	s.router.Use(loaderMiddleware(s.store))
}

// rateLimitMiddleware applies the per-client token bucket, keyed by remote
// address. RealIP runs earlier, so RemoteAddr reflects X-Forwarded-For when
// a trusted proxy set it.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			s.logger.Warn("rate limit exceeded", "remote", r.RemoteAddr, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"RATE_LIMITED","message":"Too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MessageResponse is a generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message" doc:"Human-readable result message"`
}

// MessageOutput wraps MessageResponse for huma.
type MessageOutput struct {
	Body MessageResponse
}

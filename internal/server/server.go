// Package server provides the HTTP server and routing for the Zulu7 dashboard backend.
package server

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/zulu7/internal/config"
	"github.com/aristath/zulu7/internal/metrics"
	"github.com/aristath/zulu7/internal/modules/drive"
	"github.com/aristath/zulu7/internal/modules/embed"
	"github.com/aristath/zulu7/internal/modules/feeds"
	"github.com/aristath/zulu7/internal/modules/healthcheck"
	"github.com/aristath/zulu7/internal/modules/market"
	"github.com/aristath/zulu7/internal/modules/media"
	"github.com/aristath/zulu7/internal/modules/publish"
	"github.com/aristath/zulu7/internal/modules/streamer"
	"github.com/aristath/zulu7/internal/respond"
)

// Config holds the server dependencies
type Config struct {
	Log    zerolog.Logger
	Config *config.Config

	Market      *market.Handler
	HealthCheck *healthcheck.Handler
	Drive       *drive.Handler
	Embed       *embed.Proxy
	Feeds       *feeds.Handler
	Media       *media.Handler
	Publish     *publish.Handler
	Streamer    *streamer.Proxy
	System      *SystemHandlers
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config
	deps   Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	// Register common MIME types to ensure correct Content-Type headers
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".mjs", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")
	_ = mime.AddExtensionType(".woff2", "font/woff2")
	_ = mime.AddExtensionType(".webmanifest", "application/manifest+json")

	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
		deps:   cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	// No WriteTimeout: video, proxy and streamer responses are long-lived streams.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the root router
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging and request metrics
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Range"},
		ExposedHeaders: []string{"Content-Length", "Content-Range", "X-Cache"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// Buffered JSON endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5, "application/json", "text/xml"))
			}

			s.deps.Market.RegisterRoutes(r)
			s.deps.HealthCheck.RegisterRoutes(r)
			s.deps.Feeds.RegisterRoutes(r)
			s.deps.Media.RegisterRoutes(r)
			s.deps.Publish.RegisterRoutes(r)
			s.deps.System.RegisterRoutes(r)
		})

		// Streaming endpoints
		s.deps.Drive.RegisterRoutes(r)
		s.deps.Embed.RegisterRoutes(r)
		s.deps.Streamer.RegisterRoutes(r)

		r.NotFound(s.deps.Embed.Fallback(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respond.Error(w, http.StatusNotFound, "Not found")
		})).ServeHTTP)
	})

	s.router.NotFound(s.deps.Embed.Fallback(s.staticHandler()).ServeHTTP)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// staticHandler serves the built dashboard, answering client-side routes with index.html.
func (s *Server) staticHandler() http.Handler {
	dir := s.cfg.StaticDir
	index := filepath.Join(dir, "index.html")

	if _, err := os.Stat(index); err != nil {
		s.log.Warn().Str("dir", dir).Msg("Dashboard assets not found, serving API only")
		return http.NotFoundHandler()
	}

	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}

		clean := filepath.Clean("/" + r.URL.Path)
		if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(clean))); err == nil && !info.IsDir() {
			if strings.HasPrefix(clean, "/assets/") {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			}
			files.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, index)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, route, fmt.Sprint(ww.Status())).
			Observe(time.Since(start).Seconds())

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

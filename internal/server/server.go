// Package server provides the HTTP server for the try-on service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/tryon/internal/app"
	"github.com/ayusman/tryon/internal/capture"
	"github.com/ayusman/tryon/internal/server/api"
	"github.com/ayusman/tryon/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
	// Camera overrides the App's camera for the MJPEG stream.
	Camera      capture.Camera
	IngestRate  float64
	IngestBurst int
}

// Server represents the HTTP server for the try-on service.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	feed   *OverlayFeed

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	var pipeline api.Pipeline
	if s.config.App != nil {
		pipeline = s.config.App
	}

	if s.config.Store != nil {
		profileHandler := api.NewProfileHandler(s.config.Store, pipeline)
		samplesHandler := api.NewSamplesHandler(s.config.Store, pipeline)

		// /api/profiles/{id}/samples and /api/profiles/{id}/calibrate go to the samples handler
		profileRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/samples") || strings.HasSuffix(r.URL.Path, "/calibrate") {
				samplesHandler.ServeHTTP(w, r)
				return
			}
			profileHandler.ServeHTTP(w, r)
		})

		s.mux.Handle("/api/profiles", profileRouter)
		s.mux.Handle("/api/profiles/", profileRouter)
	}

	if s.config.App != nil {
		overlayHandler := api.NewOverlayHandler(s.config.App, s.config.IngestRate, s.config.IngestBurst)
		s.mux.HandleFunc("/api/overlay", overlayHandler.Overlay)
		s.mux.HandleFunc("/api/landmarks", overlayHandler.Landmarks)

		s.feed = NewOverlayFeed(s.config.App, DefaultFeedInterval)
		s.mux.Handle("/api/overlay/ws", s.feed)
	}

	camera := s.config.Camera
	if camera == nil && s.config.App != nil {
		camera = s.config.App.Camera()
	}
	if camera != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(camera))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	if s.config.Store != nil {
		if err := s.config.Store.Ping(r.Context()); err != nil {
			response["status"] = "degraded"
			response["db"] = err.Error()
		} else {
			response["db"] = "ok"
		}
	}

	if a := s.config.App; a != nil {
		response["pipeline"] = map[string]any{
			"running": a.Running(),
			"enabled": a.IsEnabled(),
			"profile": a.ActiveProfileID(),
			"stats":   a.Stats(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address. It returns nil
// after Shutdown, including when Shutdown ran first.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.http = srv
	s.mu.Unlock()

	log.WithField("addr", addr).Info("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the overlay feed and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.feed != nil {
		s.feed.Close()
	}

	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

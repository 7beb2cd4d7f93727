package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/migration-paths/internal/domain"
)

// WindowLoader serves focus windows.
type WindowLoader interface {
	Window(ctx context.Context, q domain.FocusQuery) (*domain.Window, error)
}

// FrameBuilder turns a frame request into a frame.
type FrameBuilder interface {
	Refocus(ctx context.Context, req domain.FrameRequest) (domain.Frame, error)
}

// API is everything the /api routes read from. Windows and Frames may be nil,
// in which case their routes are not registered.
type API struct {
	CaseStudy  *domain.CaseStudy
	Windows    WindowLoader
	Frames     FrameBuilder
	RadiusKm   float64
	IntervalKm float64
}

// Server exposes health, readiness, metrics and the window/frame API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the /api routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, api API, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	h := &handlers{api: api, logger: logger}
	if api.CaseStudy != nil {
		mux.HandleFunc("GET /api/casestudy", h.caseStudy)
		mux.HandleFunc("GET /api/anchors", h.anchors)
	}
	if api.Windows != nil {
		mux.HandleFunc("GET /api/window", h.window)
	}
	if api.Frames != nil {
		mux.HandleFunc("POST /api/frames", h.frames)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// Package view keeps per-client view state and turns frame requests into
// frames. A session owns the anchor lattice of its viewport and the last
// frame it produced; responses that arrive after a newer request started are
// discarded.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/flow"
	"github.com/couchcryptid/migration-paths/internal/geo"
	"github.com/couchcryptid/migration-paths/internal/observability"
)

// WindowSource loads focus windows. It is the only call a refocus waits on.
type WindowSource interface {
	Window(ctx context.Context, q domain.FocusQuery) (*domain.Window, error)
}

// Settings are the path-generation parameters shared by every session.
type Settings struct {
	RadiusKm     float64
	IntervalKm   float64
	BirdsPerPath float64
	Seed         string
	Workers      int
	IDW          flow.IDW
	MaxSessions  int
}

// State is a snapshot of what a session currently shows.
type State struct {
	Viewport   domain.Viewport
	Projection geo.Mercator
	Anchors    []geo.Point
	Window     *domain.Window
	Frame      *domain.Frame
}

// Session is the view state of one client.
type Session struct {
	id        string
	caseStudy *domain.CaseStudy
	source    WindowSource
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics

	generation atomic.Uint64

	mu      sync.Mutex
	lastSeq uint64
	state   State
}

// NewSession creates an empty session.
func NewSession(id string, cs *domain.CaseStudy, source WindowSource, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Session {
	return &Session{
		id:        id,
		caseStudy: cs,
		source:    source,
		settings:  settings,
		logger:    logger.With("session_id", id),
		metrics:   metrics,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns a copy of the current view state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refocus loads the requested window and rebuilds the frame. If another
// Refocus starts before this one finishes loading, the late result is
// dropped and ErrStaleRequest returned. A failed load keeps the previous
// frame.
func (s *Session) Refocus(ctx context.Context, req domain.FrameRequest) (domain.Frame, error) {
	if err := s.admit(req.Seq); err != nil {
		return domain.Frame{}, err
	}
	token := s.generation.Add(1)

	if req.StrataCount == 0 && len(s.caseStudy.StrataCounts) > 0 {
		req.StrataCount = s.caseStudy.StrataCounts[0]
	}

	proj, anchors, err := s.lattice(req.Viewport)
	if err != nil {
		return domain.Frame{}, err
	}

	window, err := s.source.Window(ctx, domain.FocusQuery{
		Focus:       req.Focus,
		Duration:    req.Duration(),
		StrataCount: req.StrataCount,
	})
	if s.generation.Load() != token {
		return domain.Frame{}, fmt.Errorf("%w: generation %d", domain.ErrStaleRequest, token)
	}
	if err != nil {
		s.logger.Warn("window load failed, keeping previous frame",
			"error", err,
			"focus", req.Focus,
			"strata_count", req.StrataCount,
		)
		return domain.Frame{}, fmt.Errorf("load window: %w", err)
	}

	frame, err := s.buildFrame(ctx, req, window, proj, anchors)
	if err != nil {
		return domain.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation.Load() != token {
		return domain.Frame{}, fmt.Errorf("%w: generation %d", domain.ErrStaleRequest, token)
	}
	s.state = State{
		Viewport:   req.Viewport,
		Projection: proj,
		Anchors:    anchors,
		Window:     window,
		Frame:      &frame,
	}
	return frame, nil
}

// admit rejects requests whose sequence number is not newer than the last
// one seen. Seq zero is always admitted.
func (s *Session) admit(seq uint64) error {
	if seq == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.lastSeq {
		return fmt.Errorf("%w: seq %d after %d", domain.ErrStaleRequest, seq, s.lastSeq)
	}
	s.lastSeq = seq
	return nil
}

// lattice reuses the anchors of the current viewport or generates new ones.
func (s *Session) lattice(vp domain.Viewport) (geo.Mercator, []geo.Point, error) {
	s.mu.Lock()
	cur := s.state
	s.mu.Unlock()
	if cur.Anchors != nil && cur.Viewport == vp {
		return cur.Projection, cur.Anchors, nil
	}

	proj, anchors, err := Lattice(s.caseStudy, vp, s.settings.RadiusKm, s.settings.IntervalKm)
	if err != nil {
		return geo.Mercator{}, nil, err
	}
	s.metrics.AnchorCount.Set(float64(len(anchors)))
	s.logger.Debug("anchors generated", "count", len(anchors), "width", vp.Width, "height", vp.Height)
	return proj, anchors, nil
}

func (s *Session) buildFrame(ctx context.Context, req domain.FrameRequest, w *domain.Window, proj geo.Mercator, anchors []geo.Point) (domain.Frame, error) {
	start := time.Now()
	lons, lats := s.caseStudy.RadarCoordinates()

	fb := flow.FrameBuilder{
		Gate:    flow.Gate{AnchorArea: s.settings.IntervalKm * s.settings.IntervalKm, BirdsPerPath: s.settings.BirdsPerPath, IDW: s.settings.IDW},
		Workers: s.settings.Workers,
	}
	paths, err := fb.Paths(ctx, w, anchors, flow.NewBuilder(s.settings.IDW, proj, lons, lats), flow.NewRand(s.settings.Seed))
	if err != nil {
		return domain.Frame{}, err
	}

	frame := domain.NewFrame(s.caseStudy.ID, req)
	frame.Focus = w.Focus
	frame.IntervalCount = w.IntervalCount
	frame.StrataCount = w.StrataCount
	frame.AnchorCount = len(anchors)
	frame.Paths = paths

	for _, p := range paths {
		s.metrics.PathsBuilt.WithLabelValues(strconv.Itoa(p.Stratum)).Inc()
	}
	elapsed := time.Since(start)
	s.metrics.FrameBuildDuration.Observe(elapsed.Seconds())
	s.logger.Debug("frame built",
		"frame_id", frame.ID,
		"paths", len(paths),
		"anchors", len(anchors),
		"elapsed", elapsed,
	)
	return frame, nil
}

// Lattice builds the projection of a viewport and the anchors inside it.
func Lattice(cs *domain.CaseStudy, vp domain.Viewport, radiusKm, intervalKm float64) (geo.Mercator, []geo.Point, error) {
	proj, err := geo.NewMercator(cs.MapCenter, cs.MapScaleFactor, vp.Width, vp.Height)
	if err != nil {
		return geo.Mercator{}, nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	bounds := proj.Bounds(vp.Width, vp.Height)
	anchors := flow.GenerateAnchors(bounds, cs.MapCenter, cs.RadarPoints(), radiusKm, intervalKm)
	if anchors == nil {
		anchors = []geo.Point{}
	}
	return proj, anchors, nil
}

package view

import (
	"container/list"
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/observability"
)

// DefaultMaxSessions bounds a registry whose settings leave MaxSessions unset.
const DefaultMaxSessions = 1024

// Registry hands out one Session per session id. It keeps at most
// MaxSessions sessions; the least recently used one is dropped to make room.
// A client whose session was dropped starts over with empty view state.
type Registry struct {
	caseStudy *domain.CaseStudy
	source    WindowSource
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu       sync.Mutex
	max      int
	order    *list.List // of *Session, most recently used at the front
	sessions map[string]*list.Element
}

// NewRegistry creates an empty registry whose sessions share cs, source and settings.
func NewRegistry(cs *domain.CaseStudy, source WindowSource, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	maxSessions := settings.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Registry{
		caseStudy: cs,
		source:    source,
		settings:  settings,
		logger:    logger,
		metrics:   metrics,
		max:       maxSessions,
		order:     list.New(),
		sessions:  make(map[string]*list.Element),
	}
}

// CaseStudy returns the case study served by the registry.
func (r *Registry) CaseStudy() *domain.CaseStudy { return r.caseStudy }

// Settings returns the shared path-generation settings.
func (r *Registry) Settings() Settings { return r.settings }

// Session returns the session for id, creating it on first use.
func (r *Registry) Session(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[id]; ok {
		r.order.MoveToFront(e)
		return e.Value.(*Session)
	}

	s := NewSession(id, r.caseStudy, r.source, r.settings, r.logger, r.metrics)
	r.sessions[id] = r.order.PushFront(s)
	for r.order.Len() > r.max {
		oldest := r.order.Back()
		evicted := r.order.Remove(oldest).(*Session)
		delete(r.sessions, evicted.ID())
		r.logger.Debug("session evicted", "session_id", evicted.ID(), "sessions", r.order.Len())
	}
	r.metrics.ActiveSessions.Set(float64(r.order.Len()))
	return s
}

// Refocus routes req to its session.
func (r *Registry) Refocus(ctx context.Context, req domain.FrameRequest) (domain.Frame, error) {
	return r.Session(req.SessionID).Refocus(ctx, req)
}

// Len returns the number of known sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

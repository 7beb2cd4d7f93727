package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/geo"
	"github.com/couchcryptid/migration-paths/internal/view"
)

const maxRequestBytes = 1 << 20

type handlers struct {
	api    API
	logger *slog.Logger
}

type anchorsResponse struct {
	Viewport domain.Viewport `json:"viewport"`
	Count    int             `json:"count"`
	Anchors  []geo.Point     `json:"anchors"`
}

func (h *handlers) caseStudy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.api.CaseStudy)
}

func (h *handlers) window(w http.ResponseWriter, r *http.Request) {
	q, err := parseFocusQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	win, err := h.api.Windows.Window(r.Context(), q)
	if err != nil {
		h.logger.Warn("window request failed", "error", err, "focus", q.Focus, "duration", q.Duration)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

func (h *handlers) anchors(w http.ResponseWriter, r *http.Request) {
	vp, err := parseViewport(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	_, anchors, err := view.Lattice(h.api.CaseStudy, vp, h.api.RadiusKm, h.api.IntervalKm)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, anchorsResponse{Viewport: vp, Count: len(anchors), Anchors: anchors})
}

func (h *handlers) frames(w http.ResponseWriter, r *http.Request) {
	var req domain.FrameRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode frame request: %w", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	frame, err := h.api.Frames.Refocus(r.Context(), req)
	if err != nil {
		if !errors.Is(err, domain.ErrStaleRequest) {
			h.logger.Warn("frame request failed", "error", err, "session_id", req.SessionID)
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func parseFocusQuery(r *http.Request) (domain.FocusQuery, error) {
	v := r.URL.Query()
	focus, err := time.Parse(time.RFC3339, v.Get("focus"))
	if err != nil {
		return domain.FocusQuery{}, fmt.Errorf("invalid focus %q: want RFC3339", v.Get("focus"))
	}
	duration, err := time.ParseDuration(v.Get("duration"))
	if err != nil || duration <= 0 {
		return domain.FocusQuery{}, fmt.Errorf("invalid duration %q", v.Get("duration"))
	}
	strata := 0
	if s := v.Get("strata"); s != "" {
		strata, err = strconv.Atoi(s)
		if err != nil || strata < 0 {
			return domain.FocusQuery{}, fmt.Errorf("invalid strata %q", s)
		}
	}
	return domain.FocusQuery{Focus: focus, Duration: duration, StrataCount: strata}, nil
}

func parseViewport(r *http.Request) (domain.Viewport, error) {
	v := r.URL.Query()
	width, err := strconv.Atoi(v.Get("width"))
	if err != nil {
		return domain.Viewport{}, fmt.Errorf("invalid width %q", v.Get("width"))
	}
	height, err := strconv.Atoi(v.Get("height"))
	if err != nil {
		return domain.Viewport{}, fmt.Errorf("invalid height %q", v.Get("height"))
	}
	return domain.Viewport{Width: width, Height: height}, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidStrataCount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrWindowOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStaleRequest):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

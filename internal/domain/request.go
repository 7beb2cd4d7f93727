package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// FrameRequest asks for the paths of one focus window. Seq is the client's
// generation counter for the session; zero means "no ordering".
type FrameRequest struct {
	SessionID     string    `json:"sessionId"`
	Seq           uint64    `json:"seq,omitempty"`
	Focus         time.Time `json:"focus"`
	DurationHours float64   `json:"durationHours"`
	StrataCount   int       `json:"strataCount,omitempty"`
	Viewport      Viewport  `json:"viewport"`
}

// Duration is the focus window length.
func (r FrameRequest) Duration() time.Duration {
	return time.Duration(r.DurationHours * float64(time.Hour))
}

// Validate checks the fields that do not depend on the case study.
func (r FrameRequest) Validate() error {
	switch {
	case r.SessionID == "":
		return fmt.Errorf("%w: sessionId is required", ErrInvalidRequest)
	case r.Focus.IsZero():
		return fmt.Errorf("%w: focus is required", ErrInvalidRequest)
	case r.DurationHours <= 0:
		return fmt.Errorf("%w: durationHours must be positive", ErrInvalidRequest)
	case r.StrataCount < 0:
		return fmt.Errorf("%w: strataCount must not be negative", ErrInvalidRequest)
	case r.Viewport.Width <= 0 || r.Viewport.Height <= 0:
		return fmt.Errorf("%w: viewport must have positive width and height", ErrInvalidRequest)
	}
	return nil
}

// ParseFrameRequest decodes a RawEvent's value into a FrameRequest. A missing
// session id falls back to the message key.
func ParseFrameRequest(raw RawEvent) (FrameRequest, error) {
	var req FrameRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return FrameRequest{}, fmt.Errorf("parse frame request: %w", err)
	}
	if req.SessionID == "" {
		req.SessionID = string(raw.Key)
	}
	if err := req.Validate(); err != nil {
		return FrameRequest{}, err
	}
	return req, nil
}

// NewFrame stamps an empty frame for the request with a fresh id and the
// current time.
func NewFrame(caseStudyID string, req FrameRequest) Frame {
	return Frame{
		ID:          uuid.NewString(),
		CaseStudyID: caseStudyID,
		SessionID:   req.SessionID,
		Seq:         req.Seq,
		Focus:       req.Focus.UTC(),
		StrataCount: req.StrataCount,
		Viewport:    req.Viewport,
		RenderedAt:  clock.Now().UTC(),
	}
}

// SerializeFrame marshals a frame into the sink-topic envelope, keyed by
// session so a session's frames stay ordered within a partition.
func SerializeFrame(f Frame) (OutputEvent, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize frame: %w", err)
	}
	return OutputEvent{
		Key:   []byte(f.SessionID),
		Value: data,
		Headers: map[string]string{
			"frame_id":    f.ID,
			"session_id":  f.SessionID,
			"seq":         strconv.FormatUint(f.Seq, 10),
			"path_count":  strconv.Itoa(len(f.Paths)),
			"rendered_at": f.RenderedAt.Format(time.RFC3339),
		},
	}, nil
}

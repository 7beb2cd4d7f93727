package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/migration-paths/internal/domain"
)

// Refocuser turns a frame request into a frame. *view.Registry implements it.
type Refocuser interface {
	Refocus(ctx context.Context, req domain.FrameRequest) (domain.Frame, error)
}

// FrameTransformer implements Transformer by routing each request to its view session.
type FrameTransformer struct {
	views  Refocuser
	logger *slog.Logger
}

// NewTransformer creates a FrameTransformer over the given sessions.
func NewTransformer(views Refocuser, logger *slog.Logger) *FrameTransformer {
	return &FrameTransformer{
		views:  views,
		logger: logger,
	}
}

func (t *FrameTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseFrameRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	frame, err := t.views.Refocus(ctx, req)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	t.logger.Debug("frame built",
		"session_id", frame.SessionID,
		"frame_id", frame.ID,
		"paths", len(frame.Paths),
	)
	return domain.SerializeFrame(frame)
}

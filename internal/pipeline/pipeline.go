package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/observability"
)

// BatchExtractor reads up to batchSize frame requests from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a frame request into a serialized frame.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader publishes serialized frames to the renderer.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Pipeline consumes frame requests and publishes one frame per session per
// batch. A request that a later request of the same session supersedes
// within the batch is committed without building its frame.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	published   atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has published at least one frame.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.published.Load() {
		return errors.New("pipeline has not published any frames yet")
	}
	return nil
}

// Run consumes batches until ctx is cancelled. Extract and load failures are
// retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	retry := newBackoff(200*time.Millisecond, 5*time.Second)
	for ctx.Err() == nil {
		if err := p.step(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error("batch failed", "error", err, "retry_in", retry.current)
			if !retry.wait(ctx) {
				break
			}
			continue
		}
		retry.reset()
	}
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// step runs one extract, coalesce, build, publish and commit cycle.
func (p *Pipeline) step(ctx context.Context) error {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return &stageError{stage: "extract", err: err}
	}
	if len(batch) == 0 {
		return nil
	}
	p.metrics.RequestsConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))

	latest, superseded := coalesce(batch)
	for _, raw := range superseded {
		p.logger.Debug("request superseded within batch",
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
	}
	p.metrics.StaleRequests.Add(float64(len(superseded)))

	// Everything but a published frame is settled now; published requests
	// settle once the loader accepts them.
	settled := superseded
	frames := make([]domain.OutputEvent, 0, len(latest))
	built := make([]domain.RawEvent, 0, len(latest))
	for _, raw := range latest {
		out, err := p.transformer.Transform(ctx, raw)
		switch {
		case err == nil:
			frames = append(frames, out)
			built = append(built, raw)
			continue
		case errors.Is(err, domain.ErrStaleRequest):
			p.logger.Debug("request superseded, skipping", "error", err, "offset", raw.Offset)
			p.metrics.StaleRequests.Inc()
		default:
			p.logger.Warn("frame request failed, skipping",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
		}
		settled = append(settled, raw)
	}

	if len(frames) > 0 {
		if err := p.loader.LoadBatch(ctx, frames); err != nil {
			return &stageError{stage: "load", err: err}
		}
		p.metrics.FramesProduced.Add(float64(len(frames)))
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.published.Store(true)
		settled = append(settled, built...)
	}

	p.commit(ctx, settled)
	return nil
}

// coalesce keeps the newest request of every session in batch and returns the
// rest as superseded. Newest means highest seq; unsequenced requests and ties
// go to the later message. Requests whose identity cannot be read are kept so
// the transformer reports them. The kept requests preserve batch order.
func coalesce(batch []domain.RawEvent) (latest, superseded []domain.RawEvent) {
	type pick struct {
		index int
		seq   uint64
	}
	newest := make(map[string]pick, len(batch))
	for i, raw := range batch {
		session, seq, ok := requestIdentity(raw)
		if !ok {
			continue
		}
		cur, seen := newest[session]
		if !seen || seq == 0 || cur.seq == 0 || seq >= cur.seq {
			newest[session] = pick{index: i, seq: seq}
		}
	}

	keep := make([]bool, len(batch))
	for _, pk := range newest {
		keep[pk.index] = true
	}
	for i, raw := range batch {
		if _, _, ok := requestIdentity(raw); !ok || keep[i] {
			latest = append(latest, raw)
		} else {
			superseded = append(superseded, raw)
		}
	}
	return latest, superseded
}

// requestIdentity reads the session id and seq of a frame request without
// validating the rest of it. The message key stands in for a missing id.
func requestIdentity(raw domain.RawEvent) (session string, seq uint64, ok bool) {
	var id struct {
		SessionID string `json:"sessionId"`
		Seq       uint64 `json:"seq"`
	}
	if err := json.Unmarshal(raw.Value, &id); err != nil {
		return "", 0, false
	}
	if id.SessionID == "" {
		id.SessionID = string(raw.Key)
	}
	return id.SessionID, id.Seq, id.SessionID != ""
}

// commit acknowledges settled requests in the order given. Failures are
// logged; the requests are redelivered after a restart.
func (p *Pipeline) commit(ctx context.Context, raws []domain.RawEvent) {
	for _, raw := range raws {
		if raw.Commit == nil {
			continue
		}
		if err := raw.Commit(ctx); err != nil {
			p.logger.Warn("commit offset failed", "error", err,
				"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
		}
	}
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + " batch: " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// backoff doubles its delay after every failed wait up to max.
type backoff struct {
	initial, max, current time.Duration
}

func newBackoff(initial, maxDelay time.Duration) *backoff {
	return &backoff{initial: initial, max: maxDelay, current: initial}
}

func (b *backoff) reset() { b.current = b.initial }

// wait sleeps for the current delay and grows it. It returns false if ctx
// ended first.
func (b *backoff) wait(ctx context.Context) bool {
	timer := time.NewTimer(b.current)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	b.current = min(2*b.current, b.max)
	return true
}

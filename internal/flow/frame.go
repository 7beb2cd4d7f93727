package flow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/geo"
)

// FrameBuilder produces every path of a window. Gate draws are taken in
// stratum-major, anchor-minor order on the caller's goroutine; the selected
// paths are then built on up to Workers goroutines.
type FrameBuilder struct {
	Gate    Gate
	Workers int
}

type job struct {
	stratum int
	anchor  geo.Point
}

// Paths gates and builds the paths of w for the given anchors. Output order
// follows gate order regardless of Workers.
func (f FrameBuilder) Paths(ctx context.Context, w *domain.Window, anchors []geo.Point, b *Builder, rng Source) ([]domain.Path, error) {
	if err := w.Validate(len(b.Lons)); err != nil {
		return nil, fmt.Errorf("build paths: %w", err)
	}

	var jobs []job
	for stri := 0; stri < w.StrataCount; stri++ {
		for _, a := range anchors {
			if f.Gate.Emit(rng, a, w.AvDensities[stri], b.Lons, b.Lats) {
				jobs = append(jobs, job{stratum: stri, anchor: a})
			}
		}
	}

	paths := make([]domain.Path, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, f.Workers))
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			samples := b.Build(w, j.stratum, j.anchor)
			if len(samples) != w.IntervalCount+1 {
				return fmt.Errorf("path at %v stratum %d: %d samples, want %d",
					j.anchor, j.stratum, len(samples), w.IntervalCount+1)
			}
			paths[i] = domain.Path{Stratum: j.stratum, Anchor: j.anchor, Samples: samples}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build paths: %w", err)
	}
	return paths, nil
}

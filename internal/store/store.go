// Package store serves focus windows out of an in-memory case-study grid.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/migration-paths/internal/domain"
)

// Store holds one validated case study and its grid. It is immutable after
// New and safe for concurrent use.
type Store struct {
	caseStudy *domain.CaseStudy
	grid      *domain.Grid
	logger    *slog.Logger
}

// New validates the case study metadata and the grid dimensions against it.
// Any mismatch is fatal: the grid is never truncated or padded.
func New(cs *domain.CaseStudy, grid *domain.Grid, logger *slog.Logger) (*Store, error) {
	if cs == nil || grid == nil {
		return nil, errors.New("store requires a case study and a grid")
	}
	if err := cs.Validate(); err != nil {
		return nil, err
	}
	if err := grid.Validate(cs); err != nil {
		return nil, fmt.Errorf("case study %q: %w", cs.ID, err)
	}
	logger.Info("case study loaded",
		"case_study", cs.ID,
		"segments", cs.SegmentCount(),
		"strata", cs.NativeStrata(),
		"radars", len(cs.Radars),
	)
	return &Store{caseStudy: cs, grid: grid, logger: logger}, nil
}

// CaseStudy returns the metadata the store was built from.
func (s *Store) CaseStudy() *domain.CaseStudy {
	return s.caseStudy
}

// CheckReadiness reports the store as ready once constructed.
func (s *Store) CheckReadiness(_ context.Context) error {
	if s == nil || s.grid == nil {
		return errors.New("grid not loaded")
	}
	return nil
}

// Window slices the grid to q. StrataCount zero selects the native band
// count. A window that does not fit inside the case study is an error.
func (s *Store) Window(ctx context.Context, q domain.FocusQuery) (*domain.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cs := s.caseStudy

	strata := q.StrataCount
	if strata == 0 {
		strata = cs.NativeStrata()
	}
	if !cs.SupportsStrataCount(strata) {
		return nil, fmt.Errorf("%w: %d into %d", domain.ErrInvalidStrataCount, strata, cs.NativeStrata())
	}

	count := int(q.Duration / cs.Interval())
	if count < 1 {
		return nil, fmt.Errorf("%w: duration %s is shorter than one %d-minute segment",
			domain.ErrWindowOutOfRange, q.Duration, cs.SegmentInterval)
	}
	from := cs.SegmentIndex(q.Focus)
	if from < 0 || from+count > cs.SegmentCount() {
		return nil, fmt.Errorf("%w: segments [%d, %d) not within [0, %d)",
			domain.ErrWindowOutOfRange, from, from+count, cs.SegmentCount())
	}
	to := from + count

	w := &domain.Window{
		CaseStudyID:     cs.ID,
		Focus:           cs.DateMin.Add(cs.Interval() * time.Duration(from)),
		FocusIndex:      from,
		IntervalCount:   count,
		IntervalMinutes: cs.SegmentInterval,
		StrataCount:     strata,
	}

	k := cs.NativeStrata() / strata
	w.Densities = regroupMean(s.grid.Densities[from:to], k)
	w.USpeeds = regroupMean(s.grid.USpeeds[from:to], k)
	w.VSpeeds = regroupMean(s.grid.VSpeeds[from:to], k)
	w.Speeds = regroupMean(s.grid.Speeds[from:to], k)
	w.AvDensities = regroupSum(s.grid.AvDensities, k)

	s.logger.Debug("window sliced",
		"case_study", cs.ID,
		"from", from,
		"count", count,
		"strata", strata,
	)
	return w, nil
}

// Command validate performs integrity checks on a case study and its grid:
// metadata consistency, grid dimensions, value sanity, and path generation
// over a spread of focus windows.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -case-study data/casestudies/enram-2016.yaml \
//	  -grid data/grids/enram-2016.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/migration-paths/internal/adapter/file"
	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/flow"
	"github.com/couchcryptid/migration-paths/internal/store"
	"github.com/couchcryptid/migration-paths/internal/view"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	duration time.Duration
	samples  int
	width    int
	height   int
}

func main() {
	csPath := flag.String("case-study", "", "case study metadata (.json or .yaml)")
	gridPath := flag.String("grid", "", "grid JSON produced by cmd/preprocess")
	duration := flag.Duration("duration", 6*time.Hour, "focus window length for the path phase")
	samples := flag.Int("samples", 8, "number of focus windows to build paths for")
	width := flag.Int("width", 800, "viewport width in pixels")
	height := flag.Int("height", 600, "viewport height in pixels")
	flag.Parse()

	if *csPath == "" || *gridPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts := options{duration: *duration, samples: *samples, width: *width, height: *height}
	if code := run(*csPath, *gridPath, opts); code != 0 {
		os.Exit(code)
	}
}

func run(csPath, gridPath string, opts options) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Println("=== Case Study Integrity Validation ===")
	fmt.Println()

	cs, err := file.LoadCaseStudy(csPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	grid, err := file.LoadGrid(gridPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{validateMetadata(cs)}
	dims := validateDimensions(cs, grid)
	phases = append(phases, dims)
	if dims.passed() {
		phases = append(phases, validateValues(grid), validatePaths(cs, grid, logger, opts))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Case study %s: %d segments, %d strata, %d radars\n",
		cs.ID, cs.SegmentCount(), cs.NativeStrata(), len(cs.Radars))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Metadata ──

func validateMetadata(cs *domain.CaseStudy) *phase {
	p := &phase{name: "Phase 1: Case Study Metadata"}
	if err := cs.Validate(); err != nil {
		for _, e := range unwrapAll(err) {
			p.errorf("%v", e)
		}
	}
	for _, r := range cs.Radars {
		if pt := r.Point(); math.Abs(pt.Lat) > 85 || math.Abs(pt.Lon) > 180 {
			p.errorf("radar %q: coordinate %v outside the projectable range", r.ID, r.Coordinate)
		}
	}
	return p
}

// unwrapAll flattens an errors.Join tree into its leaves.
func unwrapAll(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, unwrapAll(e)...)
		}
		return out
	}
	return []error{err}
}

// ── Phase 2: Dimensions ──

func validateDimensions(cs *domain.CaseStudy, g *domain.Grid) *phase {
	p := &phase{name: "Phase 2: Grid Dimensions"}
	if err := g.Validate(cs); err != nil {
		p.errorf("%v", err)
	}
	return p
}

// ── Phase 3: Values ──

func validateValues(g *domain.Grid) *phase {
	p := &phase{name: "Phase 3: Value Sanity"}
	for segi := range g.Densities {
		for stri := range g.Densities[segi] {
			for radi, c := range g.Densities[segi][stri] {
				if c.Valid && (c.Value < 0 || math.IsNaN(c.Value) || math.IsInf(c.Value, 0)) {
					p.errorf("densities[%d][%d][%d] = %g", segi, stri, radi, c.Value)
				}
				u, v, s := g.USpeeds[segi][stri][radi], g.VSpeeds[segi][stri][radi], g.Speeds[segi][stri][radi]
				if s.Valid && s.Value < 0 {
					p.errorf("speeds[%d][%d][%d] = %g is negative", segi, stri, radi, s.Value)
				}
				// A cell's mean speed can never be below the magnitude of its mean velocity.
				if u.Valid && v.Valid && s.Valid && s.Value+1e-6 < math.Hypot(u.Value, v.Value) {
					p.errorf("speeds[%d][%d][%d] = %g below |(u, v)| = %g",
						segi, stri, radi, s.Value, math.Hypot(u.Value, v.Value))
				}
			}
		}
	}
	for stri, f := range g.AvDensities {
		for radi, c := range f {
			if c.Valid && c.Value < 0 {
				p.errorf("avDensities[%d][%d] = %g is negative", stri, radi, c.Value)
			}
		}
	}
	return p
}

// ── Phase 4: Paths ──

func validatePaths(cs *domain.CaseStudy, g *domain.Grid, logger *slog.Logger, opts options) *phase {
	p := &phase{name: "Phase 4: Path Generation"}

	s, err := store.New(cs, g, logger)
	if err != nil {
		p.errorf("store: %v", err)
		return p
	}
	vp := domain.Viewport{Width: opts.width, Height: opts.height}
	proj, anchors, err := view.Lattice(cs, vp, 75, 10)
	if err != nil {
		p.errorf("anchors: %v", err)
		return p
	}
	if len(anchors) == 0 {
		p.errorf("no anchors within %dx%d viewport", vp.Width, vp.Height)
		return p
	}

	count := int(opts.duration / cs.Interval())
	last := cs.SegmentCount() - count
	if count < 1 || last < 0 {
		p.errorf("duration %s does not fit the case study", opts.duration)
		return p
	}
	lons, lats := cs.RadarCoordinates()
	builder := flow.NewBuilder(flow.DefaultIDW, proj, lons, lats)
	fb := flow.FrameBuilder{Gate: flow.NewGate(10, 50000), Workers: 4}

	for i := range max(opts.samples, 1) {
		segi := 0
		if opts.samples > 1 {
			segi = i * last / (opts.samples - 1)
		}
		focus := cs.DateMin.Add(time.Duration(segi) * cs.Interval())
		for _, strata := range cs.StrataCounts {
			w, err := s.Window(context.Background(), domain.FocusQuery{Focus: focus, Duration: opts.duration, StrataCount: strata})
			if err != nil {
				p.errorf("window %s/%d: %v", focus.Format(time.RFC3339), strata, err)
				continue
			}
			paths, err := fb.Paths(context.Background(), w, anchors, builder, flow.NewRand(flow.DefaultSeed))
			if err != nil {
				p.errorf("paths %s/%d: %v", focus.Format(time.RFC3339), strata, err)
				continue
			}
			for _, path := range paths {
				if len(path.Samples) != count+1 {
					p.errorf("path at %s stratum %d: %d samples, want %d",
						focus.Format(time.RFC3339), path.Stratum, len(path.Samples), count+1)
				}
				for j, smp := range path.Samples {
					if math.IsNaN(smp.X) || math.IsNaN(smp.Y) || math.IsNaN(smp.Density) {
						p.errorf("path at %s stratum %d: NaN in sample %d", focus.Format(time.RFC3339), path.Stratum, j)
						break
					}
				}
			}
		}
	}
	return p
}

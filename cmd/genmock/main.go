// Command genmock generates a synthetic case study fixture: the metadata
// file, a vertical-profile CSV export, and a sample frame built from them by
// the real preprocessing and path code. Output is reproducible for a given
// seed.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -seed 1
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/migration-paths/internal/adapter/file"
	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/flow"
	"github.com/couchcryptid/migration-paths/internal/geo"
	"github.com/couchcryptid/migration-paths/internal/observability"
	"github.com/couchcryptid/migration-paths/internal/preprocess"
	"github.com/couchcryptid/migration-paths/internal/store"
	"github.com/couchcryptid/migration-paths/internal/view"
)

var baseDate = time.Date(2016, time.September, 19, 12, 0, 0, 0, time.UTC)

var csvHeader = []string{
	"radar_id", "interval_start_time", "altitude_band", "u_speed", "v_speed",
	"bird_density", "vertical_integrated_density", "number_of_measurements",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for the fixture files")
	seed := flag.Int64("seed", 1, "random seed")
	missing := flag.Float64("missing", 0.02, "fraction of measurements written as NA")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	// Set a fixed clock for a reproducible RenderedAt.
	domain.SetClock(clockwork.NewFakeClockAt(baseDate.Add(48 * time.Hour)))
	defer domain.SetClock(nil)

	cs := mockCaseStudy()
	rng := rand.New(rand.NewSource(*seed)) //nolint:gosec // fixture data

	csPath := filepath.Join(*outDir, "casestudy.yaml")
	if err := writeYAML(csPath, cs); err != nil {
		return fmt.Errorf("writing case study: %w", err)
	}
	log.Printf("wrote case study: %s", csPath)

	var buf bytes.Buffer
	if err := writeProfiles(&buf, cs, rng, *missing); err != nil {
		return fmt.Errorf("generating profiles: %w", err)
	}
	csvPath := filepath.Join(*outDir, "profiles.csv")
	if err := os.WriteFile(csvPath, buf.Bytes(), 0o600); err != nil {
		return err
	}
	log.Printf("wrote profiles: %s", csvPath)

	records, err := preprocess.ReadRecords(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("reading back profiles: %w", err)
	}
	grid, stats, err := preprocess.Aggregate(cs, records)
	if err != nil {
		return fmt.Errorf("aggregating profiles: %w", err)
	}
	gridPath := filepath.Join(*outDir, "grid.json")
	if _, err := file.WriteGrid(gridPath, grid); err != nil {
		return err
	}
	log.Printf("wrote grid: %s (%d records, %d empty cells)", gridPath, stats.Records, stats.EmptyCells)

	frame, err := sampleFrame(cs, grid)
	if err != nil {
		return fmt.Errorf("building sample frame: %w", err)
	}
	framePath := filepath.Join(*outDir, "frame.json")
	if err := writeJSON(framePath, frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	log.Printf("wrote frame: %s (%d anchors, %d paths)", framePath, frame.AnchorCount, len(frame.Paths))
	return nil
}

// mockCaseStudy is a one-night episode over a 3×3 radar network.
func mockCaseStudy() *domain.CaseStudy {
	cs := &domain.CaseStudy{
		ID:              "mock-2016-09-19",
		Label:           "Synthetic autumn night",
		DateMin:         baseDate,
		DateMax:         baseDate.Add(24 * time.Hour),
		SegmentInterval: 20,
		StrataCounts:    []int{1, 2},
		MaxAltitude:     4000,
		MapCenter:       geo.Point{Lon: 5, Lat: 51.5},
		MapScaleFactor:  6,
	}
	for i := range 3 {
		for j := range 3 {
			cs.Radars = append(cs.Radars, domain.Radar{
				ID:         fmt.Sprintf("r%d%d", i, j),
				Name:       fmt.Sprintf("Mock radar %d-%d", i, j),
				Coordinate: []float64{3.5 + 1.5*float64(j), 50.5 + float64(i)},
			})
		}
	}
	return cs
}

// writeProfiles writes one CSV row per radar, segment and band. Density peaks
// a few hours after sunset; flight heads south-west with some noise.
func writeProfiles(w io.Writer, cs *domain.CaseStudy, rng *rand.Rand, missing float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	bands := cs.NativeStrata()
	heightKm := cs.StrataHeightKm(bands)
	for segi := range cs.SegmentCount() {
		t := cs.DateMin.Add(time.Duration(segi) * cs.Interval())
		activity := nocturnalActivity(t)
		for _, r := range cs.Radars {
			for band := 1; band <= bands; band++ {
				density := activity * 120 / float64(band) * (0.8 + 0.4*rng.Float64())
				heading := geo.Radians(215 + 20*rng.NormFloat64())
				speed := 8 + 4*float64(band) + 2*rng.Float64()
				u := speed * math.Sin(heading)
				v := speed * math.Cos(heading)

				row := []string{
					r.ID,
					t.Format(time.RFC3339),
					strconv.Itoa(band),
					measurement(u, rng, missing),
					measurement(v, rng, missing),
					measurement(density, rng, missing),
					measurement(density*heightKm, rng, missing),
					strconv.Itoa(1 + rng.Intn(10)),
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// nocturnalActivity is 0 in daylight and rises to 1 around 22:00 UTC.
func nocturnalActivity(t time.Time) float64 {
	h := float64(t.Hour()) + float64(t.Minute())/60
	if h >= 6 && h < 18 {
		return 0
	}
	if h < 6 {
		h += 24
	}
	return math.Max(0, math.Sin(math.Pi*(h-18)/12))
}

func measurement(v float64, rng *rand.Rand, missing float64) string {
	if rng.Float64() < missing {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func sampleFrame(cs *domain.CaseStudy, grid *domain.Grid) (domain.Frame, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.New(cs, grid, logger)
	if err != nil {
		return domain.Frame{}, err
	}
	settings := view.Settings{
		RadiusKm:     75,
		IntervalKm:   10,
		BirdsPerPath: 50000,
		Seed:         flow.DefaultSeed,
		Workers:      4,
		IDW:          flow.DefaultIDW,
	}
	registry := view.NewRegistry(cs, s, settings, logger, observability.NewMetricsForTesting())
	return registry.Refocus(context.Background(), domain.FrameRequest{
		SessionID:     "genmock",
		Focus:         baseDate.Add(10 * time.Hour),
		DurationHours: 6,
		StrataCount:   2,
		Viewport:      domain.Viewport{Width: 800, Height: 600},
	})
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// Package preprocess aggregates radar vertical-profile CSV exports into the
// grid file served by the store.
package preprocess

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/migration-paths/internal/domain"
)

// CSV column positions.
const (
	colRadarID = iota
	colIntervalStart
	colAltitudeBand
	colUSpeed
	colVSpeed
	colDensity
	colVerticalDensity
	colMeasurements

	columnCount
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// Record is one parsed CSV row. Measurements that were missing in the
// source are NaN.
type Record struct {
	Line            int
	RadarID         string
	IntervalStart   time.Time
	AltitudeBand    int // 1-based
	U, V            float64
	Density         float64
	VerticalDensity float64
	Measurements    int
}

// ReadRecords parses every row after the header.
func ReadRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var out []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rec, err := parseRow(row, line)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

func parseRow(row []string, line int) (Record, error) {
	if len(row) < columnCount {
		return Record{}, fmt.Errorf("line %d: want %d columns, got %d", line, columnCount, len(row))
	}

	t, err := parseTime(row[colIntervalStart])
	if err != nil {
		return Record{}, fmt.Errorf("line %d: interval_start_time: %w", line, err)
	}
	band, err := strconv.Atoi(strings.TrimSpace(row[colAltitudeBand]))
	if err != nil {
		return Record{}, fmt.Errorf("line %d: altitude_band: %w", line, err)
	}

	rec := Record{
		Line:          line,
		RadarID:       strings.TrimSpace(row[colRadarID]),
		IntervalStart: t,
		AltitudeBand:  band,
	}
	for _, f := range []struct {
		col int
		dst *float64
	}{
		{colUSpeed, &rec.U},
		{colVSpeed, &rec.V},
		{colDensity, &rec.Density},
		{colVerticalDensity, &rec.VerticalDensity},
	} {
		v, err := parseMeasurement(row[f.col])
		if err != nil {
			return Record{}, fmt.Errorf("line %d: column %d: %w", line, f.col+1, err)
		}
		*f.dst = v
	}
	if n := strings.TrimSpace(row[colMeasurements]); n != "" && !isMissing(n) {
		if rec.Measurements, err = strconv.Atoi(n); err != nil {
			return Record{}, fmt.Errorf("line %d: number_of_measurements: %w", line, err)
		}
	}
	return rec, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func isMissing(s string) bool {
	return s == "" || strings.EqualFold(s, "NA") || strings.EqualFold(s, "NaN")
}

func parseMeasurement(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// Stats summarises an aggregation run.
type Stats struct {
	Records    int
	Cells      int
	EmptyCells int
}

// Aggregate buckets records into segment × band × radar cells and averages
// each cell. Cells without measurements are stored as 0. Records outside the
// case study, for unknown radars or bands are rejected with their line.
func Aggregate(cs *domain.CaseStudy, records []Record) (*domain.Grid, Stats, error) {
	segn, strn, radn := cs.SegmentCount(), cs.NativeStrata(), len(cs.Radars)
	radarIdx := cs.RadarIndex()

	densities := newBuckets(segn, strn, radn)
	uSpeeds := newBuckets(segn, strn, radn)
	vSpeeds := newBuckets(segn, strn, radn)
	speeds := newBuckets(segn, strn, radn)

	for _, rec := range records {
		radi, ok := radarIdx[rec.RadarID]
		if !ok {
			return nil, Stats{}, fmt.Errorf("line %d: unknown radar %q", rec.Line, rec.RadarID)
		}
		segi := cs.SegmentIndex(rec.IntervalStart)
		if segi < 0 || segi >= segn {
			return nil, Stats{}, fmt.Errorf("line %d: time %s outside [%s, %s)", rec.Line,
				rec.IntervalStart.Format(time.RFC3339), cs.DateMin.Format(time.RFC3339), cs.DateMax.Format(time.RFC3339))
		}
		stri := rec.AltitudeBand - 1
		if stri < 0 || stri >= strn {
			return nil, Stats{}, fmt.Errorf("line %d: altitude band %d outside 1..%d", rec.Line, rec.AltitudeBand, strn)
		}

		densities.add(segi, stri, radi, rec.Density)
		uSpeeds.add(segi, stri, radi, rec.U)
		vSpeeds.add(segi, stri, radi, rec.V)
		speeds.add(segi, stri, radi, math.Hypot(rec.U, rec.V))
	}

	stats := Stats{Records: len(records), Cells: segn * strn * radn}
	g := &domain.Grid{
		Densities: densities.mean(&stats.EmptyCells),
		USpeeds:   uSpeeds.mean(nil),
		VSpeeds:   vSpeeds.mean(nil),
		Speeds:    speeds.mean(nil),
	}
	g.AvDensities = averageDensities(g.Densities, segn, strn, radn, cs.StrataHeightKm(strn))
	return g, stats, nil
}

// averageDensities integrates each band's density over time and height:
// Σ_seg density / segn × band height.
func averageDensities(d domain.ScalarGrid, segn, strn, radn int, heightKm float64) []domain.Field {
	av := make([]domain.Field, strn)
	series := make([]float64, segn)
	for stri := range av {
		av[stri] = make(domain.Field, radn)
		for radi := range av[stri] {
			for segi := range series {
				series[segi] = d[segi][stri][radi].Value
			}
			total := 0.0
			if segn > 0 {
				total = floats.Sum(series) / float64(segn) * heightKm
			}
			av[stri][radi] = domain.Some(total)
		}
	}
	return av
}

// buckets collects raw samples per cell. NaN samples are dropped.
type buckets [][][][]float64

func newBuckets(segn, strn, radn int) buckets {
	b := make(buckets, segn)
	for segi := range b {
		b[segi] = make([][][]float64, strn)
		for stri := range b[segi] {
			b[segi][stri] = make([][]float64, radn)
		}
	}
	return b
}

func (b buckets) add(segi, stri, radi int, v float64) {
	if math.IsNaN(v) {
		return
	}
	b[segi][stri][radi] = append(b[segi][stri][radi], v)
}

func (b buckets) mean(empty *int) domain.ScalarGrid {
	g := make(domain.ScalarGrid, len(b))
	for segi := range b {
		g[segi] = make([]domain.Field, len(b[segi]))
		for stri := range b[segi] {
			f := make(domain.Field, len(b[segi][stri]))
			for radi, vals := range b[segi][stri] {
				if len(vals) == 0 {
					f[radi] = domain.Some(0)
					if empty != nil {
						*empty++
					}
					continue
				}
				f[radi] = domain.Some(stat.Mean(vals, nil))
			}
			g[segi][stri] = f
		}
	}
	return g
}

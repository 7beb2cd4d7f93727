package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/migration-paths/internal/geo"
)

// Radar is a single weather radar in a case study.
type Radar struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name,omitempty" yaml:"name,omitempty"`
	Coordinate []float64 `json:"coordinate" yaml:"coordinate"` // [lon, lat]
}

// Point returns the radar position.
func (r Radar) Point() geo.Point {
	if len(r.Coordinate) != 2 {
		return geo.Point{}
	}
	return geo.Point{Lon: r.Coordinate[0], Lat: r.Coordinate[1]}
}

// CaseStudy is the metadata of a curated migration episode.
type CaseStudy struct {
	ID              string    `json:"id" yaml:"id"`
	Label           string    `json:"label,omitempty" yaml:"label,omitempty"`
	DateMin         time.Time `json:"dateMin" yaml:"dateMin"`
	DateMax         time.Time `json:"dateMax" yaml:"dateMax"`
	SegmentInterval int       `json:"segmentInterval" yaml:"segmentInterval"` // minutes
	StrataCounts    []int     `json:"strataCounts" yaml:"strataCounts"`
	MaxAltitude     float64   `json:"maxAltitude" yaml:"maxAltitude"` // metres
	MapCenter       geo.Point `json:"mapCenter" yaml:"mapCenter"`
	MapScaleFactor  float64   `json:"mapScaleFactor" yaml:"mapScaleFactor"`
	Radars          []Radar   `json:"radars" yaml:"radars"`
}

// Interval is the width of one time segment.
func (c *CaseStudy) Interval() time.Duration {
	return time.Duration(c.SegmentInterval) * time.Minute
}

// SegmentCount is the number of whole segments between DateMin and DateMax.
func (c *CaseStudy) SegmentCount() int {
	if c.SegmentInterval <= 0 {
		return 0
	}
	return int(c.DateMax.Sub(c.DateMin) / c.Interval())
}

// NativeStrata is the number of altitude bands stored in the grid.
func (c *CaseStudy) NativeStrata() int {
	n := 0
	for _, s := range c.StrataCounts {
		n = max(n, s)
	}
	return n
}

// StrataHeightKm is the thickness of one band when the column is split into
// strataCount bands.
func (c *CaseStudy) StrataHeightKm(strataCount int) float64 {
	if strataCount <= 0 {
		return 0
	}
	return c.MaxAltitude / float64(strataCount) / 1000
}

// SupportsStrataCount reports whether strataCount evenly divides the native
// band count.
func (c *CaseStudy) SupportsStrataCount(strataCount int) bool {
	native := c.NativeStrata()
	return strataCount > 0 && native > 0 && native%strataCount == 0
}

// SegmentIndex returns floor((t - DateMin) / interval). The result may be
// negative or beyond SegmentCount; callers range-check it.
func (c *CaseStudy) SegmentIndex(t time.Time) int {
	d := t.Sub(c.DateMin)
	iv := c.Interval()
	i := int(d / iv)
	if d < 0 && d%iv != 0 {
		i--
	}
	return i
}

// RadarIndex maps radar ids to their position in Radars.
func (c *CaseStudy) RadarIndex() map[string]int {
	idx := make(map[string]int, len(c.Radars))
	for i, r := range c.Radars {
		idx[r.ID] = i
	}
	return idx
}

// RadarPoints returns radar positions in radar order.
func (c *CaseStudy) RadarPoints() []geo.Point {
	pts := make([]geo.Point, len(c.Radars))
	for i, r := range c.Radars {
		pts[i] = r.Point()
	}
	return pts
}

// RadarCoordinates splits radar positions into parallel lon and lat slices.
func (c *CaseStudy) RadarCoordinates() (lons, lats []float64) {
	lons = make([]float64, len(c.Radars))
	lats = make([]float64, len(c.Radars))
	for i, r := range c.Radars {
		p := r.Point()
		lons[i], lats[i] = p.Lon, p.Lat
	}
	return lons, lats
}

// Validate checks the metadata for internal consistency.
func (c *CaseStudy) Validate() error {
	var errs []error
	if c.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if c.SegmentInterval <= 0 {
		errs = append(errs, fmt.Errorf("segmentInterval must be positive, got %d", c.SegmentInterval))
	}
	if !c.DateMax.After(c.DateMin) {
		errs = append(errs, fmt.Errorf("dateMax %s must be after dateMin %s",
			c.DateMax.Format(time.RFC3339), c.DateMin.Format(time.RFC3339)))
	}
	if c.MaxAltitude <= 0 {
		errs = append(errs, fmt.Errorf("maxAltitude must be positive, got %g", c.MaxAltitude))
	}
	if c.MapScaleFactor <= 0 {
		errs = append(errs, fmt.Errorf("mapScaleFactor must be positive, got %g", c.MapScaleFactor))
	}
	if len(c.StrataCounts) == 0 {
		errs = append(errs, errors.New("strataCounts must not be empty"))
	}
	native := c.NativeStrata()
	for _, s := range c.StrataCounts {
		if s <= 0 || (native > 0 && native%s != 0) {
			errs = append(errs, fmt.Errorf("strata count %d does not divide %d", s, native))
		}
	}
	if len(c.Radars) == 0 {
		errs = append(errs, errors.New("at least one radar is required"))
	}
	seen := make(map[string]bool, len(c.Radars))
	for i, r := range c.Radars {
		if r.ID == "" {
			errs = append(errs, fmt.Errorf("radar %d: id is required", i))
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("radar %d: duplicate id %q", i, r.ID))
		}
		seen[r.ID] = true
		if len(r.Coordinate) != 2 {
			errs = append(errs, fmt.Errorf("radar %q: coordinate must be [lon, lat]", r.ID))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("case study %q: %w", c.ID, err)
	}
	return nil
}

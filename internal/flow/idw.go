// Package flow turns a gridded migration window into flow paths: inverse
// distance weighting over radar values, the anchor lattice, Euler advection of
// individual paths and the density gate that decides which anchors get one.
package flow

import (
	"math"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/geo"
)

// AbsentPolicy controls how absent radar cells enter an interpolation.
type AbsentPolicy int

const (
	// AbsentSkip leaves absent cells out of both sums.
	AbsentSkip AbsentPolicy = iota
	// AbsentAsZero weights absent cells as zero-valued samples.
	AbsentAsZero
)

// DefaultPower is the IDW exponent used by the map.
const DefaultPower = 2

// IDW is an inverse-distance-weighted interpolator over radar positions.
// Distances are planar, in degrees.
type IDW struct {
	Power  float64
	Absent AbsentPolicy
}

// DefaultIDW squares distances and skips absent cells.
var DefaultIDW = IDW{Power: DefaultPower, Absent: AbsentSkip}

// At estimates the field at p. A radar exactly at p returns its own value.
// With no usable samples the result is 0.
func (w IDW) At(p geo.Point, values domain.Field, lons, lats []float64) float64 {
	var num, den float64
	for i, c := range values {
		if i >= len(lons) || i >= len(lats) {
			break
		}
		v := c.Value
		if !c.Valid {
			if w.Absent == AbsentSkip {
				continue
			}
			v = 0
		}

		d := math.Hypot(p.Lon-lons[i], p.Lat-lats[i])
		if d == 0 {
			return v
		}
		wt := 1 / math.Pow(d, w.Power)
		num += wt * v
		den += wt
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Interpolate is At with the default absent policy and the given power.
func Interpolate(lon, lat float64, values domain.Field, lons, lats []float64, power float64) float64 {
	return IDW{Power: power}.At(geo.Point{Lon: lon, Lat: lat}, values, lons, lats)
}

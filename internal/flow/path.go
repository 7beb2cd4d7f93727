package flow

import (
	"math"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/geo"
)

// speedToKm converts m/s × minutes into km.
const speedToKm = 0.06

// Projector maps geographic points to screen coordinates.
type Projector interface {
	Project(p geo.Point) (x, y float64)
}

// Builder advects single paths through a window's velocity field.
type Builder struct {
	IDW        IDW
	Projection Projector
	Lons       []float64
	Lats       []float64
}

// NewBuilder returns a Builder over the given radar coordinates.
func NewBuilder(idw IDW, proj Projector, lons, lats []float64) *Builder {
	return &Builder{IDW: idw, Projection: proj, Lons: lons, Lats: lats}
}

// Build returns the path through stratum stri seeded at anchor. The anchor
// sits at index Half(); earlier samples are found by walking the field
// backwards in time, later ones forwards. The result has IntervalCount+1
// samples.
func (b *Builder) Build(w *domain.Window, stri int, anchor geo.Point) domain.PathData {
	n := w.IntervalCount
	half := w.Half()
	tf := float64(w.IntervalMinutes) * speedToKm
	out := make(domain.PathData, n+1)

	loc := anchor
	for segi := half - 1; segi >= 0; segi-- {
		du := b.at(loc, w.USpeeds[segi][stri]) * tf
		dv := b.at(loc, w.VSpeeds[segi][stri]) * tf
		bearing := math.Atan2(-du, -dv)
		loc = geo.DestinationRad(loc, bearing, math.Hypot(du, dv))
		out[segi] = b.sample(loc, b.at(loc, w.Densities[segi][stri]), bearing)
	}

	loc = anchor
	for segi := half; segi < n; segi++ {
		density := b.at(loc, w.Densities[segi][stri])
		du := b.at(loc, w.USpeeds[segi][stri]) * tf
		dv := b.at(loc, w.VSpeeds[segi][stri]) * tf
		bearing := math.Atan2(du, dv)
		out[segi] = b.sample(loc, density, bearing)
		loc = geo.DestinationRad(loc, bearing, math.Hypot(du, dv))
	}

	closing := 0.0
	if half < n {
		closing = b.at(loc, w.Densities[half][stri])
	}
	out[n] = b.sample(loc, closing, 0)
	return out
}

func (b *Builder) at(p geo.Point, f domain.Field) float64 {
	return b.IDW.At(p, f, b.Lons, b.Lats)
}

func (b *Builder) sample(p geo.Point, density, bearing float64) domain.PathSample {
	s := domain.PathSample{Lon: p.Lon, Lat: p.Lat, Density: density, Bearing: bearing}
	if b.Projection != nil {
		s.X, s.Y = b.Projection.Project(p)
	}
	return s
}

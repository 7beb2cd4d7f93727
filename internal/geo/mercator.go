package geo

import (
	"errors"
	"math"
)

// Mercator is a spherical Mercator projection positioned the way the map
// renderer positions it: Scale pixels per radian, Center projected onto
// Translate.
type Mercator struct {
	Scale     float64
	Translate [2]float64
	Center    Point

	y0 float64
}

// ErrEmptyViewport is returned for viewports without a positive area.
var ErrEmptyViewport = errors.New("viewport must have positive width and height")

// NewMercator builds the projection for a map of the given pixel size.
// scaleFactor is multiplied by width to get the projection scale.
func NewMercator(center Point, scaleFactor float64, width, height int) (Mercator, error) {
	if width <= 0 || height <= 0 {
		return Mercator{}, ErrEmptyViewport
	}
	return Mercator{
		Scale:     scaleFactor * float64(width),
		Translate: [2]float64{float64(width) / 2, float64(height) / 2},
		Center:    center,
		y0:        mercY(Radians(center.Lat)),
	}, nil
}

// Project maps a geographic point to pixel coordinates.
func (m Mercator) Project(p Point) (x, y float64) {
	x = m.Translate[0] + m.Scale*Radians(p.Lon-m.Center.Lon)
	y = m.Translate[1] - m.Scale*(mercY(Radians(p.Lat))-m.y0)
	return x, y
}

// Invert maps pixel coordinates back to a geographic point.
func (m Mercator) Invert(x, y float64) Point {
	lambda := (x - m.Translate[0]) / m.Scale
	yy := m.y0 + (m.Translate[1]-y)/m.Scale
	phi := 2*math.Atan(math.Exp(yy)) - math.Pi/2
	return Point{Lon: m.Center.Lon + Degrees(lambda), Lat: Degrees(phi)}
}

// Bounds returns the geographic extent of a width×height viewport.
func (m Mercator) Bounds(width, height int) Bounds {
	return Bounds{
		TopLeft:     m.Invert(0, 0),
		BottomRight: m.Invert(float64(width), float64(height)),
	}
}

func mercY(phi float64) float64 {
	return math.Log(math.Tan(math.Pi/4 + phi/2))
}

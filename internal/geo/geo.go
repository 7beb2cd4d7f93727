// Package geo holds the spherical-earth helpers used to advect paths and lay
// out anchors: destination points, great-circle angles and a Mercator
// projection. All public inputs and outputs are in degrees unless a name says
// otherwise.
package geo

import "math"

// EarthRadiusKm is the mean earth radius used by every distance calculation.
const EarthRadiusKm = 6371.0

// Point is a WGS-84 position in degrees.
type Point struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// Bounds is the geographic rectangle covered by a viewport. TopLeft holds the
// west edge and north edge, BottomRight the east and south edges.
type Bounds struct {
	TopLeft     Point `json:"top_left"`
	BottomRight Point `json:"bottom_right"`
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// DistAngle returns the arc, in degrees, subtended by km along a great circle.
func DistAngle(km float64) float64 {
	return Degrees(km / EarthRadiusKm)
}

// Destination returns the point reached by travelling km from p along the
// initial bearing bearingDeg (degrees clockwise from north).
func Destination(p Point, bearingDeg, km float64) Point {
	return DestinationRad(p, Radians(bearingDeg), km)
}

// DestinationRad is Destination with the bearing given in radians.
func DestinationRad(p Point, bearing, km float64) Point {
	delta := km / EarthRadiusKm
	phi1 := Radians(p.Lat)
	lambda1 := Radians(p.Lon)

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	sinDelta, cosDelta := math.Sincos(delta)

	phi2 := math.Asin(sinPhi1*cosDelta + cosPhi1*sinDelta*math.Cos(bearing))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(bearing)*sinDelta*cosPhi1,
		cosDelta-sinPhi1*math.Sin(phi2),
	)

	return Point{Lon: Degrees(lambda2), Lat: Degrees(phi2)}
}

// AngularDistance returns the great-circle angle between a and b in radians,
// computed with the haversine formula.
func AngularDistance(a, b Point) float64 {
	phi1, phi2 := Radians(a.Lat), Radians(b.Lat)
	dPhi := phi2 - phi1
	dLambda := Radians(b.Lon - a.Lon)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	return AngularDistance(a, b) * EarthRadiusKm
}

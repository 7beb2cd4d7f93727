package flow

import "github.com/couchcryptid/migration-paths/internal/geo"

// GenerateAnchors lays a lattice of roughly intervalKm spacing over bounds and
// keeps the points within radiusKm of at least one radar. Longitude steps are
// taken at center. Points come out west to east, and north to south within
// each longitude column.
func GenerateAnchors(bounds geo.Bounds, center geo.Point, radars []geo.Point, radiusKm, intervalKm float64) []geo.Point {
	if intervalKm <= 0 || len(radars) == 0 {
		return nil
	}

	dlon := geo.Destination(center, 90, intervalKm).Lon - center.Lon
	dlat := geo.Destination(center, 0, intervalKm).Lat - center.Lat
	if dlon <= 0 || dlat <= 0 {
		return nil
	}
	maxAngle := geo.DistAngle(radiusKm)

	var anchors []geo.Point
	for lon := bounds.TopLeft.Lon; lon < bounds.BottomRight.Lon; lon += dlon {
		for lat := bounds.TopLeft.Lat; lat > bounds.BottomRight.Lat; lat -= dlat {
			p := geo.Point{Lon: lon, Lat: lat}
			for _, r := range radars {
				if geo.Degrees(geo.AngularDistance(r, p)) <= maxAngle {
					anchors = append(anchors, p)
					break
				}
			}
		}
	}
	return anchors
}

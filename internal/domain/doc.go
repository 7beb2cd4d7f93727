// Package domain models weather-radar bird-migration data and the flow paths
// derived from it.
//
// # Data Source
//
// Observations come from a network of weather radars that report vertical
// profiles of birds. Each radar contributes, per time segment and altitude
// band, a bird density and a horizontal velocity. Case studies are curated
// date ranges for a fixed set of radars; their metadata lives in a YAML or
// JSON file and their values in a pre-aggregated grid file produced by
// cmd/preprocess.
//
// # Units
//
//	densities       birds/km³, averaged over a segment × band × radar cell
//	uSpeeds         eastward velocity component, m/s
//	vSpeeds         northward velocity component, m/s
//	speeds          hypot(u, v), m/s
//	avDensities     birds/km² within a band, averaged over the whole case
//	                study: Σ densities / SegmentCount × band height (km)
//	segment         SegmentInterval minutes (20 in the published case studies)
//	altitude band   MaxAltitude / NativeStrata metres, indexed from the ground
//
// # Grid Layout
//
// All time-varying arrays are indexed [segment][stratum][radar]. Segment 0
// starts at DateMin; radar order follows the Radars slice of the case study.
// A cell is either a measured value or absent (JSON null); absent cells are
// skipped by interpolation rather than treated as zero.
//
// # Paths
//
// A path is an Euler-integrated polyline through the interpolated velocity
// field, centred on an anchor at the middle of the focus window: half of it
// is walked backwards in time from the anchor, half forwards. Each sample
// carries the projected position, the interpolated density and a bearing in
// radians measured clockwise from north.
package domain

package domain

import (
	"time"

	"github.com/couchcryptid/migration-paths/internal/geo"
)

// PathSample is one vertex of a flow path.
type PathSample struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
	Density float64 `json:"density"`
	Bearing float64 `json:"bearing"` // radians, clockwise from north
}

// PathData is the ordered sample list of one path. A path built over a
// window of n segments holds n+1 samples.
type PathData []PathSample

// Path is a path tagged with the stratum and anchor it was seeded from.
type Path struct {
	Stratum int       `json:"stratum"`
	Anchor  geo.Point `json:"anchor"`
	Samples PathData  `json:"samples"`
}

// Viewport is the pixel size of the rendered map.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Frame is the full set of paths for one focus window, ready for rendering.
type Frame struct {
	ID            string    `json:"id"`
	CaseStudyID   string    `json:"caseStudyId"`
	SessionID     string    `json:"sessionId,omitempty"`
	Seq           uint64    `json:"seq,omitempty"`
	Focus         time.Time `json:"focus"`
	IntervalCount int       `json:"intervalCount"`
	StrataCount   int       `json:"strataCount"`
	Viewport      Viewport  `json:"viewport"`
	AnchorCount   int       `json:"anchorCount"`
	Paths         []Path    `json:"paths"`
	RenderedAt    time.Time `json:"renderedAt"`
}

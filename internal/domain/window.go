package domain

import (
	"fmt"
	"time"
)

// Window is a read-only view of the grid restricted to a focus interval and
// regrouped to a strata count. The time-varying arrays hold IntervalCount
// segments starting at FocusIndex.
type Window struct {
	CaseStudyID     string    `json:"caseStudyId"`
	Focus           time.Time `json:"focus"`
	FocusIndex      int       `json:"focusIndex"`
	IntervalCount   int       `json:"intervalCount"`
	IntervalMinutes int       `json:"intervalMinutes"`
	StrataCount     int       `json:"strataCount"`

	Densities   ScalarGrid `json:"densities"`
	USpeeds     ScalarGrid `json:"uSpeeds"`
	VSpeeds     ScalarGrid `json:"vSpeeds"`
	Speeds      ScalarGrid `json:"speeds"`
	AvDensities []Field    `json:"avDensities"`
}

// Validate checks every array against the window's IntervalCount and
// StrataCount and the given radar count. The first mismatch is returned as a
// *DimensionError.
func (w *Window) Validate(radarCount int) error {
	if w.IntervalCount < 1 || w.StrataCount < 1 {
		return fmt.Errorf("window has %d intervals and %d strata, want at least one of each",
			w.IntervalCount, w.StrataCount)
	}
	for _, a := range []struct {
		name string
		grid ScalarGrid
	}{
		{"densities", w.Densities},
		{"uSpeeds", w.USpeeds},
		{"vSpeeds", w.VSpeeds},
		{"speeds", w.Speeds},
	} {
		if err := validateScalarGrid(a.name, a.grid, w.IntervalCount, w.StrataCount, radarCount); err != nil {
			return err
		}
	}
	return validateStrataFields("avDensities", w.AvDensities, w.StrataCount, radarCount)
}

// Half is the segment index at which the path anchor sits.
func (w *Window) Half() int {
	return w.IntervalCount / 2
}

// FocusQuery selects a window: the segment containing Focus, Duration worth
// of segments from there, regrouped to StrataCount bands.
type FocusQuery struct {
	Focus       time.Time
	Duration    time.Duration
	StrataCount int
}

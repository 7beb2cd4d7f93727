package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrWindowOutOfRange is returned when a focus window does not fit inside
	// the case study's segment range.
	ErrWindowOutOfRange = errors.New("focus window outside case study range")

	// ErrInvalidStrataCount is returned when a strata count does not divide
	// the grid's native band count.
	ErrInvalidStrataCount = errors.New("strata count does not divide native strata")

	// ErrStaleRequest marks a response that was superseded by a newer request
	// for the same session. It is discarded, not reported.
	ErrStaleRequest = errors.New("request superseded")

	// ErrInvalidRequest wraps every frame-request validation failure.
	ErrInvalidRequest = errors.New("invalid frame request")
)

// DimensionError reports a grid array whose length disagrees with the case
// study metadata.
type DimensionError struct {
	Array string // e.g. "densities[3][1]"
	Want  int
	Got   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("grid %s: want length %d, got %d", e.Array, e.Want, e.Got)
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Cell is a grid value that may be absent. The zero Cell is absent.
type Cell struct {
	Value float64
	Valid bool
}

// Some returns a present cell holding v.
func Some(v float64) Cell { return Cell{Value: v, Valid: true} }

// MarshalJSON encodes absent cells as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, c.Value, 'g', -1, 64), nil
}

// UnmarshalJSON decodes null as an absent cell.
func (c *Cell) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Cell{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode cell: %w", err)
	}
	*c = Some(v)
	return nil
}

// Field is one value per radar, in radar order.
type Field []Cell

// ScalarGrid is indexed [segment][stratum][radar].
type ScalarGrid [][]Field

// Grid holds every pre-aggregated array of a case study.
type Grid struct {
	Densities   ScalarGrid `json:"densities"`
	USpeeds     ScalarGrid `json:"uSpeeds"`
	VSpeeds     ScalarGrid `json:"vSpeeds"`
	Speeds      ScalarGrid `json:"speeds"`
	AvDensities []Field    `json:"avDensities"` // [stratum][radar]
}

// Validate checks every array against the case study dimensions: segment
// count, native strata and radar count. The first mismatch is returned as a
// *DimensionError.
func (g *Grid) Validate(cs *CaseStudy) error {
	segn, strn, radn := cs.SegmentCount(), cs.NativeStrata(), len(cs.Radars)

	for _, a := range []struct {
		name string
		grid ScalarGrid
	}{
		{"densities", g.Densities},
		{"uSpeeds", g.USpeeds},
		{"vSpeeds", g.VSpeeds},
		{"speeds", g.Speeds},
	} {
		if err := validateScalarGrid(a.name, a.grid, segn, strn, radn); err != nil {
			return err
		}
	}

	return validateStrataFields("avDensities", g.AvDensities, strn, radn)
}

func validateStrataFields(name string, fs []Field, strn, radn int) error {
	if len(fs) != strn {
		return &DimensionError{Array: name, Want: strn, Got: len(fs)}
	}
	for stri, f := range fs {
		if len(f) != radn {
			return &DimensionError{Array: fmt.Sprintf("%s[%d]", name, stri), Want: radn, Got: len(f)}
		}
	}
	return nil
}

func validateScalarGrid(name string, g ScalarGrid, segn, strn, radn int) error {
	if len(g) != segn {
		return &DimensionError{Array: name, Want: segn, Got: len(g)}
	}
	for segi, strata := range g {
		if len(strata) != strn {
			return &DimensionError{Array: fmt.Sprintf("%s[%d]", name, segi), Want: strn, Got: len(strata)}
		}
		for stri, f := range strata {
			if len(f) != radn {
				return &DimensionError{Array: fmt.Sprintf("%s[%d][%d]", name, segi, stri), Want: radn, Got: len(f)}
			}
		}
	}
	return nil
}

// NewScalarGrid allocates a segn×strn×radn grid of absent cells.
func NewScalarGrid(segn, strn, radn int) ScalarGrid {
	g := make(ScalarGrid, segn)
	for segi := range g {
		g[segi] = make([]Field, strn)
		for stri := range g[segi] {
			g[segi][stri] = make(Field, radn)
		}
	}
	return g
}

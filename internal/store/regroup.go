package store

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/migration-paths/internal/domain"
)

// regroupMean merges every k consecutive bands into one by averaging the
// present cells per radar. A group with no present cell stays absent. With
// k == 1 the input is returned as is.
func regroupMean(g domain.ScalarGrid, k int) domain.ScalarGrid {
	if k <= 1 {
		return g
	}
	out := make(domain.ScalarGrid, len(g))
	for segi, strata := range g {
		out[segi] = mergeBands(strata, k, func(vals []float64) float64 {
			return stat.Mean(vals, nil)
		})
	}
	return out
}

// regroupSum merges every k consecutive bands of a per-area density by
// summing them: a thicker band holds the birds of all its parts.
func regroupSum(av []domain.Field, k int) []domain.Field {
	if k <= 1 {
		return av
	}
	return mergeBands(av, k, floats.Sum)
}

func mergeBands(strata []domain.Field, k int, reduce func([]float64) float64) []domain.Field {
	n := len(strata) / k
	out := make([]domain.Field, n)
	vals := make([]float64, 0, k)
	for gi := range out {
		radn := len(strata[gi*k])
		merged := make(domain.Field, radn)
		for radi := range merged {
			vals = vals[:0]
			for stri := gi * k; stri < (gi+1)*k; stri++ {
				if c := strata[stri][radi]; c.Valid {
					vals = append(vals, c.Value)
				}
			}
			if len(vals) > 0 {
				merged[radi] = domain.Some(reduce(vals))
			}
		}
		out[gi] = merged
	}
	return out
}

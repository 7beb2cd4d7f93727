package flow

import (
	"hash/fnv"
	"math/rand"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/geo"
)

// DefaultSeed names the random stream used when none is configured.
const DefaultSeed = "ENRAM"

// Source is the slice of *rand.Rand the gate needs.
type Source interface {
	Float64() float64
}

// Gate decides, per anchor and stratum, whether a path is drawn. Each path
// stands for BirdsPerPath birds; an anchor represents AnchorArea km².
type Gate struct {
	AnchorArea   float64
	BirdsPerPath float64
	IDW          IDW
}

// NewGate sizes the gate for an anchor lattice of intervalKm spacing.
func NewGate(intervalKm, birdsPerPath float64) Gate {
	return Gate{
		AnchorArea:   intervalKm * intervalKm,
		BirdsPerPath: birdsPerPath,
		IDW:          DefaultIDW,
	}
}

// Probability is the expected emission rate at anchor. Values above 1 always
// emit.
func (g Gate) Probability(anchor geo.Point, avDensities domain.Field, lons, lats []float64) float64 {
	if g.BirdsPerPath <= 0 {
		return 0
	}
	return g.IDW.At(anchor, avDensities, lons, lats) * g.AnchorArea / g.BirdsPerPath
}

// Emit consumes exactly one draw from rng and reports whether to build a path.
func (g Gate) Emit(rng Source, anchor geo.Point, avDensities domain.Field, lons, lats []float64) bool {
	draw := rng.Float64()
	return draw < g.Probability(anchor, avDensities, lons, lats)
}

// Seed hashes a seed name into a rand seed.
func Seed(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name)) //nolint:errcheck // hash writes never fail
	return int64(h.Sum64())
}

// NewRand returns a random stream seeded from name.
func NewRand(name string) *rand.Rand {
	return rand.New(rand.NewSource(Seed(name))) //nolint:gosec // reproducible visual sampling
}

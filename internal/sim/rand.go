package sim

import (
	"math/rand/v2"
)

// Rand is the randomness the phases draw from. *rand.Rand satisfies it.
type Rand interface {
	// Float64 returns a uniform sample in [0, 1).
	Float64() float64
	// IntN returns a uniform sample in [0, n).
	IntN(n int) int
	// ExpFloat64 returns an exponential sample with mean 1.
	ExpFloat64() float64
}

// NewRand returns a PCG-backed generator. A zero seed picks a random one;
// the seed in use is returned so runs can be reproduced.
func NewRand(seed uint64) (*rand.Rand, uint64) {
	if seed == 0 {
		seed = rand.Uint64() | 1
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), seed
}

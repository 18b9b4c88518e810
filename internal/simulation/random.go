package simulation

import (
	"math/rand/v2"
	"time"
)

// Source is the random stream the engine draws from. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// NewSource returns a PCG source. A zero seed picks one from the clock.
func NewSource(seed uint64) Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	// #nosec G404 - simulated readings do not need cryptographic randomness
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func uniform(r Source, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func uniformDuration(r Source, lo, hi time.Duration) time.Duration {
	return lo + time.Duration(r.Float64()*float64(hi-lo))
}

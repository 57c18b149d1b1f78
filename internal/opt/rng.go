package opt

import "math/rand"

const defaultSeed int64 = 1

// deriveSeed mixes the run seed with an (iteration, ant) stream id using the
// SplitMix64 finalizer, so each ant draws from its own stream no matter which
// worker runs it.
func deriveSeed(run int64, iteration, ant int) int64 {
	if run == 0 {
		run = defaultSeed
	}
	stream := uint64(iteration)<<32 | uint64(uint32(ant))
	x := uint64(run) ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x)
}

func antRand(run int64, iteration, ant int) *rand.Rand {
	return rand.New(rand.NewSource(deriveSeed(run, iteration, ant)))
}

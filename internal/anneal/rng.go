package anneal

import "math/rand"

// defaultSeed replaces a zero seed.
const defaultSeed int64 = 1

// NewRand returns the deterministic source for a seed. Zero maps to
// defaultSeed.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = defaultSeed
	}
	return rand.New(rand.NewSource(seed))
}

// DeriveSeed mixes a base seed and a stream number into an independent
// seed using the SplitMix64 finalizer. Runs of a batch use their index as
// the stream.
func DeriveSeed(base int64, stream uint64) int64 {
	x := uint64(base) ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x)
}

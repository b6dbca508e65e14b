// Package entropy provides the single randomness source a room draws from.
// Every stochastic rule decision flows through one seeded Source so a room
// replays identically from its seed and action log.
// See design doc Section 3.
package entropy

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
)

// Source is a deterministic random stream for one room. It is not safe for
// concurrent use; rooms are single-writer.
type Source struct {
	seed int64
	rng  *rand.Rand
}

// NewSource creates a source from the given seed.
func NewSource(seed int64) *Source {
	return &Source{
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// FreshSeed returns a nonzero seed from the operating system, for rooms
// created without an explicit one.
func FreshSeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; a fixed
		// fallback keeps room creation working.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) &^ (1 << 63))
	if seed == 0 {
		seed = 1
	}
	return seed
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Intn returns a uniform int in [0, n). Panics if n <= 0, matching
// math/rand.
func (s *Source) Intn(n int) int {
	return s.rng.Intn(n)
}

// Roll6 returns a uniform die roll in [1, 6].
func (s *Source) Roll6() int {
	return s.rng.Intn(6) + 1
}

// Shuffle randomizes the order of n elements via the swap function.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.rng.Shuffle(n, swap)
}

// Perm returns a random permutation of [0, n).
func (s *Source) Perm(n int) []int {
	return s.rng.Perm(n)
}

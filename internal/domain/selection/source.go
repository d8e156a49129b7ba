package selection

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Source yields uniformly distributed integers in [0, maxExclusive).
// maxExclusive is always positive.
type Source interface {
	Next(maxExclusive int) int
}

// SeededSource is a deterministic, goroutine-safe Source.
type SeededSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSource returns a Source whose sequence is fixed by seed.
func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))} //nolint:gosec // puzzle picks are not security sensitive
}

// NewRandomSource seeds a SeededSource from crypto/rand.
func NewRandomSource() (*SeededSource, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	return NewSeededSource(binary.LittleEndian.Uint64(b[:])), nil
}

// Next returns a value in [0, maxExclusive).
func (s *SeededSource) Next(maxExclusive int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(maxExclusive)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(maxExclusive int) int

// Next calls f.
func (f SourceFunc) Next(maxExclusive int) int { return f(maxExclusive) }

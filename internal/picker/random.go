package picker

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	mathrand "math/rand/v2"
	"sync"
	"sync/atomic"
)

// Source yields uniformly distributed 32-bit values.
type Source interface {
	Uint32() (uint32, error)
}

// CryptoSource reads from the operating system's CSPRNG.
type CryptoSource struct{}

func (CryptoSource) Uint32() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("crypto source: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// MathSource is a seeded PCG generator. It is not suitable where picks must
// be unpredictable and is only used when the crypto source fails, or in tests.
type MathSource struct {
	mu  sync.Mutex
	rng *mathrand.Rand
}

// NewMathSource returns a deterministic source for the given seed.
func NewMathSource(seed uint64) *MathSource {
	return &MathSource{rng: mathrand.New(mathrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *MathSource) Uint32() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Uint32(), nil
}

// UniformIndex returns an unbiased index in [0, n) using rejection sampling:
// values at or above the largest multiple of n that fits in 32 bits are redrawn.
func UniformIndex(src Source, n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("uniform index: n must be positive")
	}
	if uint64(n) > 1<<32 {
		return 0, fmt.Errorf("uniform index: n %d exceeds source range", n)
	}

	bucket := (uint64(1) << 32) / uint64(n) * uint64(n)
	for {
		v, err := src.Uint32()
		if err != nil {
			return 0, err
		}
		if uint64(v) < bucket {
			return int(uint64(v) % uint64(n)), nil
		}
	}
}

// Generator draws indexes from a primary source and switches permanently to
// the fallback once the primary fails.
type Generator struct {
	primary  Source
	fallback Source
	weak     atomic.Bool
}

// NewGenerator returns a generator backed by the OS CSPRNG with a PCG
// fallback seeded from seed.
func NewGenerator(seed uint64) *Generator {
	return NewGeneratorWith(CryptoSource{}, NewMathSource(seed))
}

// NewGeneratorWith builds a generator from explicit sources. A nil fallback
// makes primary failures fatal to the draw.
func NewGeneratorWith(primary, fallback Source) *Generator {
	return &Generator{primary: primary, fallback: fallback}
}

// Index returns a uniform index in [0, n).
func (g *Generator) Index(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("uniform index: n must be positive")
	}
	if !g.weak.Load() {
		idx, err := UniformIndex(g.primary, n)
		if err == nil {
			return idx, nil
		}
		if g.fallback == nil {
			return 0, err
		}
		g.weak.Store(true)
	}
	return UniformIndex(g.fallback, n)
}

// Weak reports whether draws come from the lower-quality fallback source.
func (g *Generator) Weak() bool { return g.weak.Load() }

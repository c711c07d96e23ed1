package picker

import (
	"errors"
	"math"
	"testing"

	"github.com/mmcdole/pickflix/internal/domain"
)

func TestUniformIndexRange(t *testing.T) {
	src := NewMathSource(1)
	for n := 1; n <= 50; n++ {
		for i := 0; i < 200; i++ {
			idx, err := UniformIndex(src, n)
			if err != nil {
				t.Fatalf("UniformIndex(%d): %v", n, err)
			}
			if idx < 0 || idx >= n {
				t.Fatalf("UniformIndex(%d) = %d", n, idx)
			}
		}
	}
}

func TestUniformIndexChiSquare(t *testing.T) {
	const (
		n     = 5
		draws = 100_000
		// chi-square critical value for 4 degrees of freedom at p = 0.0001
		critical = 23.51
	)

	src := NewMathSource(20240601)
	var counts [n]int
	for i := 0; i < draws; i++ {
		idx, err := UniformIndex(src, n)
		if err != nil {
			t.Fatal(err)
		}
		if idx < 0 || idx >= n {
			t.Fatalf("index %d out of range", idx)
		}
		counts[idx]++
	}

	expected := float64(draws) / n
	var chi2 float64
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	if chi2 > critical || math.IsNaN(chi2) {
		t.Errorf("chi-square = %.2f exceeds %.2f, counts = %v", chi2, critical, counts)
	}
}

func TestUniformIndexRejectsBiasedValues(t *testing.T) {
	// For n = 3 the accepted range is [0, 4294967295); the top value is redrawn.
	src := &scriptedSource{values: []uint32{math.MaxUint32, 4}}
	idx, err := UniformIndex(src, 3)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 1 {
		t.Errorf("idx = %d, want 1", idx)
	}
	if src.calls != 2 {
		t.Errorf("source called %d times, want 2", src.calls)
	}
}

func TestUniformIndexInvalidN(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := UniformIndex(NewMathSource(1), n); err == nil {
			t.Errorf("UniformIndex(%d) should fail", n)
		}
	}
}

func TestMathSourceDeterministic(t *testing.T) {
	a, b := NewMathSource(9), NewMathSource(9)
	for i := 0; i < 10; i++ {
		va, _ := a.Uint32()
		vb, _ := b.Uint32()
		if va != vb {
			t.Fatalf("seeded sources diverged at %d", i)
		}
	}
}

func TestGeneratorFallsBack(t *testing.T) {
	failing := &scriptedSource{err: errors.New("entropy unavailable")}
	g := NewGeneratorWith(failing, NewMathSource(3))

	if g.Weak() {
		t.Fatal("weak before any draw")
	}
	idx, err := g.Index(4)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if idx < 0 || idx >= 4 {
		t.Errorf("idx = %d", idx)
	}
	if !g.Weak() {
		t.Error("expected weak after primary failure")
	}

	// The primary is not retried once the fallback is active.
	g.Index(4)
	if failing.calls != 1 {
		t.Errorf("primary called %d times, want 1", failing.calls)
	}
}

func TestGeneratorWithoutFallback(t *testing.T) {
	g := NewGeneratorWith(&scriptedSource{err: errors.New("no entropy")}, nil)
	if _, err := g.Index(2); err == nil {
		t.Error("expected error without fallback")
	}
	if g.Weak() {
		t.Error("weak without fallback")
	}
}

func TestCryptoSource(t *testing.T) {
	g := NewGenerator(1)
	for i := 0; i < 100; i++ {
		idx, err := g.Index(7)
		if err != nil {
			t.Fatal(err)
		}
		if idx < 0 || idx >= 7 {
			t.Fatalf("idx = %d", idx)
		}
	}
	if g.Weak() {
		t.Error("crypto source fell back")
	}
}

func TestWeakRandomInState(t *testing.T) {
	g := NewGeneratorWith(&scriptedSource{err: errors.New("no entropy")}, NewMathSource(1))
	p := New(testCatalog(t, 1, 2), newMockStore(domain.ModeLocal), Options{Generator: g})
	p.Pick(t.Context())
	if !p.Peek().WeakRandom {
		t.Error("state should report weak randomness")
	}
}

package randengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntRange(t *testing.T) {
	tests := []struct {
		name string
		lo   int
		hi   int
	}{
		{name: "fallback range", lo: 5, hi: 40},
		{name: "single value", lo: 7, hi: 7},
		{name: "reversed bounds", lo: 40, hi: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(42)
			lo, hi := tt.lo, tt.hi
			if hi < lo {
				lo, hi = hi, lo
			}
			for i := 0; i < 1000; i++ {
				v := e.IntRange(tt.lo, tt.hi)
				if v < lo || v > hi {
					t.Fatalf("IntRange(%d, %d) = %d, out of range", tt.lo, tt.hi, v)
				}
			}
		})
	}
}

func TestUniformBounds(t *testing.T) {
	e := New(7)
	for i := 0; i < 1000; i++ {
		v := e.Uniform(0.45, 0.7)
		assert.GreaterOrEqual(t, v, 0.45)
		assert.Less(t, v, 0.7)
	}
}

func TestSameSeedSameSequence(t *testing.T) {
	a := New(1234)
	b := New(1234)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.IntRange(5, 40), b.IntRange(5, 40))
		assert.Equal(t, a.Uniform(90, 150), b.Uniform(90, 150))
	}
}

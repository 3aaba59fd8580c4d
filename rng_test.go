package netsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func draw(src RandSource, n int) []float64 {
	out := make([]float64, n)
	for idx := range out {
		out[idx] = src.RandU01()
	}
	return out
}

func TestSeededStreamIsReproducible(t *testing.T) {
	a := CreateSeededStream(42, "link-a")
	b := CreateSeededStream(42, "link-a")
	assert.Equal(t, draw(a, 100), draw(b, 100))
	assert.Equal(t, uint64(42), a.Seed())
	assert.Equal(t, "link-a", a.Name())
}

func TestSeededStreamsDiffer(t *testing.T) {
	base := draw(CreateSeededStream(42, "link-a"), 16)
	assert.NotEqual(t, base, draw(CreateSeededStream(42, "link-b"), 16))
	assert.NotEqual(t, base, draw(CreateSeededStream(43, "link-a"), 16))
}

func TestNamedStreamRange(t *testing.T) {
	src := CreateNamedStream("named")
	for _, u := range draw(src, 1000) {
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 1.0)
	}
}

func TestSeededStreamRangeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64().Draw(t, "seed")
		name := rapid.String().Draw(t, "name")
		src := CreateSeededStream(seed, name)
		for i := 0; i < 64; i++ {
			u := src.RandU01()
			if u < 0.0 || u >= 1.0 {
				t.Fatalf("sample %v outside [0,1)", u)
			}
		}
	})
}

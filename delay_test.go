package netsim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestExponentialDelayRespectsFloor(t *testing.T) {
	ed, err := CreateExponentialDelay(1e-6, 2e-5, CreateSeededStream(1, "delay"))
	require.NoError(t, err)
	assert.InDelta(t, 2e-5, ed.Mean(), 1e-12)
	assert.Equal(t, 1e-6, ed.MinDelay())

	samples := make([]float64, 20000)
	for idx := range samples {
		samples[idx] = ed.Next()
		require.GreaterOrEqual(t, samples[idx], 1e-6)
	}

	// floor plus the exponential mean, to within a few standard errors
	assert.InEpsilon(t, 2.1e-5, stat.Mean(samples, nil), 0.05)
}

func TestExponentialDelayIsInverseCDF(t *testing.T) {
	ed, err := CreateExponentialDelay(0.5, 2.0, &scriptedSource{samples: []float64{0.0, 1 - math.Exp(-1)}})
	require.NoError(t, err)
	assert.Equal(t, 0.5, ed.Next())
	assert.InDelta(t, 2.5, ed.Next(), 1e-12)
}

func TestExponentialDelayValidation(t *testing.T) {
	src := CreateSeededStream(1, "delay")
	for _, mean := range []float64{0.0, -1.0, math.NaN(), math.Inf(1)} {
		_, err := CreateExponentialDelay(0.0, mean, src)
		assert.Error(t, err, "mean %v", mean)
	}
	for _, floor := range []float64{-1e-6, math.NaN(), math.Inf(1)} {
		_, err := CreateExponentialDelay(floor, 1.0, src)
		assert.Error(t, err, "floor %v", floor)
	}
	_, err := CreateExponentialDelay(0.0, 1.0, nil)
	assert.Error(t, err)
}

func TestUniformDelayBounds(t *testing.T) {
	ud, err := CreateUniformDelay(0.25, 0.75, CreateSeededStream(2, "uniform"))
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		d := ud.Next()
		require.GreaterOrEqual(t, d, 0.25)
		require.LessOrEqual(t, d, 0.75)
	}

	same, err := CreateUniformDelay(0.3, 0.3, CreateSeededStream(2, "uniform"))
	require.NoError(t, err)
	assert.Equal(t, 0.3, same.Next())

	_, err = CreateUniformDelay(0.75, 0.25, CreateSeededStream(2, "uniform"))
	assert.Error(t, err)
	_, err = CreateUniformDelay(-0.1, 0.25, CreateSeededStream(2, "uniform"))
	assert.Error(t, err)
	_, err = CreateUniformDelay(0.1, math.Inf(1), CreateSeededStream(2, "uniform"))
	assert.Error(t, err)
	_, err = CreateUniformDelay(0.1, 0.2, nil)
	assert.Error(t, err)
}

func TestConstantDelay(t *testing.T) {
	cd, err := CreateConstantDelay(0.125)
	require.NoError(t, err)
	assert.Equal(t, 0.125, cd.Next())
	assert.Equal(t, 0.125, cd.Next())

	_, err = CreateConstantDelay(-1.0)
	assert.Error(t, err)
}

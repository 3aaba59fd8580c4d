package netsim

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// scriptedSource replays a fixed list of samples, then repeats the last one
type scriptedSource struct {
	samples []float64
	idx     int
}

func (ss *scriptedSource) RandU01() float64 {
	r := ss.samples[ss.idx]
	if ss.idx < len(ss.samples)-1 {
		ss.idx += 1
	}
	return r
}

// noLoss builds a loss generator that never drops
func noLoss() LossGenerator {
	return &UniformLoss{lossProb: 0.0, src: &scriptedSource{samples: []float64{0.5}}}
}

// allLoss builds a loss generator that always drops
func allLoss() LossGenerator {
	return &UniformLoss{lossProb: 1.0, src: &scriptedSource{samples: []float64{0.5}}}
}

// fixedDelay builds a delay generator returning d every time
func fixedDelay(d float64) DelayGenerator {
	return &ConstantDelay{delay: d}
}

// scriptedDelay replays the given delays, then repeats the last one
type scriptedDelay struct {
	delays []float64
	idx    int
}

func (sd *scriptedDelay) Next() float64 {
	d := sd.delays[sd.idx]
	if sd.idx < len(sd.delays)-1 {
		sd.idx += 1
	}
	return d
}

func decodeKernelTrace(t *testing.T, rec TraceInst) KernelTrace {
	var kt KernelTrace
	require.NoError(t, yaml.Unmarshal([]byte(rec.TraceStr), &kt))
	return kt
}

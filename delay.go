package netsim

// delay.go holds generators of delay values, in seconds

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DelayGenerator produces a non-negative delay (seconds) each time Next is called
type DelayGenerator interface {
	Next() float64
}

// ExponentialDelay draws from an exponential distribution with the given mean (1/lambda)
// and adds a fixed minimum delay to every sample
type ExponentialDelay struct {
	minDelay float64
	dist     distuv.Exponential
	src      RandSource
}

// CreateExponentialDelay is a constructor.  mean must be positive and minDelay non-negative.
func CreateExponentialDelay(minDelay, mean float64, src RandSource) (*ExponentialDelay, error) {
	if !(mean > 0.0) || math.IsInf(mean, 0) {
		return nil, fmt.Errorf("mean must be positive, got %v", mean)
	}
	if !(minDelay >= 0.0) || math.IsInf(minDelay, 0) {
		return nil, fmt.Errorf("minimum delay must be non-negative, got %v", minDelay)
	}
	if src == nil {
		return nil, fmt.Errorf("exponential delay needs a random source")
	}
	ed := new(ExponentialDelay)
	ed.minDelay = minDelay
	ed.dist = distuv.Exponential{Rate: 1.0 / mean}
	ed.src = src
	return ed, nil
}

// Mean returns the mean of the exponential part of the delay
func (ed *ExponentialDelay) Mean() float64 {
	return ed.dist.Mean()
}

// MinDelay returns the floor added to every sample
func (ed *ExponentialDelay) MinDelay() float64 {
	return ed.minDelay
}

func (ed *ExponentialDelay) Next() float64 {
	return ed.dist.Quantile(ed.src.RandU01()) + ed.minDelay
}

// UniformDelay draws uniformly between a lower and upper bound
type UniformDelay struct {
	dist distuv.Uniform
	src  RandSource
}

// CreateUniformDelay is a constructor.  It requires 0 <= lower <= upper.
func CreateUniformDelay(lower, upper float64, src RandSource) (*UniformDelay, error) {
	if !(lower >= 0.0) || math.IsInf(upper, 0) {
		return nil, fmt.Errorf("uniform delay bounds must be finite and non-negative, got [%v, %v]", lower, upper)
	}
	if !(lower <= upper) {
		return nil, fmt.Errorf("uniform delay lower bound %v exceeds upper bound %v", lower, upper)
	}
	if src == nil {
		return nil, fmt.Errorf("uniform delay needs a random source")
	}
	ud := new(UniformDelay)
	ud.dist = distuv.Uniform{Min: lower, Max: upper}
	ud.src = src
	return ud, nil
}

func (ud *UniformDelay) Next() float64 {
	return ud.dist.Quantile(ud.src.RandU01())
}

// ConstantDelay returns the same delay every time
type ConstantDelay struct {
	delay float64
}

// CreateConstantDelay is a constructor
func CreateConstantDelay(delay float64) (*ConstantDelay, error) {
	if !(delay >= 0.0) || math.IsInf(delay, 0) {
		return nil, fmt.Errorf("constant delay must be non-negative, got %v", delay)
	}
	return &ConstantDelay{delay: delay}, nil
}

func (cd *ConstantDelay) Next() float64 {
	return cd.delay
}

package netsim

// loss.go holds generators that decide whether a message is lost.
// Next returns true when loss is indicated.

import "fmt"

// LossGenerator embodies a loss process; each call to Next is one trial of it
type LossGenerator interface {
	Next() bool
}

func checkProbability(name string, p float64) error {
	if !(p >= 0.0 && p <= 1.0) {
		return fmt.Errorf("%s must be in [0, 1], got %v", name, p)
	}
	return nil
}

// UniformLoss indicates loss independently on every call, with a fixed probability
type UniformLoss struct {
	lossProb float64
	src      RandSource
}

// CreateUniformLoss is a constructor
func CreateUniformLoss(lossProb float64, src RandSource) (*UniformLoss, error) {
	if err := checkProbability("loss probability", lossProb); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("uniform loss needs a random source")
	}
	return &UniformLoss{lossProb: lossProb, src: src}, nil
}

// LossProbability returns the probability that Next reports a loss
func (ul *UniformLoss) LossProbability() float64 {
	return ul.lossProb
}

func (ul *UniformLoss) Next() bool {
	return ul.src.RandU01() < ul.lossProb
}

// LossState is the state of a MarkovLoss process
type LossState int

const (
	NoLoss LossState = iota
	Loss
)

func (ls LossState) String() string {
	switch ls {
	case NoLoss:
		return "NO_LOSS"
	case Loss:
		return "LOSS"
	}
	return fmt.Sprintf("LossState(%d)", int(ls))
}

// MarkovLoss is a two-state Markov loss process (a Gilbert model).
// From NoLoss a call moves to Loss with probability lossProb and reports a loss
// when it does.  From Loss a call moves back to NoLoss with probability
// recoverProb and reports no loss only when it recovers.
type MarkovLoss struct {
	lossProb    float64
	recoverProb float64
	state       LossState
	src         RandSource
}

// CreateMarkovLoss is a constructor.  The process starts in the NoLoss state.
func CreateMarkovLoss(lossProb, recoverProb float64, src RandSource) (*MarkovLoss, error) {
	if err := checkProbability("loss probability", lossProb); err != nil {
		return nil, err
	}
	if err := checkProbability("recovery probability", recoverProb); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("markov loss needs a random source")
	}
	ml := new(MarkovLoss)
	ml.lossProb = lossProb
	ml.recoverProb = recoverProb
	ml.state = NoLoss
	ml.src = src
	return ml, nil
}

// State returns the current state of the process
func (ml *MarkovLoss) State() LossState {
	return ml.state
}

func (ml *MarkovLoss) Next() bool {
	r := ml.src.RandU01()
	if ml.state == NoLoss {
		if r < ml.lossProb {
			ml.state = Loss
			return true
		}
		return false
	}

	if r < ml.recoverProb {
		ml.state = NoLoss
		return false
	}
	return true
}

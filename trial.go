package netsim

// trial.go drives many independent randomized trials of a protocol.  The protocol
// itself is supplied by the caller as a TrialFunc; the runner gives each trial a
// fresh Simulator, a MessageFactory and random streams derived from the trial's
// seed, so that any single trial can be reproduced from the seed the summary reports.

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// ErrTrialFailed is the error a TrialFunc returns (possibly wrapped) when the protocol
// under test did not reach the state it should have
var ErrTrialFailed = errors.New("trial failed")

// TrialFunc builds the nodes of one trial, runs it and judges the outcome.
// A non-nil return marks the trial as failed.
type TrialFunc func(trial *Trial) error

// Trial is the environment of one trial
type Trial struct {
	Index  int
	Seed   uint64
	Cfg    *TrialCfg
	Sim    *Simulator
	Msgs   *MessageFactory
	Logger *zap.Logger

	chnlLogger *zap.Logger
}

// CreateTrial is a constructor.  RunTrials calls it for every trial; it is exported so a
// failing trial can be rebuilt and examined on its own.
func CreateTrial(cfg *TrialCfg, index int, seed uint64) *Trial {
	trial := new(Trial)
	trial.Index = index
	trial.Seed = seed
	trial.Cfg = cfg
	trial.Sim = CreateSimulator()
	trial.Msgs = CreateMessageFactory()
	trial.Logger = zap.NewNop()
	trial.chnlLogger = zap.NewNop()
	return trial
}

// Stream returns the random stream of the given name for this trial
func (trial *Trial) Stream(name string) *SeededStream {
	return CreateSeededStream(trial.Seed, name)
}

// DelayGenerator returns the exponential delay process the configuration describes,
// drawing from the trial's stream "<name>/delay"
func (trial *Trial) DelayGenerator(name string) (DelayGenerator, error) {
	return CreateExponentialDelay(trial.Cfg.MinDelay, trial.Cfg.MeanDelay, trial.Stream(name+"/delay"))
}

// LossGenerator returns the loss process the configuration describes, drawing from the
// trial's stream "<name>/loss".  It is a Markov process when the configuration has a
// recover rate and a uniform one otherwise.
func (trial *Trial) LossGenerator(name string) (LossGenerator, error) {
	src := trial.Stream(name + "/loss")
	if trial.Cfg.RecoverRate > 0.0 {
		return CreateMarkovLoss(trial.Cfg.LossRate, trial.Cfg.RecoverRate, src)
	}
	return CreateUniformLoss(trial.Cfg.LossRate, src)
}

// CreateChannel returns a channel on the trial's simulator using the configured delay and loss processes
func (trial *Trial) CreateChannel(name string) (*Channel, error) {
	delay, err := trial.DelayGenerator(name)
	if err != nil {
		return nil, err
	}
	loss, err := trial.LossGenerator(name)
	if err != nil {
		return nil, err
	}
	chnl, err := CreateChannel(trial.Sim, name, delay, loss)
	if err != nil {
		return nil, err
	}
	chnl.SetLogger(trial.chnlLogger)
	return chnl, nil
}

// RebootAt returns the configured reboot offset of the named node, if it has one
func (trial *Trial) RebootAt(node string) (float64, bool) {
	offset, present := trial.Cfg.Reboots[node]
	return offset, present
}

// Run drives the trial's simulator under the configured stop condition.  Validate
// allows at most one of MaxEvents and Duration; with neither the queue is drained.
func (trial *Trial) Run() error {
	switch {
	case trial.Cfg.MaxEvents > 0:
		return trial.Sim.ExecuteSteps(trial.Cfg.MaxEvents)
	case trial.Cfg.Duration > 0.0:
		return trial.Sim.ExecuteDuration(trial.Cfg.Duration)
	}
	return trial.Sim.Execute()
}

// TrialResult is the outcome of one trial
type TrialResult struct {
	Index   int     `json:"index" yaml:"index"`
	Seed    uint64  `json:"seed" yaml:"seed"`
	Events  uint64  `json:"events" yaml:"events"`
	SimTime float64 `json:"simtime" yaml:"simtime"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed is true when the trial's TrialFunc returned an error
func (tr TrialResult) Failed() bool {
	return len(tr.Error) > 0
}

// TrialSummary gathers the results of a run of trials
type TrialSummary struct {
	Name         string        `json:"name" yaml:"name"`
	BaseSeed     uint64        `json:"baseseed" yaml:"baseseed"`
	Results      []TrialResult `json:"results" yaml:"results"`
	Failures     int           `json:"failures" yaml:"failures"`
	MeanEvents   float64       `json:"meanevents" yaml:"meanevents"`
	StdDevEvents float64       `json:"stddevevents" yaml:"stddevevents"`
	MeanSimTime  float64       `json:"meansimtime" yaml:"meansimtime"`
}

// FailedSeeds returns the seeds of the trials that failed, in the order they ran
func (ts *TrialSummary) FailedSeeds() []uint64 {
	seeds := make([]uint64, 0, ts.Failures)
	for _, tr := range ts.Results {
		if tr.Failed() {
			seeds = append(seeds, tr.Seed)
		}
	}
	return seeds
}

func randomSeed() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// RunTrials runs cfg.Trials trials of fn.  Trial i is seeded with base+i, where base is
// cfg.Seed or, when that is zero, a random value recorded in the summary.
// The returned error reports a problem with the run itself; failed trials are
// reported in the summary.
func RunTrials(cfg *TrialCfg, fn TrialFunc) (*TrialSummary, error) {
	if fn == nil {
		return nil, fmt.Errorf("RunTrials needs a trial function")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := cfg.Seed
	if base == 0 {
		var err error
		if base, err = randomSeed(); err != nil {
			return nil, fmt.Errorf("drawing a base seed: %w", err)
		}
	}

	trialLogger := NewLogger(cfg.Verbose.Trial).Named(cfg.Name)
	simLogger := NewLogger(cfg.Verbose.Simulator).Named("sim")
	chnlLogger := NewLogger(cfg.Verbose.Channel).Named("channel")
	defer trialLogger.Sync()

	var tm *TraceManager
	if len(cfg.TraceFile) > 0 {
		// find out now, not after every trial has run
		if err := CheckOutputFiles([]string{cfg.TraceFile}); err != nil {
			return nil, fmt.Errorf("trace file %s: %w", cfg.TraceFile, err)
		}
		tm = CreateTraceManager(cfg.Name, true)
	}

	summary := new(TrialSummary)
	summary.Name = cfg.Name
	summary.BaseSeed = base
	summary.Results = make([]TrialResult, 0, cfg.Trials)

	for idx := 0; idx < cfg.Trials; idx++ {
		trial := CreateTrial(cfg, idx, base+uint64(idx))
		trial.Logger = trialLogger.With(zap.Int("trial", idx), zap.Uint64("seed", trial.Seed))
		trial.chnlLogger = chnlLogger
		trial.Sim.SetLogger(simLogger)
		if tm != nil {
			trial.Sim.SetTrace(tm, idx)
		}

		err := fn(trial)
		result := TrialResult{Index: idx, Seed: trial.Seed, Events: trial.Sim.EventCount(), SimTime: trial.Sim.Time()}
		if err != nil {
			result.Error = err.Error()
			summary.Failures += 1
			trial.Logger.Info("trial failed", zap.Error(err))
		} else {
			trial.Logger.Debug("trial ok",
				zap.Uint64("events", result.Events),
				zap.Float64("simtime", result.SimTime))
		}
		summary.Results = append(summary.Results, result)

		if err != nil && cfg.StopOnFailure {
			break
		}
	}

	events := make([]float64, len(summary.Results))
	times := make([]float64, len(summary.Results))
	for idx, tr := range summary.Results {
		events[idx] = float64(tr.Events)
		times[idx] = tr.SimTime
	}
	summary.MeanEvents = stat.Mean(events, nil)
	if len(events) > 1 {
		summary.StdDevEvents = stat.StdDev(events, nil)
	}
	summary.MeanSimTime = stat.Mean(times, nil)

	if tm != nil {
		if err := tm.WriteToFile(cfg.TraceFile, false); err != nil {
			return summary, fmt.Errorf("writing trace: %w", err)
		}
	}
	return summary, nil
}

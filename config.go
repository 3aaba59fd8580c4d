package netsim

// config.go holds the description of a set of trials: how many to run, how they
// are seeded, and the parameters of the delay and loss processes their channels use.
// A TrialCfg is read from and written to yaml or json, selected by file extension.

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

// TrialCfg describes a run of independent trials
type TrialCfg struct {
	// name of the experiment, also used to name its trace
	Name string `json:"name" yaml:"name"`

	// number of trials to run
	Trials int `json:"trials" yaml:"trials"`

	// seed of the first trial; trial i uses Seed+i.  Zero asks for a random base seed.
	Seed uint64 `json:"seed" yaml:"seed"`

	// probability that a channel loses a message, or of entering the loss state
	// when RecoverRate is non-zero
	LossRate float64 `json:"lossrate" yaml:"lossrate"`

	// when positive, channels use a two-state Markov loss process that leaves the
	// loss state with this probability
	RecoverRate float64 `json:"recoverrate" yaml:"recoverrate"`

	// exponential channel delay, seconds: MinDelay plus a sample with mean MeanDelay
	MinDelay  float64 `json:"mindelay" yaml:"mindelay"`
	MeanDelay float64 `json:"meandelay" yaml:"meandelay"`

	// time offsets (seconds) at which named nodes reboot, and how long a reboot lasts
	Reboots        map[string]float64 `json:"reboots" yaml:"reboots"`
	RebootDuration float64            `json:"rebootduration" yaml:"rebootduration"`

	// stop conditions for a trial; with neither set a trial runs until its queue drains
	MaxEvents int     `json:"maxevents" yaml:"maxevents"`
	Duration  float64 `json:"duration" yaml:"duration"`

	// stop running trials after the first failure
	StopOnFailure bool `json:"stoponfailure" yaml:"stoponfailure"`

	Verbose Verbosity `json:"verbose" yaml:"verbose"`

	// when non-empty the kernel trace of every trial is written here
	TraceFile string `json:"tracefile" yaml:"tracefile"`
}

// CreateTrialCfg returns a configuration with the parameters of the two-node reboot
// experiments: 60% loss, 1 microsecond minimum and 20 microsecond mean delay
func CreateTrialCfg(name string, trials int) *TrialCfg {
	tc := new(TrialCfg)
	tc.Name = name
	tc.Trials = trials
	tc.LossRate = 0.60
	tc.MinDelay = 0.000001
	tc.MeanDelay = 0.000020
	tc.Reboots = make(map[string]float64)
	tc.RebootDuration = 2.0
	return tc
}

// Validate checks the parameters, failing on the first one out of range
func (tc *TrialCfg) Validate() error {
	if tc.Trials < 1 {
		return fmt.Errorf("trials must be positive, got %d", tc.Trials)
	}
	if err := checkProbability("loss rate", tc.LossRate); err != nil {
		return err
	}
	if err := checkProbability("recover rate", tc.RecoverRate); err != nil {
		return err
	}
	if !(tc.MeanDelay > 0.0) || math.IsInf(tc.MeanDelay, 0) {
		return fmt.Errorf("mean delay must be positive and finite, got %v", tc.MeanDelay)
	}
	if !(tc.MinDelay >= 0.0) || math.IsInf(tc.MinDelay, 0) {
		return fmt.Errorf("minimum delay must be non-negative and finite, got %v", tc.MinDelay)
	}
	if tc.MaxEvents < 0 {
		return fmt.Errorf("maxevents must be non-negative, got %d", tc.MaxEvents)
	}
	if !(tc.Duration >= 0.0) || math.IsInf(tc.Duration, 0) {
		return fmt.Errorf("duration must be non-negative, got %v", tc.Duration)
	}
	if tc.MaxEvents > 0 && tc.Duration > 0.0 {
		return fmt.Errorf("set one of maxevents and duration, got %d and %v", tc.MaxEvents, tc.Duration)
	}
	if !(tc.RebootDuration >= 0.0) || math.IsInf(tc.RebootDuration, 0) {
		return fmt.Errorf("reboot duration must be non-negative and finite, got %v", tc.RebootDuration)
	}

	names := make([]string, 0, len(tc.Reboots))
	for name := range tc.Reboots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if offset := tc.Reboots[name]; !(offset >= 0.0) || math.IsInf(offset, 0) {
			return fmt.Errorf("reboot offset for %s must be non-negative and finite, got %v", name, offset)
		}
	}
	return nil
}

// WriteToFile stores the TrialCfg to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tc *TrialCfg) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*tc)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*tc, "", "\t")
	} else {
		return fmt.Errorf("trial configuration file %s must have a yaml or json extension", filename)
	}
	if merr != nil {
		return merr
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// ReadTrialCfg deserializes a byte slice holding a representation of a TrialCfg.
// If the input argument of dict (those bytes) is empty, the file whose name is given is read
// to acquire them.  Fields absent from the input keep the values CreateTrialCfg gives them,
// and the configuration is validated before it is returned.
func ReadTrialCfg(filename string, useYAML bool, dict []byte) (*TrialCfg, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	tc := CreateTrialCfg("", 0)
	if useYAML {
		err = yaml.Unmarshal(dict, tc)
	} else {
		err = json.Unmarshal(dict, tc)
	}
	if err != nil {
		return nil, err
	}
	if tc.Reboots == nil {
		tc.Reboots = make(map[string]float64)
	}
	if err := tc.Validate(); err != nil {
		return nil, fmt.Errorf("trial configuration %s: %w", filename, err)
	}
	return tc, nil
}

// LoadTrialCfg reads a trial configuration file, choosing yaml or json by its extension
func LoadTrialCfg(filename string) (*TrialCfg, error) {
	ext := path.Ext(filename)
	useYAML := (ext == ".yaml") || (ext == ".yml")
	return ReadTrialCfg(filename, useYAML, nil)
}

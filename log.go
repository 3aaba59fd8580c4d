package netsim

import "go.uber.org/zap"

// Verbosity holds per-component flags for diagnostic output.  They select a real
// logger or a no-op one and never change what a simulation does.
type Verbosity struct {
	Simulator bool `json:"simulator" yaml:"simulator"`
	Channel   bool `json:"channel" yaml:"channel"`
	Trial     bool `json:"trial" yaml:"trial"`
}

// NewLogger returns a development logger when verbose is set, and a no-op logger otherwise
func NewLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

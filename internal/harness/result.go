// Package harness turns one configuration into a timed, validated trial. It
// compiles the kernel variant, resolves the launch geometry, executes a
// configurable number of repeats against the device, and records a
// representative time. Per-trial failures are captured in the result status;
// they never abort the tuning run.
package harness

import (
	"time"

	"github.com/zuqini/CLTune/internal/kernel"
)

// Status classifies the outcome of one trial.
type Status int

const (
	StatusSuccess Status = iota
	StatusCompileFailed
	StatusRuntimeFailed
	StatusVerificationFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "ok"
	case StatusCompileFailed:
		return "compile_failed"
	case StatusRuntimeFailed:
		return "runtime_failed"
	case StatusVerificationFailed:
		return "verification_failed"
	default:
		return "unknown"
	}
}

// Result records the outcome of one trial.
type Result struct {
	Configuration kernel.Configuration
	Time          time.Duration
	Status        Status
	Detail        string
	// Outputs holds the trial's output buffers, rebound per trial so runs
	// never clobber each other. Present only on success.
	Outputs []kernel.Argument
}

// OK reports whether the trial ran to completion (it may still fail
// verification afterwards).
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

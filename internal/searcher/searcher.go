// Package searcher implements the exploration strategies that decide the
// order in which valid configurations are tried. Every strategy is
// constructed from the fixed, ordered valid-configuration sequence produced
// by the kernel package and receives per-trial execution times as feedback.
//
// The tuning loop drives a Searcher with a strict call discipline: the
// feedback for trial n is pushed before the configuration for trial n+1 is
// requested. Adaptive strategies depend on that ordering; the others ignore
// feedback entirely.
package searcher

import (
	"errors"
	"time"

	"github.com/zuqini/CLTune/internal/kernel"
)

// ErrExhausted signals normal termination: the strategy has no more
// configurations to offer.
var ErrExhausted = errors.New("searcher: configuration space exhausted")

// FailurePenalty is pushed instead of a measured time when a trial fails, so
// adaptive strategies steer away from failing regions without special cases.
const FailurePenalty = time.Duration(1<<63 - 1)

// Searcher decides exploration order over the valid-configuration sequence.
type Searcher interface {
	// Next returns the configuration for the next trial, or ErrExhausted.
	Next() (kernel.Configuration, error)
	// PushExecutionTime feeds back the most recent trial's measured time.
	PushExecutionTime(t time.Duration)
	// Done reports whether the strategy has reached its termination
	// condition.
	Done() bool
	// Progress returns the explored fraction in [0, 1].
	Progress() float64
}

// Package verify checks tuned kernel outputs against a golden reference.
// The reference kernel runs once; its output buffers are captured and every
// subsequent trial's outputs are compared element-wise within an absolute
// tolerance.
package verify

import (
	"fmt"
	"math"

	"github.com/zuqini/CLTune/internal/kernel"
)

// DefaultTolerance is the absolute per-element tolerance used when none is
// configured.
const DefaultTolerance = 1e-4

// Verifier holds captured reference outputs and compares trial outputs
// against them.
type Verifier struct {
	tolerance float64
	reference []kernel.Argument
}

// New creates a Verifier with the given absolute tolerance. Non-positive
// tolerances fall back to DefaultTolerance.
func New(tolerance float64) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{tolerance: tolerance}
}

// Capture stores the reference outputs. Until Capture is called the verifier
// is inactive and Verify accepts everything.
func (v *Verifier) Capture(outputs []kernel.Argument) {
	v.reference = outputs
}

// Active reports whether a reference has been captured.
func (v *Verifier) Active() bool {
	return len(v.reference) > 0
}

// Verify compares trial outputs against the captured reference. Outputs are
// matched by argument index; a missing or mis-sized buffer fails outright,
// and the first element outside the tolerance is reported.
func (v *Verifier) Verify(outputs []kernel.Argument) error {
	if !v.Active() {
		return nil
	}
	byIndex := make(map[int]kernel.Buffer, len(outputs))
	for _, a := range outputs {
		if a.Buffer != nil {
			byIndex[a.Index] = a.Buffer
		}
	}
	for _, ref := range v.reference {
		got, ok := byIndex[ref.Index]
		if !ok {
			return fmt.Errorf("output argument %d missing from trial", ref.Index)
		}
		want := ref.Buffer
		if got.Len() != want.Len() {
			return fmt.Errorf("output argument %d: length %d, reference has %d", ref.Index, got.Len(), want.Len())
		}
		for i := 0; i < want.Len(); i++ {
			if diff := math.Abs(got.Float(i) - want.Float(i)); diff > v.tolerance {
				return fmt.Errorf("output argument %d differs at element %d: got %v, want %v (tolerance %v)",
					ref.Index, i, got.Float(i), want.Float(i), v.tolerance)
			}
		}
	}
	return nil
}

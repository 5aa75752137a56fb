// Package schedule maps simulation time onto a resolved stimulus stream.
//
// A Schedule is built once before the simulation starts and is read-only
// afterwards. Lookups are index arithmetic plus a slice access, so the
// stimulus function can run inside the simulator's stepping loop and may be
// called out of time order.
package schedule

import (
	"fmt"
	"math"

	"github.com/spaun-sim/stimseq/internal/sequence"
	"github.com/spaun-sim/stimseq/internal/stimulus"
)

// Schedule is a resolved stream laid out on a fixed presentation interval.
type Schedule struct {
	stream sequence.Stream
	timing sequence.Timing
}

// New builds a schedule. The stream is not copied and must not be modified afterwards.
func New(stream sequence.Stream, timing sequence.Timing) (*Schedule, error) {
	if err := timing.Validate(); err != nil {
		return nil, err
	}
	return &Schedule{stream: stream, timing: timing}, nil
}

// Stream returns the underlying stream.
func (s *Schedule) Stream() sequence.Stream { return s.stream }

// Timing returns the presentation timing.
func (s *Schedule) Timing() sequence.Timing { return s.timing }

// Len returns the number of steps.
func (s *Schedule) Len() int { return len(s.stream) }

// Index returns the step shown at time t. ok is false in the blank half of a
// step when blanks are presented, before zero, and past the end.
func (s *Schedule) Index(t float64) (int, bool) {
	ind := t / s.timing.PresentInterval / s.timing.BlankFactor()
	if ind < 0 || math.IsNaN(ind) || math.IsInf(ind, 0) {
		return -1, false
	}
	i := int(ind)
	if s.timing.PresentBlanks && i != int(math.Round(ind)) {
		return i, false
	}
	if i >= len(s.stream) {
		return i, false
	}
	return i, true
}

// Step returns the raw step index at t, ignoring the blank half. It is -1
// before zero and may be past the end.
func (s *Schedule) Step(t float64) int {
	ind := t / s.timing.PresentInterval / s.timing.BlankFactor()
	if ind < 0 || math.IsNaN(ind) || math.IsInf(ind, 0) {
		return -1
	}
	return int(ind)
}

// At returns the symbol shown at t. ok is false whenever the default blank
// stimulus should be shown: gaps, out of range, blanks and separators.
func (s *Schedule) At(t float64) (sequence.Symbol, bool) {
	i, ok := s.Index(t)
	if !ok {
		return sequence.Blank(), false
	}
	sym := s.stream[i]
	return sym, sym.IsStimulus()
}

// EstRuntime is the simulated time needed to present the whole stream.
func (s *Schedule) EstRuntime() float64 {
	return float64(len(s.stream)) * s.timing.StepDuration()
}

// StimulusFunc returns the per-timestep stimulus function for a provider.
func (s *Schedule) StimulusFunc(p stimulus.Provider) func(t float64) stimulus.Stimulus {
	return func(t float64) stimulus.Stimulus {
		sym, ok := s.At(t)
		if !ok {
			return p.Blank()
		}
		return p.Lookup(sym)
	}
}

// String summarizes the schedule.
func (s *Schedule) String() string {
	return fmt.Sprintf("Schedule{steps:%d, interval:%gs, blanks:%t, runtime:%gs}",
		len(s.stream), s.timing.PresentInterval, s.timing.PresentBlanks, s.EstRuntime())
}

// Package stimulus provides the payloads shown to the model at each schedule
// step: dataset images for the vision path and fixed vectors for the
// vocabulary path.
package stimulus

import (
	"github.com/spaun-sim/stimseq/internal/sequence"
)

// Stimulus is one timestep's input. Data is shared with the provider and
// must not be modified. Index is the image index, 0 for vocabulary vectors,
// and -1 for blanks.
type Stimulus struct {
	Data  []float64
	Index int
}

// Provider maps resolved symbols to stimuli. Implementations must be safe to
// call with any symbol and must not mutate state on Lookup.
type Provider interface {
	Blank() Stimulus
	Lookup(sym sequence.Symbol) Stimulus
}

// Dim returns the payload width of a provider.
func Dim(p Provider) int {
	return len(p.Blank().Data)
}

// Package sequence compiles the Spaun task-sequence language into a resolved
// stimulus stream.
//
// Compilation runs in three stages over the raw text:
//   - multiplicative expansion of {S:N} groups,
//   - custom task expansion of (NAME; ARGS) directives,
//   - symbol resolution into a Stream of tagged Symbols.
//
// All randomness (COUNT start digits, N/R runs, placeholder bindings,
// hand-written image choice) comes from one generator seeded by Options.Seed,
// so a seed reproduces a schedule exactly.
package sequence

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
)

// Options configures Compile.
type Options struct {
	Timing          Timing
	SeparateRepeats bool
	Images          ImageIndex
	Seed            uint64
}

// Compiled is the result of compiling one raw sequence.
type Compiled struct {
	Raw      string `json:"raw"`
	Expanded string `json:"expanded"`
	Stream   Stream `json:"stream"`
	Seed     uint64 `json:"seed"`
}

// NewRand returns the generator Compile uses for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Normalize strips whitespace and rejects control characters.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for i, c := range raw {
		switch {
		case unicode.IsSpace(c):
			continue
		case unicode.IsControl(c):
			return "", formatErrorf(StageNormalize, i, "control character %U", c)
		}
		b.WriteRune(c)
	}
	return b.String(), nil
}

// Expand runs the two text rewriting stages.
func Expand(raw string, rng *rand.Rand) (string, error) {
	norm, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	mult, err := ExpandMultiplicative(norm)
	if err != nil {
		return "", err
	}
	return ExpandCustomTasks(mult, rng)
}

// Compile expands and resolves raw into a stream.
func Compile(raw string, opts Options) (*Compiled, error) {
	rng := NewRand(opts.Seed)

	expanded, err := Expand(raw, rng)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		Timing:          opts.Timing,
		SeparateRepeats: opts.SeparateRepeats,
		Images:          opts.Images,
		Rand:            rng,
	}
	stream, err := r.Resolve(expanded)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", expanded, err)
	}

	return &Compiled{
		Raw:      raw,
		Expanded: expanded,
		Stream:   stream,
		Seed:     opts.Seed,
	}, nil
}

package stimulus

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/spaun-sim/stimseq/internal/constants"
	"github.com/spaun-sim/stimseq/internal/sequence"
)

// Vocabulary is a fixed table of unit vectors keyed by label. It is a lookup
// only; vectors are drawn once and never combined.
type Vocabulary struct {
	dim     int
	vectors map[string][]float64
	blank   []float64
}

// VisualKeys returns the labels the vision path can show plus the list
// position keys POS1..POSn.
func VisualKeys(maxEnumPos int) []string {
	keys := make([]string, 0, constants.DigitCount+4+len(constants.TaskLabels)+maxEnumPos)
	keys = append(keys, constants.DigitLabels[:]...)
	keys = append(keys, "OPEN", "CLOSE", constants.SpaceLabel, "QM")
	keys = append(keys, constants.TaskLabels[:]...)
	for i := 1; i <= maxEnumPos; i++ {
		keys = append(keys, fmt.Sprintf("POS%d", i))
	}
	return keys
}

// NewVocabulary draws a random unit vector of length dim for every key.
func NewVocabulary(dim int, keys []string, rng *rand.Rand) (*Vocabulary, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vocabulary dimension must be positive, got %d", dim)
	}
	v := &Vocabulary{
		dim:     dim,
		vectors: make(map[string][]float64, len(keys)),
		blank:   make([]float64, dim),
	}
	for _, k := range keys {
		if _, dup := v.vectors[k]; dup {
			return nil, fmt.Errorf("duplicate vocabulary key %q", k)
		}
		v.vectors[k] = unitVector(dim, rng)
	}
	return v, nil
}

func unitVector(dim int, rng *rand.Rand) []float64 {
	vec := make([]float64, dim)
	var norm float64
	for norm == 0 {
		norm = 0
		for i := range vec {
			vec[i] = rng.NormFloat64()
			norm += vec[i] * vec[i]
		}
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Keys returns the vocabulary keys, sorted.
func (v *Vocabulary) Keys() []string {
	keys := make([]string, 0, len(v.vectors))
	for k := range v.vectors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Vector returns the vector for key.
func (v *Vocabulary) Vector(key string) ([]float64, bool) {
	vec, ok := v.vectors[key]
	return vec, ok
}

// Blank returns the zero vector with index -1.
func (v *Vocabulary) Blank() Stimulus {
	return Stimulus{Data: v.blank, Index: -1}
}

// Lookup returns the vector for the symbol's vocabulary label. Image steps
// are looked up by the digit they show.
func (v *Vocabulary) Lookup(sym sequence.Symbol) Stimulus {
	vec, ok := v.vectors[sym.VocabLabel()]
	if !ok {
		return v.Blank()
	}
	return Stimulus{Data: vec, Index: 0}
}

package sequence

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spaun-sim/stimseq/internal/constants"
)

// Kind identifies which variant a Symbol holds.
type Kind int

const (
	KindBlank Kind = iota
	KindLabel
	KindHandWritten
	KindFixedIndex
	KindSeparator
)

var kindNames = map[Kind]string{
	KindBlank:       "blank",
	KindLabel:       "label",
	KindHandWritten: "handwritten",
	KindFixedIndex:  "fixed",
	KindSeparator:   "separator",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Symbol is one step of a resolved stream.
//
// Label holds the canonical label for KindLabel, the digit character for
// KindHandWritten and the dataset label for KindFixedIndex. Index is the image
// index for the two image kinds and -1 otherwise.
type Symbol struct {
	Kind  Kind
	Label string
	Index int
}

// Blank returns a blank filler step.
func Blank() Symbol { return Symbol{Kind: KindBlank, Index: -1} }

// Separator returns the explicit space marker.
func Separator() Symbol { return Symbol{Kind: KindSeparator, Label: ".", Index: -1} }

// Label returns a canonical label step.
func Label(l string) Symbol { return Symbol{Kind: KindLabel, Label: l, Index: -1} }

// HandWritten returns a hand-written digit step.
func HandWritten(index int, digit rune) Symbol {
	return Symbol{Kind: KindHandWritten, Label: string(digit), Index: index}
}

// FixedIndex returns a step shown by literal image index.
func FixedIndex(index int, label string) Symbol {
	return Symbol{Kind: KindFixedIndex, Label: label, Index: index}
}

// IsStimulus reports whether the step shows something.
func (s Symbol) IsStimulus() bool {
	return s.Kind != KindBlank && s.Kind != KindSeparator
}

// Same reports whether two steps would look identical to the model.
func (s Symbol) Same(o Symbol) bool {
	if !s.IsStimulus() || !o.IsStimulus() {
		return false
	}
	switch s.Kind {
	case KindHandWritten, KindFixedIndex:
		return (o.Kind == KindHandWritten || o.Kind == KindFixedIndex) && s.Index == o.Index
	default:
		return o.Kind == KindLabel && s.Label == o.Label
	}
}

// VocabLabel is the vocabulary key for the step. Image steps carrying a
// digit map to the digit label.
func (s Symbol) VocabLabel() string {
	switch s.Kind {
	case KindHandWritten, KindFixedIndex:
		if len(s.Label) == 1 {
			if l, ok := constants.DigitLabel(rune(s.Label[0])); ok {
				return l
			}
		}
		return s.Label
	case KindLabel:
		return s.Label
	default:
		return ""
	}
}

// String renders the step in the compact form used by traces and the CLI.
func (s Symbol) String() string {
	switch s.Kind {
	case KindBlank:
		return "_"
	case KindSeparator:
		return "."
	case KindHandWritten:
		return fmt.Sprintf("#%s<%d>", s.Label, s.Index)
	case KindFixedIndex:
		return fmt.Sprintf("<%d:%s>", s.Index, s.Label)
	default:
		return s.Label
	}
}

type symbolJSON struct {
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// MarshalJSON encodes the step with a string kind.
func (s Symbol) MarshalJSON() ([]byte, error) {
	out := symbolJSON{Kind: s.Kind.String(), Label: s.Label}
	if s.Kind == KindHandWritten || s.Kind == KindFixedIndex {
		idx := s.Index
		out.Index = &idx
	}
	if s.Kind == KindSeparator {
		out.Label = ""
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (s *Symbol) UnmarshalJSON(data []byte) error {
	var in symbolJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case "blank":
		*s = Blank()
	case "separator":
		*s = Separator()
	case "label":
		*s = Label(in.Label)
	case "handwritten", "fixed":
		if in.Index == nil {
			return fmt.Errorf("symbol kind %q requires an index", in.Kind)
		}
		if in.Kind == "handwritten" {
			*s = Symbol{Kind: KindHandWritten, Label: in.Label, Index: *in.Index}
		} else {
			*s = FixedIndex(*in.Index, in.Label)
		}
	default:
		return fmt.Errorf("unknown symbol kind %q", in.Kind)
	}
	return nil
}

// Stream is a resolved, time-ordered symbol sequence.
type Stream []Symbol

// String joins the steps with spaces.
func (st Stream) String() string {
	parts := make([]string, len(st))
	for i, s := range st {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}

// Count returns the number of steps of the given kind.
func (st Stream) Count(k Kind) int {
	n := 0
	for _, s := range st {
		if s.Kind == k {
			n++
		}
	}
	return n
}

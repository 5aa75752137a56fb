package sequence

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"unicode"

	"github.com/spaun-sim/stimseq/internal/constants"
)

// ErrNoImageIndex is returned when the sequence needs image indexes ('#' or
// '<n>') but the resolver has no ImageIndex.
var ErrNoImageIndex = errors.New("sequence uses image indexes but no image index is configured")

// ImageIndex chooses dataset images for hand-written and fixed-index steps.
type ImageIndex interface {
	// PickIndex returns the index of an image showing digit.
	PickIndex(digit string, rng *rand.Rand) (int, error)
	// LabelOf returns the label of the image at index.
	LabelOf(index int) (string, error)
}

// Timing holds the presentation parameters shared by the resolver and the schedule.
type Timing struct {
	PresentInterval   float64 `json:"present_interval"`    // seconds per step
	PresentBlanks     bool    `json:"present_blanks"`      // a blank follows every step
	MotorResponseTime float64 `json:"motor_response_time"` // estimated seconds to write one digit
}

// BlankFactor is 2 when blanks are presented between steps, else 1.
func (t Timing) BlankFactor() float64 {
	if t.PresentBlanks {
		return 2
	}
	return 1
}

// StepDuration is the wall time occupied by one stream entry.
func (t Timing) StepDuration() float64 {
	return t.PresentInterval * t.BlankFactor()
}

// MotorWaitSteps is the number of blank steps reserved for r motor responses.
func (t Timing) MotorWaitSteps(r float64) int {
	est := (r + constants.MinMotorResponses) * t.MotorResponseTime
	steps := math.Floor(est / t.StepDuration())
	if steps > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(steps)
}

// Validate rejects timings the schedule cannot index with.
func (t Timing) Validate() error {
	if !(t.PresentInterval > 0) {
		return fmt.Errorf("present interval must be positive, got %v", t.PresentInterval)
	}
	if t.MotorResponseTime < 0 {
		return fmt.Errorf("motor response time must be non-negative, got %v", t.MotorResponseTime)
	}
	return nil
}

// Resolver turns expanded sequence text into a Stream.
type Resolver struct {
	Timing Timing

	// SeparateRepeats inserts a Separator between identical adjacent stimuli.
	SeparateRepeats bool

	// Images resolves '#' digits and '<n>' indexes. May be nil if unused.
	Images ImageIndex

	Rand *rand.Rand
}

// resolveState is the per-call state of Resolve.
type resolveState struct {
	r   *Resolver
	out Stream
	pos int

	bindings map[rune]rune
	pendingN int
	pendingR int
	motor    float64

	handWritten bool
	fixed       bool
	fixedStart  int
	fixedDigits strings.Builder

	prev Symbol
}

// Resolve processes the expanded text rune by rune.
func (r *Resolver) Resolve(expanded string) (Stream, error) {
	if err := r.Timing.Validate(); err != nil {
		return nil, err
	}
	if r.Rand == nil {
		return nil, fmt.Errorf("resolver has no random source")
	}

	s := &resolveState{
		r:        r,
		out:      make(Stream, 0, len(expanded)),
		bindings: make(map[rune]rune),
		prev:     Blank(),
	}

	runes := []rune(expanded)
	for i := 0; i < len(runes); i++ {
		s.pos = i
		c := runes[i]

		if c == constants.Escape {
			if i+1 >= len(runes) {
				return nil, formatErrorf(StageResolve, i, "escape at end of sequence")
			}
			if err := s.flushRandom(); err != nil {
				return nil, err
			}
			if err := s.flushMotor(); err != nil {
				return nil, err
			}
			i++
			if err := s.emitLabel(string(runes[i])); err != nil {
				return nil, err
			}
			continue
		}

		// Inside an N or R run every capital continues or breaks the run.
		if s.pendingN == 0 && s.pendingR == 0 {
			if w := matchWord(runes[i:]); w != "" {
				if err := s.flushMotor(); err != nil {
					return nil, err
				}
				if err := s.emitLabel(w); err != nil {
					return nil, err
				}
				i += len(w) - 1
				continue
			}
		}

		if c == constants.RandomUnique {
			s.pendingN++
			continue
		}
		if err := s.flushUnique(); err != nil {
			return nil, err
		}

		if c == constants.RandomRepeat {
			s.pendingR++
			continue
		}
		if err := s.flushRepeat(); err != nil {
			return nil, err
		}

		if c == constants.BlockStart {
			clear(s.bindings)
		}

		if unicode.IsLower(c) {
			c = s.bind(c)
		}

		if c == constants.MotorWait {
			s.motor++
			continue
		}
		if err := s.flushMotor(); err != nil {
			return nil, err
		}

		if err := s.emit(c); err != nil {
			return nil, err
		}
	}

	s.pos = len(runes)
	if err := s.flushRandom(); err != nil {
		return nil, err
	}
	if err := s.appendBlanks(r.Timing.MotorWaitSteps(s.motor)); err != nil {
		return nil, err
	}
	s.motor = 0

	if s.fixed {
		return nil, formatErrorf(StageResolve, s.fixedStart, "unterminated fixed index, expected '>'")
	}
	return s.out, nil
}

func matchWord(rs []rune) string {
	if len(rs) < 2 || !unicode.IsUpper(rs[0]) {
		return ""
	}
	for _, w := range constants.WordLabels() {
		if len(rs) < len(w) {
			continue
		}
		if string(rs[:len(w)]) == w {
			return w
		}
	}
	return ""
}

// bind maps a placeholder to the digit chosen for it in the current block.
func (s *resolveState) bind(c rune) rune {
	d, ok := s.bindings[c]
	if !ok {
		d = rune('0' + s.r.Rand.IntN(constants.DigitCount))
		s.bindings[c] = d
	}
	return d
}

func (s *resolveState) flushRandom() error {
	if err := s.flushUnique(); err != nil {
		return err
	}
	return s.flushRepeat()
}

// flushUnique emits the queued N run as distinct digits.
func (s *resolveState) flushUnique() error {
	k := s.pendingN
	if k == 0 {
		return nil
	}
	s.pendingN = 0
	if k > constants.DigitCount {
		return formatErrorf(StageResolve, s.pos-k, "%d unique random digits requested, only %d exist", k, constants.DigitCount)
	}
	for _, d := range s.r.Rand.Perm(constants.DigitCount)[:k] {
		if err := s.emit(rune('0' + d)); err != nil {
			return err
		}
	}
	return nil
}

// flushRepeat emits the queued R run, drawing with replacement.
func (s *resolveState) flushRepeat() error {
	k := s.pendingR
	s.pendingR = 0
	for range k {
		if err := s.emit(rune('0' + s.r.Rand.IntN(constants.DigitCount))); err != nil {
			return err
		}
	}
	return nil
}

func (s *resolveState) flushMotor() error {
	if s.motor <= 0 {
		return nil
	}
	n := s.r.Timing.MotorWaitSteps(s.motor)
	s.motor = 0
	return s.appendBlanks(n)
}

func (s *resolveState) appendBlanks(n int) error {
	if n <= 0 {
		return nil
	}
	if err := s.reserve(n); err != nil {
		return err
	}
	for range n {
		s.out = append(s.out, Blank())
	}
	s.prev = Blank()
	return nil
}

// reserve fails if n more entries would exceed MaxStreamLength.
func (s *resolveState) reserve(n int) error {
	if n > constants.MaxStreamLength-len(s.out) {
		return formatErrorf(StageResolve, s.pos, "resolved stream exceeds %d steps", constants.MaxStreamLength)
	}
	return nil
}

// emitLabel appends a label that bypasses character mapping.
func (s *resolveState) emitLabel(label string) error {
	if s.fixed {
		return formatErrorf(StageResolve, s.pos, "%q inside fixed index, expected digits or '>'", label)
	}
	return s.push(Label(label))
}

// emit applies character mapping to a single rune.
func (s *resolveState) emit(c rune) error {
	if c == constants.HandWritten {
		s.handWritten = true
		return nil
	}

	if s.fixed {
		switch {
		case c >= '0' && c <= '9':
			s.fixedDigits.WriteRune(c)
			return nil
		case c == constants.FixedIndexClose && s.fixedDigits.Len() > 0:
			return s.closeFixed()
		default:
			return formatErrorf(StageResolve, s.pos, "malformed fixed index: unexpected %q", c)
		}
	}

	if c == constants.FixedIndexOpen {
		s.fixed = true
		s.fixedStart = s.pos
		s.fixedDigits.Reset()
		return nil
	}

	if c == constants.SeparatorChar {
		if err := s.reserve(1); err != nil {
			return err
		}
		s.out = append(s.out, Separator())
		s.prev = Separator()
		return nil
	}

	if label, ok := constants.SymbolLabels[c]; ok {
		return s.push(Label(label))
	}

	if label, ok := constants.DigitLabel(c); ok {
		if !s.handWritten {
			return s.push(Label(label))
		}
		if s.r.Images == nil {
			return ErrNoImageIndex
		}
		idx, err := s.r.Images.PickIndex(string(c), s.r.Rand)
		if err != nil {
			return fmt.Errorf("picking image for digit %c: %w", c, err)
		}
		s.handWritten = false
		return s.push(HandWritten(idx, c))
	}

	return s.push(Label(string(c)))
}

func (s *resolveState) closeFixed() error {
	s.fixed = false
	idx, err := strconv.Atoi(s.fixedDigits.String())
	if err != nil {
		return formatErrorf(StageResolve, s.fixedStart, "fixed index %q: %v", s.fixedDigits.String(), err)
	}
	if s.r.Images == nil {
		return ErrNoImageIndex
	}
	label, err := s.r.Images.LabelOf(idx)
	if err != nil {
		return fmt.Errorf("fixed index %d: %w", idx, err)
	}
	return s.push(FixedIndex(idx, label))
}

// push appends a stimulus, separating it from an identical predecessor.
func (s *resolveState) push(sym Symbol) error {
	separate := s.r.SeparateRepeats && s.prev.Same(sym)
	n := 1
	if separate {
		n = 2
	}
	if err := s.reserve(n); err != nil {
		return err
	}
	if separate {
		s.out = append(s.out, Separator())
	}
	s.out = append(s.out, sym)
	s.prev = sym
	return nil
}

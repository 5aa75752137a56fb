package sequence

import (
	"errors"
	"fmt"
)

// ErrFormat is matched by every FormatError via errors.Is.
var ErrFormat = errors.New("invalid sequence format")

// Stage names the compilation step that rejected the input.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageMultiply  Stage = "multiply"
	StageCustom    Stage = "custom"
	StageResolve   Stage = "resolve"
)

// FormatError reports malformed sequence text. Compilation stops at the first one.
type FormatError struct {
	Stage Stage  `json:"stage"`
	Pos   int    `json:"pos"` // byte offset into the stage input, -1 if unknown
	Msg   string `json:"message"`
}

func (e *FormatError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("%s: %s", e.Stage, e.Msg)
	}
	return fmt.Sprintf("%s: %s (at offset %d)", e.Stage, e.Msg, e.Pos)
}

// Is makes errors.Is(err, ErrFormat) true for any FormatError.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func formatErrorf(stage Stage, pos int, format string, args ...any) *FormatError {
	return &FormatError{Stage: stage, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

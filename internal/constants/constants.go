// Package constants provides named constants used throughout the stimseq codebase.
// This centralizes the DSL alphabet, label tables and timing defaults.
package constants

// DSL control characters
const (
	// BlockStart starts a task block and resets placeholder bindings.
	BlockStart = 'A'

	// RandomUnique queues a digit drawn without replacement within its run.
	RandomUnique = 'N'

	// RandomRepeat queues a digit drawn with replacement.
	RandomRepeat = 'R'

	// MotorWait queues one expected motor response.
	MotorWait = 'X'

	// HandWritten marks the next digit as a hand-written digit image.
	HandWritten = '#'

	// FixedIndexOpen and FixedIndexClose enclose a literal image index.
	FixedIndexOpen  = '<'
	FixedIndexClose = '>'

	// SeparatorChar is the explicit inter-duplicate space marker.
	SeparatorChar = '.'

	// Escape makes the following rune a literal one-character label.
	Escape = '\\'
)

// Timing defaults, in seconds.
const (
	// DefaultPresentInterval is how long each schedule step is shown.
	DefaultPresentInterval = 0.15

	// DefaultMotorResponseTime is the estimated time to write one digit.
	DefaultMotorResponseTime = 1.5

	// MinMotorResponses is added to every motor wait so the last response has time to finish.
	MinMotorResponses = 0.5

	// DefaultSimDt is the stepping loop timestep used by dry runs.
	DefaultSimDt = 0.001
)

// Model defaults
const (
	// DefaultMaxEnumListPos is the number of enumerable list positions the model supports.
	DefaultMaxEnumListPos = 8

	// DefaultSPDim is the semantic pointer dimensionality.
	DefaultSPDim = 512

	// DefaultVisDim is the flattened image size (28x28).
	DefaultVisDim = 28 * 28
)

// Monitor thresholds
const (
	// MotorWriteMin is the motor ramp level above which a response is recorded.
	MotorWriteMin = 0.75

	// MotorResetMax is the ramp level below which the monitor re-arms.
	MotorResetMax = 0.25

	// MotorDisableThreshold is the disable level above which motor output is ignored.
	MotorDisableThreshold = 0.5

	// MotorSelectThreshold is the decoder activation treated as selected.
	MotorSelectThreshold = 0.5
)

// Parser limits
const (
	// MaxExpandedLength bounds the output of multiplicative expansion.
	MaxExpandedLength = 1 << 20

	// MaxStreamLength bounds the resolved stream, motor-wait blanks included.
	MaxStreamLength = 1 << 20
)

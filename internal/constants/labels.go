package constants

// DigitLabels maps digit characters to their canonical labels, in order.
var DigitLabels = [...]string{"ZER", "ONE", "TWO", "THR", "FOR", "FIV", "SIX", "SEV", "EIG", "NIN"}

// DigitCount is the number of digit labels available to random selection.
const DigitCount = len(DigitLabels)

// SymbolLabels maps DSL punctuation to canonical labels.
var SymbolLabels = map[rune]string{
	'[': "OPEN",
	']': "CLOSE",
	'?': "QM",
}

// SpaceLabel is the visual space symbol. It has no single-character form.
const SpaceLabel = "SPACE"

// MotorOutputs is the decoder index to written character table used by the monitor.
var MotorOutputs = [...]string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "-"}

// NullOutput is written when the decoded motor index is unknown.
const NullOutput = "_"

// TaskLabels are the visual task letters. They resolve to themselves.
var TaskLabels = [...]string{"A", "C", "F", "K", "L", "M", "P", "R", "V", "W"}

// DigitLabel returns the label for a digit character.
func DigitLabel(c rune) (string, bool) {
	if c < '0' || c > '9' {
		return "", false
	}
	return DigitLabels[c-'0'], true
}

// DigitChar is the inverse of DigitLabel.
func DigitChar(label string) (rune, bool) {
	for i, l := range DigitLabels {
		if l == label {
			return rune('0' + i), true
		}
	}
	return 0, false
}

// SymbolChar returns the DSL character for a symbol label.
func SymbolChar(label string) (rune, bool) {
	for c, l := range SymbolLabels {
		if l == label {
			return c, true
		}
	}
	return 0, false
}

// WordLabels lists the spelled-out canonical labels recognized as single tokens.
func WordLabels() []string {
	words := make([]string, 0, DigitCount+len(SymbolLabels)+1)
	words = append(words, DigitLabels[:]...)
	words = append(words, "OPEN", "CLOSE", "QM", SpaceLabel)
	return words
}

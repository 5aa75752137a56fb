package sequence

import (
	"strconv"
	"strings"

	"github.com/spaun-sim/stimseq/internal/constants"
)

// ExpandMultiplicative replaces every {S:N} group with S repeated N times.
//
// Groups may nest. The innermost group (the first '}' and the nearest '{'
// before it) is expanded first and the loop repeats until no braces remain,
// so {A{B:2}:2} becomes ABBABB.
func ExpandMultiplicative(s string) (string, error) {
	for {
		closeIdx := strings.IndexByte(s, '}')
		if closeIdx < 0 {
			if i := strings.IndexByte(s, '{'); i >= 0 {
				return "", formatErrorf(StageMultiply, i, "unterminated '{'")
			}
			if i := strings.IndexByte(s, ':'); i >= 0 {
				return "", formatErrorf(StageMultiply, i, "':' outside of a {...:N} group")
			}
			return s, nil
		}

		openIdx := strings.LastIndexByte(s[:closeIdx], '{')
		if openIdx < 0 {
			return "", formatErrorf(StageMultiply, closeIdx, "'}' without matching '{'")
		}

		body := s[openIdx+1 : closeIdx]
		colon := strings.LastIndexByte(body, ':')
		if colon < 0 {
			return "", formatErrorf(StageMultiply, openIdx, "group %q has no ':N' count", body)
		}

		countStr := strings.TrimSpace(body[colon+1:])
		n, err := strconv.Atoi(countStr)
		if err != nil || n < 0 {
			return "", formatErrorf(StageMultiply, openIdx+1+colon, "invalid repeat count %q", countStr)
		}

		unit := body[:colon]
		rest := len(s) - (closeIdx - openIdx + 1)
		if len(unit) > 0 && n > (constants.MaxExpandedLength-rest)/len(unit) {
			return "", formatErrorf(StageMultiply, openIdx, "expansion exceeds %d characters", constants.MaxExpandedLength)
		}

		s = s[:openIdx] + strings.Repeat(unit, n) + s[closeIdx+1:]
	}
}

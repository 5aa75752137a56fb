package sequence

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/spaun-sim/stimseq/internal/constants"
)

// taskExpander turns the argument text of a (NAME; ARGS) directive into
// primitive sequence text.
type taskExpander func(args string, rng *rand.Rand) (string, error)

var customTasks = map[string]taskExpander{
	"COUNT": expandCount,
	"LEARN": expandLearn,
}

// CustomTaskNames returns the supported directive names, sorted.
func CustomTaskNames() []string {
	names := make([]string, 0, len(customTasks))
	for name := range customTasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExpandCustomTasks replaces each (NAME; ARGS) directive with its expansion.
// Directives do not nest. Text between and around directives is kept as is.
func ExpandCustomTasks(s string, rng *rand.Rand) (string, error) {
	var b strings.Builder
	pos := 0

	for {
		rel := strings.IndexByte(s[pos:], '(')
		if rel < 0 {
			break
		}
		openIdx := pos + rel
		if err := checkStrayClose(s, pos, openIdx); err != nil {
			return "", err
		}
		b.WriteString(s[pos:openIdx])

		semi := strings.IndexByte(s[openIdx:], ';')
		closeRel := strings.IndexByte(s[openIdx:], ')')
		if semi < 0 || closeRel < 0 || closeRel < semi {
			return "", formatErrorf(StageCustom, openIdx, "malformed custom task, expected (NAME; ARGS)")
		}
		semi += openIdx
		closeIdx := openIdx + closeRel

		name := strings.TrimSpace(s[openIdx+1 : semi])
		expand, ok := customTasks[name]
		if !ok {
			return "", formatErrorf(StageCustom, openIdx, "custom task %q not supported", name)
		}

		out, err := expand(s[semi+1:closeIdx], rng)
		if err != nil {
			return "", formatErrorf(StageCustom, openIdx, "%s: %v", name, err)
		}
		b.WriteString(out)
		pos = closeIdx + 1
	}

	if err := checkStrayClose(s, pos, len(s)); err != nil {
		return "", err
	}
	b.WriteString(s[pos:])
	return b.String(), nil
}

func checkStrayClose(s string, from, to int) error {
	if i := strings.IndexByte(s[from:to], ')'); i >= 0 {
		return formatErrorf(StageCustom, from+i, "')' without matching '('")
	}
	return nil
}

// expandCount handles (COUNT; N): show a random start digit and a count, so
// the model counts up N from start. start+N stays a single digit.
func expandCount(args string, rng *rand.Rand) (string, error) {
	arg := strings.TrimSpace(args)
	n, err := strconv.Atoi(arg)
	if err != nil {
		return "", fmt.Errorf("count %q is not an integer", arg)
	}
	if n < 0 || n >= constants.DigitCount {
		return "", fmt.Errorf("count %d out of range [0, %d]", n, constants.DigitCount-1)
	}
	start := rng.IntN(constants.DigitCount - n)
	return fmt.Sprintf("A4[%d][%d]", start, n), nil
}

// expandLearn handles (LEARN; opt1; opt2; ...): one answer-and-wait group per
// option plus a trailing wait.
func expandLearn(args string, _ *rand.Rand) (string, error) {
	trials := len(strings.Split(args, ";"))
	return "A2?" + strings.Repeat("X?", trials) + "X", nil
}

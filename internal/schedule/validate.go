package schedule

import (
	"fmt"

	"github.com/spaun-sim/stimseq/internal/sequence"
)

// List is an OPEN ... CLOSE run in the stream. Start and End are the step
// indexes of the markers; Items counts the stimuli between them.
type List struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Items int `json:"items"`
}

// Warning describes a schedule the model may not handle well. Warnings never
// stop a run.
type Warning struct {
	Step int    `json:"step"`
	Msg  string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("step %d: %s", w.Step, w.Msg)
}

// Lists returns the bracketed lists in the stream and any bracket mismatches.
func (s *Schedule) Lists() ([]List, []Warning) {
	var (
		lists    []List
		warnings []Warning
		open     = -1
		items    int
	)
	for i, sym := range s.stream {
		if sym.Kind != sequence.KindLabel {
			if open >= 0 && sym.IsStimulus() {
				items++
			}
			continue
		}
		switch sym.Label {
		case "OPEN":
			if open >= 0 {
				warnings = append(warnings, Warning{Step: i, Msg: fmt.Sprintf("list opened at step %d is not closed", open)})
			}
			open, items = i, 0
		case "CLOSE":
			if open < 0 {
				warnings = append(warnings, Warning{Step: i, Msg: "CLOSE without OPEN"})
				continue
			}
			lists = append(lists, List{Start: open, End: i, Items: items})
			open = -1
		default:
			if open >= 0 {
				items++
			}
		}
	}
	if open >= 0 {
		warnings = append(warnings, Warning{Step: open, Msg: "list is not closed"})
	}
	return lists, warnings
}

// Validate returns bracket mismatches and lists longer than the model's
// enumerable positions.
func (s *Schedule) Validate(maxEnumPos int) []Warning {
	lists, warnings := s.Lists()
	for _, l := range lists {
		if maxEnumPos > 0 && l.Items > maxEnumPos {
			warnings = append(warnings, Warning{
				Step: l.Start,
				Msg:  fmt.Sprintf("list has %d items, model enumerates at most %d", l.Items, maxEnumPos),
			})
		}
	}
	return warnings
}

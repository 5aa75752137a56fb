package sequence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spaun-sim/stimseq/internal/constants"
)

func TestExpandCustomTasks_Count(t *testing.T) {
	for n := 0; n < constants.DigitCount; n++ {
		for seed := uint64(0); seed < 50; seed++ {
			got, err := ExpandCustomTasks(fmt.Sprintf("(COUNT;%d)", n), NewRand(seed))
			if err != nil {
				t.Fatalf("COUNT;%d error = %v", n, err)
			}
			var start, count int
			if _, err := fmt.Sscanf(got, "A4[%d][%d]", &start, &count); err != nil {
				t.Fatalf("COUNT;%d produced %q: %v", n, got, err)
			}
			if count != n {
				t.Errorf("COUNT;%d produced count %d", n, count)
			}
			if start < 0 || start > constants.DigitCount-1-n {
				t.Errorf("COUNT;%d start %d out of [0, %d]", n, start, constants.DigitCount-1-n)
			}
		}
	}
}

func TestExpandCustomTasks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no directives", "A0[12]?X", "A0[12]?X"},
		{"learn one option", "(LEARN;0.1)", "A2?X?X"},
		{"learn three options", "(LEARN; 0.1,5; 0.5,5; 0.9,5)", "A2?X?X?X?X"},
		{"surrounding text kept", "A1[2]?X(LEARN;a;b)A0[3]?X", "A1[2]?XA2?X?X?XA0[3]?X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandCustomTasks(tt.input, NewRand(1))
			if err != nil {
				t.Fatalf("ExpandCustomTasks(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ExpandCustomTasks(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandCustomTasks_MultipleDirectives(t *testing.T) {
	got, err := ExpandCustomTasks("K(COUNT;3)M(LEARN;x)P", NewRand(7))
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	var start int
	if _, err := fmt.Sscanf(got, "KA4[%d][3]MA2?X?XP", &start); err != nil {
		t.Errorf("unexpected expansion %q: %v", got, err)
	}
}

func TestExpandCustomTasks_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"non-numeric count", "A(COUNT;abc)"},
		{"count too large", "(COUNT;10)"},
		{"negative count", "(COUNT;-1)"},
		{"unsupported task", "(DRAW;1)"},
		{"missing semicolon", "(COUNT 3)"},
		{"missing close", "(COUNT;3"},
		{"close before semicolon", "(COUNT)3;"},
		{"stray close", "A1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExpandCustomTasks(tt.input, NewRand(1))
			if err == nil {
				t.Fatalf("ExpandCustomTasks(%q) expected error", tt.input)
			}
			var fe *FormatError
			if !errors.As(err, &fe) || fe.Stage != StageCustom {
				t.Errorf("error = %v, want custom-stage FormatError", err)
			}
		})
	}
}

func TestCustomTaskNames(t *testing.T) {
	names := CustomTaskNames()
	if len(names) != 2 || names[0] != "COUNT" || names[1] != "LEARN" {
		t.Errorf("CustomTaskNames() = %v", names)
	}
}

package stimulus

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaun-sim/stimseq/internal/sequence"
)

func testImages(t *testing.T) *ImageSet {
	t.Helper()
	s, err := NewImageSet(2, []Image{
		{Label: "1", Pixels: []float64{1, 0}},
		{Label: "1", Pixels: []float64{1, 1}},
		{Label: "2", Pixels: []float64{0, 2}},
		{Label: "[", Pixels: []float64{3, 3}},
		{Label: "A", Pixels: []float64{4, 4}},
	})
	if err != nil {
		t.Fatalf("NewImageSet() error = %v", err)
	}
	return s
}

func TestNewImageSet_DimMismatch(t *testing.T) {
	_, err := NewImageSet(3, []Image{{Label: "1", Pixels: []float64{1}}})
	if err == nil {
		t.Error("expected error for wrong pixel count")
	}
	if _, err := NewImageSet(0, nil); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestImageSet_PickIndex(t *testing.T) {
	s := testImages(t)
	rng := sequence.NewRand(1)
	for range 20 {
		idx, err := s.PickIndex("1", rng)
		if err != nil {
			t.Fatalf("PickIndex() error = %v", err)
		}
		if idx != 0 && idx != 1 {
			t.Errorf("PickIndex(1) = %d, want 0 or 1", idx)
		}
	}
	if _, err := s.PickIndex("9", rng); err == nil {
		t.Error("expected error for missing label")
	}
}

func TestImageSet_LabelOf(t *testing.T) {
	s := testImages(t)
	if got, err := s.LabelOf(2); err != nil || got != "2" {
		t.Errorf("LabelOf(2) = %q, %v", got, err)
	}
	for _, idx := range []int{-1, 5} {
		if _, err := s.LabelOf(idx); err == nil {
			t.Errorf("LabelOf(%d) expected error", idx)
		}
	}
}

func TestImageSet_Lookup(t *testing.T) {
	s := testImages(t)
	tests := []struct {
		name  string
		sym   sequence.Symbol
		index int
	}{
		{"digit label", sequence.Label("ONE"), 0},
		{"symbol label", sequence.Label("OPEN"), 3},
		{"task label", sequence.Label("A"), 4},
		{"hand-written", sequence.HandWritten(1, '1'), 1},
		{"fixed index", sequence.FixedIndex(2, "2"), 2},
		{"unknown label", sequence.Label("QM"), -1},
		{"out of range index", sequence.FixedIndex(99, "x"), -1},
		{"blank", sequence.Blank(), -1},
		{"separator", sequence.Separator(), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Lookup(tt.sym)
			if got.Index != tt.index {
				t.Errorf("Lookup(%v).Index = %d, want %d", tt.sym, got.Index, tt.index)
			}
			if len(got.Data) != 2 {
				t.Errorf("Lookup(%v) data length = %d", tt.sym, len(got.Data))
			}
		})
	}
}

func TestImageSet_SaveLoad(t *testing.T) {
	s := testImages(t)
	for _, compress := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "images.jsonl")
		if err := SaveImageSet(path, s, compress); err != nil {
			t.Fatalf("SaveImageSet(compress=%v) error = %v", compress, err)
		}
		loaded, err := LoadImageSet(path)
		if err != nil {
			t.Fatalf("LoadImageSet(compress=%v) error = %v", compress, err)
		}
		if loaded.Len() != s.Len() {
			t.Errorf("Len() = %d, want %d", loaded.Len(), s.Len())
		}
		if strings.Join(loaded.Labels(), ",") != "1,2,A,[" {
			t.Errorf("Labels() = %v", loaded.Labels())
		}
	}
}

func TestReadImageSet_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad header", "not json\n"},
		{"wrong version", `{"version":9,"dim":1,"count":0}` + "\n"},
		{"count mismatch", `{"version":1,"dim":1,"count":2}` + "\n" + `{"label":"1","pixels":[1]}` + "\n"},
		{"bad image", `{"version":1,"dim":1,"count":1}` + "\n{\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadImageSet(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSyntheticImageSet(t *testing.T) {
	s := SyntheticImageSet(4, 3, sequence.NewRand(1))
	if s.Len() != (10+3+10)*3 {
		t.Errorf("Len() = %d", s.Len())
	}
	if got := s.Lookup(sequence.Label("CLOSE")); got.Index < 0 {
		t.Error("synthetic set has no CLOSE image")
	}
	if Dim(s) != 4 {
		t.Errorf("Dim() = %d, want 4", Dim(s))
	}
}

func TestVocabulary(t *testing.T) {
	v, err := NewVocabulary(16, VisualKeys(3), sequence.NewRand(2))
	if err != nil {
		t.Fatalf("NewVocabulary() error = %v", err)
	}

	for _, k := range []string{"ZER", "NIN", "OPEN", "SPACE", "K", "POS1", "POS3"} {
		vec, ok := v.Vector(k)
		if !ok {
			t.Fatalf("missing key %s", k)
		}
		var norm float64
		for _, x := range vec {
			norm += x * x
		}
		if math.Abs(norm-1) > 1e-9 {
			t.Errorf("|%s| = %v, want 1", k, math.Sqrt(norm))
		}
	}
	if _, ok := v.Vector("POS4"); ok {
		t.Error("POS4 should not exist for maxEnumPos=3")
	}

	blank := v.Blank()
	if blank.Index != -1 || len(blank.Data) != 16 {
		t.Errorf("Blank() = %+v", blank)
	}

	got := v.Lookup(sequence.HandWritten(42, '7'))
	want, _ := v.Vector("SEV")
	if got.Index != 0 || &got.Data[0] != &want[0] {
		t.Error("hand-written 7 did not map to SEV")
	}
	if v.Lookup(sequence.Separator()).Index != -1 {
		t.Error("separator should look up as blank")
	}
}

func TestNewVocabulary_Errors(t *testing.T) {
	if _, err := NewVocabulary(0, []string{"A"}, sequence.NewRand(1)); err == nil {
		t.Error("expected error for zero dimension")
	}
	if _, err := NewVocabulary(4, []string{"A", "A"}, sequence.NewRand(1)); err == nil {
		t.Error("expected error for duplicate key")
	}
}

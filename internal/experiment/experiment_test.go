package experiment

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spaun-sim/stimseq/internal/config"
	"github.com/spaun-sim/stimseq/internal/logging"
	"github.com/spaun-sim/stimseq/internal/monitor"
	"github.com/spaun-sim/stimseq/internal/sequence"
	"github.com/spaun-sim/stimseq/internal/stimulus"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Stimulus.PresentInterval = 0.25
	cfg.Stimulus.MtrEstDigitResponseTime = 1
	cfg.Stimulus.SimDt = 0.01
	cfg.Vocab.SPDim = 8
	cfg.Vocab.VisDim = 4
	return cfg
}

func newExperiment(t *testing.T, cfg *config.Config) *Experiment {
	t.Helper()
	e, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNew_SyntheticImagesStable(t *testing.T) {
	a := newExperiment(t, testConfig())
	b := newExperiment(t, testConfig())
	if a.Images.Len() == 0 || a.Images.Len() != b.Images.Len() {
		t.Fatalf("image set sizes = %d, %d", a.Images.Len(), b.Images.Len())
	}
	sym := sequence.FixedIndex(3, "0")
	if a.Images.Lookup(sym).Data[0] != b.Images.Lookup(sym).Data[0] {
		t.Error("synthetic image set differs between experiments")
	}
}

func TestNew_ImageSetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.jsonl.gz")
	set := stimulus.SyntheticImageSet(4, 2, sequence.NewRand(9))
	if err := stimulus.SaveImageSet(path, set, true); err != nil {
		t.Fatalf("SaveImageSet() error = %v", err)
	}

	cfg := testConfig()
	cfg.Data.ImageSet = path
	e := newExperiment(t, cfg)
	if e.Images.Len() != set.Len() {
		t.Errorf("Images.Len() = %d, want %d", e.Images.Len(), set.Len())
	}

	cfg.Data.ImageSet = filepath.Join(t.TempDir(), "missing.jsonl")
	if _, err := New(cfg, nil, nil); err == nil {
		t.Error("expected error for missing image set")
	}
}

func TestPrepare(t *testing.T) {
	e := newExperiment(t, testConfig())
	p, err := e.Prepare("A0[1]?X", 4)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	// A ZER OPEN ONE CLOSE QM plus six motor wait blanks
	if p.Schedule.Len() != 12 {
		t.Errorf("Len() = %d, want 12: %v", p.Schedule.Len(), p.Compiled.Stream)
	}
	if p.Schedule.EstRuntime() != 3 {
		t.Errorf("EstRuntime() = %v, want 3", p.Schedule.EstRuntime())
	}
	if !p.SeparateRepeats {
		t.Error("separate repeats should default on without blanks")
	}

	rec := p.Record(time.Unix(0, 0))
	if rec.Raw != "A0[1]?X" || rec.Seed != 4 || rec.Symbols != 6 {
		t.Errorf("Record() = %+v", rec)
	}
}

func TestPrepare_Warnings(t *testing.T) {
	cfg := testConfig()
	cfg.Stimulus.MaxEnumListPos = 2
	e := newExperiment(t, cfg)
	p, err := e.Prepare("A1[123]?X", 1)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(p.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one", p.Warnings)
	}
}

func TestPrepare_Error(t *testing.T) {
	dir := t.TempDir()
	events := logging.NewEventLogger(dir, "debug")
	e, err := New(testConfig(), nil, events)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.Prepare("A{0[1]", 1)
	if !errors.Is(err, sequence.ErrFormat) {
		t.Errorf("Prepare() error = %v, want format error", err)
	}
	events.Close()

	data, err := os.ReadFile(filepath.Join(dir, logging.EventsFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"event":"compile_error"`) {
		t.Errorf("events = %s", data)
	}
}

func TestRun_WithMonitor(t *testing.T) {
	cfg := testConfig()
	e := newExperiment(t, cfg)
	p, err := e.Prepare("A0[1]?X", 4)
	if err != nil {
		t.Fatal(err)
	}

	path := cfg.MonitorLogPath(t.TempDir())
	mon, err := monitor.Open(path, p.Schedule, cfg.Properties(), time.Now())
	if err != nil {
		t.Fatalf("monitor.Open() error = %v", err)
	}

	res, err := e.Run(t.Context(), p, mon, ReplayMotor("1", 2.5, 0.2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := mon.Close(); err != nil {
		t.Fatal(err)
	}

	if res.Steps < 299 || res.Steps > 301 {
		t.Errorf("Steps = %d, want ~300", res.Steps)
	}
	if res.VisibleSteps <= 0 || res.VisibleSteps >= res.Steps {
		t.Errorf("VisibleSteps = %d of %d", res.VisibleSteps, res.Steps)
	}
	if res.VocabSteps != res.VisibleSteps {
		t.Errorf("VocabSteps = %d, VisibleSteps = %d", res.VocabSteps, res.VisibleSteps)
	}
	if res.Presented != 12 || res.MotorWrites != 1 {
		t.Errorf("Presented = %d, MotorWrites = %d", res.Presented, res.MotorWrites)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(data), "\n")
	if last := lines[len(lines)-1]; last != "A0[1]?1" {
		t.Errorf("trace = %q, want %q", last, "A0[1]?1")
	}
}

func TestRun_Cancelled(t *testing.T) {
	e := newExperiment(t, testConfig())
	p, err := e.Prepare("A0[1]?X", 1)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := e.Run(ctx, p, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestReplayMotor(t *testing.T) {
	m := ReplayMotor("3-", 1, 0.5)
	tests := []struct {
		t    float64
		ramp float64
		out  string
	}{
		{0.5, 0, "_"},
		{1.1, 1, "3"},
		{1.3, 0, "3"},
		{1.6, 1, "-"},
		{2.1, 0, "_"},
	}
	for _, tt := range tests {
		in := m(tt.t)
		if in.Ramp != tt.ramp {
			t.Errorf("ramp at %v = %v, want %v", tt.t, in.Ramp, tt.ramp)
		}
		if got := monitor.Decode(in.Select); got != tt.out {
			t.Errorf("output at %v = %q, want %q", tt.t, got, tt.out)
		}
	}
}

func TestRun_MissingCollaboratorsWarn(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name     string
		withMon  bool
		motor    MotorSource
		wantWarn string
	}{
		{"no monitor", false, IdleMotor, "monitor missing"},
		{"no motor source", true, nil, "cannot connect from motor source"},
		{"both connected", true, IdleMotor, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e, err := New(cfg, logging.NewLogger("warn", &buf), nil)
			if err != nil {
				t.Fatal(err)
			}
			p, err := e.Prepare("A0[1]?X", 4)
			if err != nil {
				t.Fatal(err)
			}

			var mon *monitor.Monitor
			if tt.withMon {
				mon, err = monitor.Open(cfg.MonitorLogPath(t.TempDir()), p.Schedule, cfg.Properties(), time.Now())
				if err != nil {
					t.Fatal(err)
				}
				defer mon.Close()
			}

			buf.Reset()
			res, err := e.Run(t.Context(), p, mon, tt.motor)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Steps == 0 {
				t.Error("Run() stepped nothing")
			}

			out := buf.String()
			if tt.wantWarn == "" {
				if out != "" {
					t.Errorf("unexpected log output: %q", out)
				}
				return
			}
			if !strings.Contains(out, "level=WARN") || !strings.Contains(out, tt.wantWarn) {
				t.Errorf("log = %q, want warning containing %q", out, tt.wantWarn)
			}
		})
	}
}

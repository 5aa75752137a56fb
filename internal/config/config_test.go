package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Stimulus.PresentInterval != 0.15 {
		t.Errorf("expected PresentInterval 0.15, got %v", config.Stimulus.PresentInterval)
	}
	if config.Stimulus.PresentBlanks {
		t.Error("expected PresentBlanks to be false by default")
	}
	if config.Stimulus.MaxEnumListPos != 8 {
		t.Errorf("expected MaxEnumListPos 8, got %d", config.Stimulus.MaxEnumListPos)
	}
	if config.Stimulus.Seed != -1 {
		t.Errorf("expected Seed -1, got %d", config.Stimulus.Seed)
	}
	if config.Vocab.VisDim != 784 {
		t.Errorf("expected VisDim 784, got %d", config.Vocab.VisDim)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	t.Setenv("STIMSEQ_TEST_IMAGES", "/datasets/mnist.jsonl.gz")

	configContent := `
stimulus:
  raw_seq: "{A1[NNN]?XXX:3}"
  present_interval: 0.2
  present_blanks: true
  separate_repeats: true
  mtr_est_digit_response_time: 1.2
  seed: 7

data:
  data_dir: out
  image_set: ${STIMSEQ_TEST_IMAGES}

logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Stimulus.RawSeq != "{A1[NNN]?XXX:3}" {
		t.Errorf("RawSeq = %q", config.Stimulus.RawSeq)
	}
	if config.Stimulus.PresentInterval != 0.2 {
		t.Errorf("PresentInterval = %v", config.Stimulus.PresentInterval)
	}
	if !config.Stimulus.PresentBlanks {
		t.Error("expected PresentBlanks true")
	}
	if !config.SeparateRepeats() {
		t.Error("explicit separate_repeats should win over present_blanks")
	}
	if config.Stimulus.Seed != 7 {
		t.Errorf("Seed = %d", config.Stimulus.Seed)
	}
	if config.Data.ImageSet != "/datasets/mnist.jsonl.gz" {
		t.Errorf("ImageSet = %q, want expanded env var", config.Data.ImageSet)
	}
	// Unset fields keep their defaults
	if config.Stimulus.MaxEnumListPos != 8 {
		t.Errorf("MaxEnumListPos = %d, want default 8", config.Stimulus.MaxEnumListPos)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", config.Logging.Level)
	}
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("stimulus: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing default file", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		config, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if config.Stimulus.RawSeq != Default().Stimulus.RawSeq {
			t.Errorf("RawSeq = %q, want default", config.Stimulus.RawSeq)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing explicit config")
		}
	})

	t.Run("default file in home", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		cfg := Default()
		cfg.Stimulus.RawSeq = "A2[1]?X"
		if err := cfg.Save(filepath.Join(home, ".stimseq", "config.yaml")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		config, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if config.Stimulus.RawSeq != "A2[1]?X" {
			t.Errorf("RawSeq = %q", config.Stimulus.RawSeq)
		}
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STIMSEQ_RAW_SEQ", "A3[12]?X")
	t.Setenv("STIMSEQ_PRESENT_INTERVAL", "0.3")
	t.Setenv("STIMSEQ_PRESENT_BLANKS", "1")
	t.Setenv("STIMSEQ_SEED", "99")
	t.Setenv("STIMSEQ_DATA_DIR", "/tmp/spaun")
	t.Setenv("STIMSEQ_LOG_LEVEL", "trace")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Stimulus.RawSeq != "A3[12]?X" {
		t.Errorf("RawSeq = %q", config.Stimulus.RawSeq)
	}
	if config.Stimulus.PresentInterval != 0.3 {
		t.Errorf("PresentInterval = %v", config.Stimulus.PresentInterval)
	}
	if !config.Stimulus.PresentBlanks {
		t.Error("PresentBlanks not overridden")
	}
	if config.SeparateRepeats() {
		t.Error("SeparateRepeats should follow !present_blanks when unset")
	}
	if config.Stimulus.Seed != 99 {
		t.Errorf("Seed = %d", config.Stimulus.Seed)
	}
	if config.DataPath("/root") != "/tmp/spaun" {
		t.Errorf("DataPath = %q", config.DataPath("/root"))
	}
	if config.Logging.Level != "trace" {
		t.Errorf("Level = %q", config.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero interval", func(c *Config) { c.Stimulus.PresentInterval = 0 }, "present_interval"},
		{"negative motor time", func(c *Config) { c.Stimulus.MtrEstDigitResponseTime = -1 }, "mtr_est_digit_response_time"},
		{"no list positions", func(c *Config) { c.Stimulus.MaxEnumListPos = 0 }, "max_enum_list_pos"},
		{"zero dt", func(c *Config) { c.Stimulus.SimDt = 0 }, "sim_dt"},
		{"dt above interval", func(c *Config) { c.Stimulus.SimDt = 1 }, "must not exceed"},
		{"zero sp dim", func(c *Config) { c.Vocab.SPDim = 0 }, "vocab dimensions"},
		{"no probe name", func(c *Config) { c.Data.ProbeDataFilename = "" }, "probe_data_filename"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTimingAndSeed(t *testing.T) {
	c := Default()
	c.Stimulus.PresentBlanks = true
	tm := c.Timing()
	if tm.PresentInterval != 0.15 || !tm.PresentBlanks || tm.MotorResponseTime != 1.5 {
		t.Errorf("Timing() = %+v", tm)
	}

	now := time.Unix(0, 12345)
	if got := c.ResolveSeed(now); got != 12345 {
		t.Errorf("ResolveSeed with negative seed = %d, want 12345", got)
	}
	c.Stimulus.Seed = 3
	if got := c.ResolveSeed(now); got != 3 {
		t.Errorf("ResolveSeed = %d, want 3", got)
	}
}

func TestMonitorLogPath(t *testing.T) {
	c := Default()
	c.Data.DataDir = "results"
	c.Data.ProbeDataFilename = "spaun_run.npz"
	want := filepath.Join("/proj", "results", "spaun_run_log.txt")
	if got := c.MonitorLogPath("/proj"); got != want {
		t.Errorf("MonitorLogPath() = %q, want %q", got, want)
	}
}

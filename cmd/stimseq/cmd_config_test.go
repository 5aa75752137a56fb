package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigCmd_SetGet(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "stimseq.yaml")

	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"stimulus.present_interval", "0.2", 0.2},
		{"stimulus.present_blanks", "true", true},
		{"stimulus.raw_seq", "A3[#1#2#3]?XXX", "A3[#1#2#3]?XXX"},
		{"vocab.sp_dim", "256", float64(256)},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if _, err := runCmd(t, "config", "set", tt.key, tt.value, "--config", path); err != nil {
				t.Fatalf("set failed: %v", err)
			}
			out, err := runCmd(t, "config", "get", tt.key, "--config", path, "--json")
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if got := decodeJSON(t, out)["value"]; got != tt.want {
				t.Errorf("value = %v (%T), want %v", got, got, tt.want)
			}
		})
	}

	// Earlier settings persist
	out, err := runCmd(t, "config", "get", "stimulus.present_interval", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "stimulus.present_interval = 0.2" {
		t.Errorf("output = %q", out)
	}
}

func TestConfigCmd_Errors(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "stimseq.yaml")

	if _, err := runCmd(t, "config", "set", "stimulus.present_interval", "0", "--config", path); err == nil {
		t.Error("expected validation error")
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("config written despite validation error")
	}
	if _, err := runCmd(t, "config", "set", "nope.key", "1", "--config", path); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := runCmd(t, "config", "get", "nope.key", "--config", path); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestConfigCmd_DefaultPath(t *testing.T) {
	isolateEnv(t)

	if _, err := runCmd(t, "config", "set", "logging.level", "debug"); err != nil {
		t.Fatal(err)
	}
	home, _ := os.UserHomeDir()
	if _, err := os.Stat(filepath.Join(home, ".stimseq", "config.yaml")); err != nil {
		t.Errorf("default config not written: %v", err)
	}

	out, err := runCmd(t, "config", "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"logging.level:", "debug", "data.image_set:", "(not set)"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

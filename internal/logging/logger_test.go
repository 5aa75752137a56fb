package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"warning", "warning", slog.LevelWarn},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"warn filters info", "warn", false, false},
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", got, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			if got := strings.Contains(buf.String(), "info message"); got != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", got, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(t.Context(), LevelTrace, "stream resolved")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("trace level not labelled: %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(t.Context(), slog.LevelError) {
		t.Error("Discard logger should not be enabled for errors")
	}
}

func TestNewEventLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "info")
	if el != nil {
		t.Error("expected nil EventLogger at info level")
	}

	el.Log("compile", map[string]any{"steps": 3})
	if err := el.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, EventsFile)); err == nil {
		t.Error("events.jsonl should not exist at info level")
	}
}

func TestEventLogger_Log(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "debug")
	if el == nil {
		t.Fatal("expected EventLogger at debug level")
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	el.now = func() time.Time { return fixed }

	fields := map[string]any{"steps": 12, "raw": "A0[1]?X"}
	el.Log("compile", fields)
	el.Log("run", map[string]any{"runtime": 1.5})
	if err := el.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, ok := fields["event"]; ok {
		t.Error("Log() mutated the caller's map")
	}

	data, err := os.ReadFile(filepath.Join(dir, EventsFile))
	if err != nil {
		t.Fatalf("failed to read events.jsonl: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}
	if first["event"] != "compile" || first["raw"] != "A0[1]?X" || first["steps"] != float64(12) {
		t.Errorf("first entry = %v", first)
	}
	if first["time"] != "2026-01-02T03:04:05Z" {
		t.Errorf("time = %v", first["time"])
	}
}

func TestEventLogger_LogAfterClose(t *testing.T) {
	el := NewEventLogger(t.TempDir(), "trace")
	el.Log("before", nil)
	if err := el.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	el.Log("after", nil)
	if err := el.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestEventLogger_FilePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	el := NewEventLogger(dir, "debug")
	if el == nil {
		t.Fatal("expected EventLogger when dir needs creation")
	}
	defer el.Close()
	el.Log("perm", nil)

	info, err := os.Stat(filepath.Join(dir, EventsFile))
	if err != nil {
		t.Fatalf("failed to stat events.jsonl: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

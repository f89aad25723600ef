package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, slog.LevelInfo)

	l.Debug("hidden")
	l.Info("shown", slog.String("bot", "b1"))
	l.Warnf("conflict on %s", "t1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 records, got %d: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if rec["msg"] != "shown" || rec["bot"] != "b1" {
		t.Errorf("Unexpected record %v", rec)
	}
	if !strings.Contains(lines[1], "conflict on t1") {
		t.Errorf("Expected formatted warning, got %s", lines[1])
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, slog.LevelDebug).With(slog.String("schedule", "s1"))
	l.Debugf("level %d", 2)
	if !strings.Contains(buf.String(), `"schedule":"s1"`) || !strings.Contains(buf.String(), "level 2") {
		t.Errorf("Unexpected output %s", buf.String())
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	l.Debug("x")
	l.Infof("x %d", 1)
	if l.With("k", "v") != nil {
		t.Error("Expected With on nil to stay nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewWritesToDir(t *testing.T) {
	dir := t.TempDir()
	l := New("info", dir)
	if !strings.HasPrefix(l.LogFile, dir) {
		t.Errorf("Expected log file under %s, got %s", dir, l.LogFile)
	}
}

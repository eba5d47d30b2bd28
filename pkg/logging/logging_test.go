package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tc := range tests {
		if got := tc.level.String(); got != tc.expected {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tc.level, got, tc.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.name); got != tc.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.name, got, tc.expected)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)

	Debug("Test", "debug message")
	Info("Test", "info message")
	Warn("Test", "warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("debug message should be filtered at Warn level")
	}
	if strings.Contains(out, "info message") {
		t.Error("info message should be filtered at Warn level")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("warn message should be emitted at Warn level")
	}
}

func TestSubsystemAndErrorAttributes(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Error("Refresh", errors.New("connection refused"), "refresh failed after %d candidates", 3)

	out := buf.String()
	if !strings.Contains(out, "subsystem=Refresh") {
		t.Errorf("expected subsystem attribute in output, got: %s", out)
	}
	if !strings.Contains(out, "connection refused") {
		t.Errorf("expected error attribute in output, got: %s", out)
	}
	if !strings.Contains(out, "refresh failed after 3 candidates") {
		t.Errorf("expected formatted message in output, got: %s", out)
	}
}

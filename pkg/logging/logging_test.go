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
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, test := range tests {
		if got := ParseLevel(test.name); got != test.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", test.name, got, test.expected)
		}
	}
}

func TestInit_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf, false)

	Debug("Test", "debug message")
	Info("Test", "info message")
	Warn("Test", "warn message")
	Error("Test", errors.New("boom"), "error message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("debug message should be filtered at warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("warn message should be logged at warn level")
	}
	if !strings.Contains(output, "error message") {
		t.Error("error message should be logged at warn level")
	}
	if !strings.Contains(output, "boom") {
		t.Error("error attribute should include the wrapped error")
	}
}

func TestInit_SubsystemAttribute(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf, false)

	Info("OAuth", "token refreshed for user %s", "u-123")

	output := buf.String()
	if !strings.Contains(output, "subsystem=OAuth") {
		t.Errorf("expected subsystem attribute in output, got: %s", output)
	}
	if !strings.Contains(output, "token refreshed for user u-123") {
		t.Errorf("expected formatted message in output, got: %s", output)
	}
}

func TestInit_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, &buf, true)

	Info("Gateway", "serving")

	output := buf.String()
	if !strings.Contains(output, `"subsystem":"Gateway"`) {
		t.Errorf("expected JSON subsystem field, got: %s", output)
	}
}

func TestTruncateSessionID(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"", ""},
		{"short", "short"},
		{"12345678", "12345678"},
		{"123456789", "12345678..."},
		{"mcp-session-abcdef0123456789", "mcp-sess..."},
	}

	for _, test := range tests {
		if got := TruncateSessionID(test.in); got != test.expected {
			t.Errorf("TruncateSessionID(%q) = %q, expected %q", test.in, got, test.expected)
		}
	}
}

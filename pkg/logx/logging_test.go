package logx

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" info ", zerolog.InfoLevel},
		{"", zerolog.ErrorLevel},        // falls back to def
		{"verbose", zerolog.ErrorLevel}, // unknown falls back to def
	}
	for _, tt := range tests {
		if got := parseLevel(tt.raw, zerolog.ErrorLevel); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestFormatAlertJSON(t *testing.T) {
	t.Parallel()
	line := `{"level":"warn","time":"x","message":"task failed","task":"beeper","err":"boom"}`
	got := formatAlertJSON([]byte(line))
	if !strings.HasPrefix(got, "[WARN] task failed") {
		t.Fatalf("missing header: %q", got)
	}
	if !strings.Contains(got, "task=beeper") || !strings.Contains(got, "err=boom") {
		t.Fatalf("missing fields: %q", got)
	}
	if strings.Contains(got, "time=") {
		t.Fatalf("time should be stripped: %q", got)
	}

	// Non-JSON input is passed through trimmed.
	if got := formatAlertJSON([]byte("  raw text\n")); got != "raw text" {
		t.Fatalf("raw passthrough = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("hello", 10); got != "hello" {
		t.Fatalf("short string changed: %q", got)
	}
	got := truncate(strings.Repeat("x", 100), 20)
	if len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated = %q", got)
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger // zero value must be usable
	l.Info("ignored", String("k", "v"))
	l.With(Int("n", 1)).Error("still ignored")
	if !l.IsZero() {
		t.Fatal("zero logger reports non-zero")
	}
	if Nop().IsZero() {
		t.Fatal("Nop() should carry a base logger")
	}
}

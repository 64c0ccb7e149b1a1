package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newBufferLogger(level string) (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(level))
	return slog.New(newConsoleHandler(buf, levelVar)), buf
}

func TestConsoleHandlerFormatsComponentAndAttrs(t *testing.T) {
	logger, buf := newBufferLogger("info")
	logger = NewComponentLogger(logger, "controller")

	logger.Info("state changed",
		String(FieldState, "parked"),
		Duration("time_in_state", 61*time.Second),
		Int("load_cycles", 3),
	)

	line := buf.String()
	if !strings.Contains(line, " INFO controller: state changed") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "state=parked") {
		t.Fatalf("missing state attr: %q", line)
	}
	if !strings.Contains(line, "time_in_state=1m1s") {
		t.Fatalf("missing duration attr: %q", line)
	}
	if !strings.Contains(line, "load_cycles=3") {
		t.Fatalf("missing int attr: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	logger, buf := newBufferLogger("info")
	logger.Info("touch failed", String("path", "/mnt/my disk/touch"))
	if !strings.Contains(buf.String(), `path="/mnt/my disk/touch"`) {
		t.Fatalf("expected quoted path, got %q", buf.String())
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	logger, buf := newBufferLogger("warn")
	logger.Info("suppressed")
	logger.Warn("visible")
	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info record should be suppressed: %q", out)
	}
	if !strings.Contains(out, "WARN visible") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		" DEBUG ": slog.LevelDebug,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNoopHandlerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should report disabled")
	}
	logger.Error("goes nowhere", Error(nil))
}

package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"timelapse/internal/logging"
)

func newFileLogger(t *testing.T, format, path string) *logging.Logger {
	t.Helper()
	logger, err := logging.New(logging.Options{Format: format, Level: "info", Console: io.Discard, File: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestNewWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "nested", "timelapse.log")
	logger, err := logging.New(logging.Options{Level: "info", Console: &console, File: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("daemon started")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon started") {
		t.Fatalf("expected message in log file, got %q", content)
	}
	if console.String() != string(content) {
		t.Fatalf("console and file diverge:\n%q\n%q", console.String(), content)
	}
}

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	} {
		got, err := logging.ParseLevel(input)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := logging.New(logging.Options{Level: "verbose"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestConsoleLoggerRoundsDurationsAndUsesLocalTime(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "durations.log")
	logger := newFileLogger(t, "console", logPath)

	logger.Info("timelapse rendered", logging.Duration("elapsed", 83*time.Second+456*time.Millisecond))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	line := string(content)
	if !strings.Contains(line, "elapsed=1m23s") {
		t.Fatalf("expected rounded duration, got %q", line)
	}
	stamp, _, _ := strings.Cut(line, " ")
	parsed, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		t.Fatalf("timestamp %q: %v", stamp, err)
	}
	_, wantOffset := time.Now().Zone()
	if _, offset := parsed.Zone(); offset != wantOffset {
		t.Fatalf("expected local offset %d, got %d", wantOffset, offset)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger := newFileLogger(t, "console", logPath)

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerRendersComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger := newFileLogger(t, "console", logPath)

	component := logging.NewComponentLogger(logger.Logger, "capture")
	component.Info("frame saved", logging.String("path", "/tmp/a b.jpg"), logging.Int("frames", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO capture: frame saved") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, `path="/tmp/a b.jpg"`) {
		t.Fatalf("expected quoted path, got %q", line)
	}
	if !strings.Contains(line, "frames=3") {
		t.Fatalf("expected int field, got %q", line)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger := newFileLogger(t, "json", logPath)
	logging.WarnWithContext(logger.Logger, "capture failed", "capture_failed")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
	if entry[logging.FieldEventType] != "capture_failed" {
		t.Fatalf("expected event_type, got %v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldImpact] == nil || entry[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default impact and hint, got %v", entry)
	}
}

func TestUnsupportedFormatFails(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsRunFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger := newFileLogger(t, "console", logPath)
	ctx := logging.WithDate(logging.WithRunID(context.Background(), "run-1"), "20240101")
	logging.WithContext(ctx, logger.Logger).Info("render started")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "run_id=run-1") || !strings.Contains(string(content), "date=20240101") {
		t.Fatalf("expected context fields, got %q", content)
	}
}

func TestCleanupOldLogsRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "timelapse-old.log")
	newPath := filepath.Join(dir, "timelapse-new.log")
	keepPath := filepath.Join(dir, "timelapse-current.log")
	for _, path := range []string{oldPath, newPath, keepPath} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{oldPath, keepPath} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "timelapse-*.log",
		Exclude: []string{keepPath},
	})
	if removed != 1 {
		t.Fatalf("expected 1 file removed, got %d", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{newPath, keepPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}

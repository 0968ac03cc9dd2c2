package daemonrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"timelapse/internal/logging"
	"timelapse/internal/testsupport"
)

func TestRunPreflightFailsWithoutSecret(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	err := runPreflight(context.Background(), logging.NewNop(), cfg)
	if !errors.Is(err, ErrPreflight) {
		t.Fatalf("expected ErrPreflight, got %v", err)
	}
	if !strings.Contains(err.Error(), "Stream credential") {
		t.Fatalf("error does not name failing check: %v", err)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "timelapse-1.log")
	if err := os.WriteFile(target, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	current := filepath.Join(dir, "timelapse.log")
	if err := ensureCurrentLogPointer(current, target); err != nil {
		t.Fatalf("ensureCurrentLogPointer: %v", err)
	}

	next := filepath.Join(dir, "timelapse-2.log")
	if err := os.WriteFile(next, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureCurrentLogPointer(current, next); err != nil {
		t.Fatalf("ensureCurrentLogPointer: %v", err)
	}
	data, err := os.ReadFile(current)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Fatalf("pointer not updated, read %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timelapse.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) == "" {
		t.Fatal("pid file empty")
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

package daemon_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"timelapse/internal/daemon"
	"timelapse/internal/history"
	"timelapse/internal/logging"
	"timelapse/internal/render"
	"timelapse/internal/testsupport"
)

type solidSource struct {
	grabs atomic.Int32
}

func (s *solidSource) Grab(context.Context) (image.Image, error) {
	s.grabs.Add(1)
	return imaging.New(80, 60, color.Gray{Y: 128}), nil
}

type touchEncoder struct{}

func (touchEncoder) Encode(_ context.Context, job render.Job) error {
	return os.WriteFile(job.Output, []byte("video"), 0o644)
}

func newDaemon(t *testing.T) (*daemon.Daemon, *solidSource) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Capture.IntervalSeconds = 3600
	store := testsupport.MustOpenHistory(t, cfg)
	source := &solidSource{}
	d, err := daemon.New(cfg, store, logging.NewNop(), daemon.Options{Source: source, Encoder: touchEncoder{}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, source
}

func TestDaemonStartStop(t *testing.T) {
	d, source := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.ServerAddress == "" {
		t.Fatal("expected dashboard address")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for source.grabs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if source.grabs.Load() == 0 {
		t.Fatal("expected an immediate first capture")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Capture.IntervalSeconds = 3600
	store := testsupport.MustOpenHistory(t, cfg)
	opts := daemon.Options{Source: &solidSource{}, Encoder: touchEncoder{}}

	first, err := daemon.New(cfg, store, logging.NewNop(), opts)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, store, logging.NewNop(), opts)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	// Each daemon binds its own ephemeral port.
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if locked, err := daemon.Locked(cfg.LockPath()); err != nil || !locked {
		t.Fatalf("Locked = %v, %v; want true", locked, err)
	}
	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	first.Stop()
	if locked, _ := daemon.Locked(cfg.LockPath()); locked {
		t.Fatal("lock still held after Stop")
	}
}

func TestDaemonStartRecoversInterruptedRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Capture.IntervalSeconds = 3600
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	run, err := store.Begin(ctx, history.KindDaily, "20240101", 10)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	d, err := daemon.New(cfg, store, logging.NewNop(), daemon.Options{Source: &solidSource{}, Encoder: touchEncoder{}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != history.StatusFailed || got.ErrorMessage != history.InterruptedReason {
		t.Fatalf("run not recovered: %+v", got)
	}
}

func TestNewRequiresStreamCredential(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	if _, err := daemon.New(cfg, store, logging.NewNop(), daemon.Options{}); err == nil {
		t.Fatal("expected error without stream secret")
	}
	if _, err := os.Stat(filepath.Dir(cfg.LockPath())); err != nil {
		t.Fatalf("state dir missing: %v", err)
	}
}

func TestAcquireLockFailsWhileDaemonRuns(t *testing.T) {
	d, _ := newDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if _, err := daemon.AcquireLock(d.Status(context.Background()).LockFilePath); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"timelapse/internal/config"
	"timelapse/internal/daemon"
	"timelapse/internal/deps"
	"timelapse/internal/history"
	"timelapse/internal/logging"
	"timelapse/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SkipStreamProbe disables the startup RTSP DESCRIBE.
	SkipStreamProbe bool
}

// ErrPreflight marks startup checks that must pass before capture begins.
var ErrPreflight = errors.New("preflight failed")

// Run starts the timelapse daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("timelapse-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	runLog, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Console:     os.Stdout,
		File:        logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer runLog.Close()
	logger := runLog.Logger
	if err := ensureCurrentLogPointer(cfg.LogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update timelapse.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "timelapse-*.log", Exclude: []string{logPath}},
	)

	if err := runPreflight(signalCtx, logger, cfg); err != nil {
		return err
	}
	logDependencySnapshot(signalCtx, logger, cfg)
	if !opts.SkipStreamProbe {
		probeStream(signalCtx, logger, cfg)
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, "timelapse.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := history.Open(cfg)
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, store, logger, daemon.Options{})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that no other instance is running and the state directory is writable"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("timelapse daemon shutting down")
	return nil
}

func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
		}
	}
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	for _, r := range failed {
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
		)
	}
	return fmt.Errorf("%w: %s", ErrPreflight, preflight.Summary(failed))
}

func probeStream(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	address, err := cfg.StreamAddress()
	if err != nil {
		return
	}
	timeout := time.Duration(cfg.Capture.TimeoutSeconds) * time.Second
	result := preflight.CheckStream(ctx, address, cfg.Capture.RTSPTransport, timeout)
	if result.Passed {
		logger.Info("camera stream reachable",
			logging.String(logging.FieldEventType, "stream_probe_ok"),
			logging.String("detail", result.Detail),
		)
		return
	}
	logging.WarnWithContext(logger, "camera stream probe failed; capture will keep retrying", "stream_probe_failed",
		logging.String("detail", result.Detail),
		logging.String(logging.FieldErrorHint, "verify the camera is online and the URL in the stream secret file"),
		logging.String(logging.FieldImpact, "frames are skipped until the stream answers"),
	)
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	statuses := preflight.CheckSystemDeps(ctx, cfg)
	for _, s := range statuses {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "dependency_snapshot"),
			logging.String("dependency", s.Name),
			logging.String("binary", s.Command),
			logging.Bool("available", s.Available),
		}
		if s.Version != "" {
			attrs = append(attrs, logging.String("version", s.Version))
		}
		if s.Available || s.Optional {
			logger.Info("dependency snapshot", logging.Args(attrs...)...)
			continue
		}
		logging.WarnWithContext(logger, "required dependency unavailable", "dependency_missing",
			append(attrs,
				logging.String("detail", s.Detail),
				logging.String(logging.FieldErrorHint, "install ffmpeg with libx264 or set render.ffmpeg_binary"),
				logging.String(logging.FieldImpact, "captures and renders fail until ffmpeg is available"),
			)...)
	}
	if missing := deps.Missing(statuses); len(missing) == 0 {
		logger.Debug("all required dependencies available")
	}
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"timelapse/internal/artifacts"
	"timelapse/internal/capture"
	"timelapse/internal/config"
	"timelapse/internal/frames"
	"timelapse/internal/history"
	"timelapse/internal/logging"
	"timelapse/internal/render"
	"timelapse/internal/server"
	"timelapse/internal/stream"
)

// ErrAlreadyRunning is returned when another process holds the daemon lock.
var ErrAlreadyRunning = errors.New("another timelapse daemon instance is already running")

// Options overrides the external collaborators. Nil fields fall back to the
// ffmpeg-backed implementations built from the config.
type Options struct {
	Source  stream.Source
	Encoder render.Encoder
	Clock   func() time.Time
}

// Daemon owns the capture loop, the render pipeline and the dashboard, and
// enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	history  *history.Store
	frames   *frames.Store
	pipeline *render.Pipeline
	loop     *capture.Loop
	server   *server.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	LockFilePath  string
	HistoryDBPath string
	ServerAddress string
	PendingFrames int
	History       history.Summary
}

// New constructs a daemon with initialized dependencies. The stream address
// is read from the secret file here so a missing credential fails before any
// lock is taken.
func New(cfg *config.Config, store *history.Store, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, history store, and logger")
	}

	source := opts.Source
	if source == nil {
		address, err := cfg.StreamAddress()
		if err != nil {
			return nil, err
		}
		source = &stream.FFmpegSource{
			Binary:    cfg.Render.FFmpegBinary,
			Address:   address,
			Transport: cfg.Capture.RTSPTransport,
			Timeout:   time.Duration(cfg.Capture.TimeoutSeconds) * time.Second,
		}
	}
	frameStore := frames.NewStore(cfg.Paths.FramesDir)
	pipeline := NewPipeline(cfg, frameStore, store, logger, opts.Encoder)
	loop := capture.New(capture.Options{
		Source:      source,
		Store:       frameStore,
		Renderer:    pipeline,
		Interval:    time.Duration(cfg.Capture.IntervalSeconds) * time.Second,
		Width:       cfg.Capture.Width,
		Height:      cfg.Capture.Height,
		JPEGQuality: cfg.Capture.JPEGQuality,
		Logger:      logger,
		Clock:       opts.Clock,
	})
	srv := server.New(server.Options{
		Bind:                 cfg.Server.Bind,
		Catalog:              artifacts.NewCatalog(cfg.Paths.VideoDir, cfg.Paths.ThumbnailDir, cfg.Render.FFprobeBinary, logger),
		Frames:               frameStore,
		History:              store,
		Renderer:             pipeline,
		RangeRenderEnabled:   cfg.Server.RangeRenderEnabled,
		RangeRenderPerMinute: cfg.Server.RangeRenderPerMinute,
		RangeRenderBurst:     cfg.Server.RangeRenderBurst,
		Logger:               logger,
	})

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		history:  store,
		frames:   frameStore,
		pipeline: pipeline,
		loop:     loop,
		server:   srv,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, marks runs left over from a crash as
// failed, and launches the dashboard and the capture loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := tryLock(d.lock); err != nil {
		return err
	}

	recovered, err := d.history.RecoverInterrupted(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted runs: %w", err)
	}
	if recovered > 0 {
		logging.WarnWithContext(d.logger, "interrupted render runs marked failed", "runs_recovered",
			logging.Int64("count", recovered),
			logging.String(logging.FieldErrorHint, "the affected days are re-rendered from their frames"),
			logging.String(logging.FieldImpact, "history shows failed runs from the previous process"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start server: %w", err)
	}

	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.loop.Run(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("timelapse daemon started",
		logging.String("lock", d.lockPath),
		logging.String("server", d.server.Addr()),
	)
	return nil
}

// Stop cancels the capture loop, waits for any in-flight render to clean up,
// shuts the dashboard down and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.server.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("timelapse daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		LockFilePath:  d.lockPath,
		HistoryDBPath: d.history.Path(),
		ServerAddress: d.server.Addr(),
	}
	if list, err := d.frames.List(); err == nil {
		status.PendingFrames = len(list)
	}
	if summary, err := d.history.Summarize(ctx); err == nil {
		status.History = summary
	}
	return status
}

// NewPipeline builds the render pipeline shared by the daemon and one-shot
// CLI renders. A nil encoder selects ffmpeg.
func NewPipeline(cfg *config.Config, frameStore *frames.Store, store *history.Store, logger *slog.Logger, encoder render.Encoder) *render.Pipeline {
	if encoder == nil {
		encoder = &render.FFmpegEncoder{
			Binary:      cfg.Render.FFmpegBinary,
			Preset:      cfg.Render.Preset,
			CRF:         cfg.Render.CRF,
			PixelFormat: cfg.Render.PixelFormat,
			ManifestDir: cfg.Paths.FramesDir,
			Logger:      logger,
		}
	}
	return render.NewPipeline(render.Options{
		Frames:       frameStore,
		VideoDir:     cfg.Paths.VideoDir,
		ThumbnailDir: cfg.Paths.ThumbnailDir,
		Encoder:      encoder,
		FPS:          cfg.Render.FPS,
		JPEGQuality:  cfg.Capture.JPEGQuality,
		Timeout:      time.Duration(cfg.Render.TimeoutSeconds) * time.Second,
		History:      store,
		Logger:       logger,
	})
}

// AcquireLock takes the single-instance lock for work outside a running
// daemon, such as a CLI render. The caller must Unlock it.
func AcquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	if err := tryLock(lock); err != nil {
		return nil, err
	}
	return lock, nil
}

func tryLock(lock *flock.Flock) error {
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Locked reports whether a daemon currently holds the lock at path. The
// probe lock is released immediately.
func Locked(path string) (bool, error) {
	probe := flock.New(path)
	ok, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock: %w", err)
	}
	if ok {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}

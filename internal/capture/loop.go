package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"timelapse/internal/frames"
	"timelapse/internal/logging"
	"timelapse/internal/render"
	"timelapse/internal/stream"
)

// Renderer renders every closed day group. *render.Pipeline satisfies it.
type Renderer interface {
	RenderClosed(ctx context.Context, today string) (render.Report, error)
}

// Options wires a Loop.
type Options struct {
	Source      stream.Source
	Store       *frames.Store
	Renderer    Renderer
	Interval    time.Duration
	Width       int
	Height      int
	JPEGQuality int
	Logger      *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Loop captures one frame per interval and renders closed days inline when
// the date changes.
type Loop struct {
	source   stream.Source
	store    *frames.Store
	renderer Renderer
	interval time.Duration
	width    int
	height   int
	quality  int
	logger   *slog.Logger
	now      func() time.Time
	trigger  Trigger
}

// TickResult records what a single tick did.
type TickResult struct {
	Frame      *frames.Frame
	CaptureErr error
	Rollover   *Rollover
	Report     *render.Report
}

// New constructs a capture loop.
func New(opts Options) *Loop {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = 90
	}
	return &Loop{
		source:   opts.Source,
		store:    opts.Store,
		renderer: opts.Renderer,
		interval: opts.Interval,
		width:    opts.Width,
		height:   opts.Height,
		quality:  quality,
		logger:   logging.NewComponentLogger(logger, "capture"),
		now:      clock,
	}
}

// Run ticks until ctx is cancelled. The first tick happens immediately and
// reconciles leftover closed days; each later tick starts a full interval
// after the previous one finished, so ticks missed during a long render are
// skipped.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("capture loop started",
		logging.Duration("interval", l.interval),
		logging.Int("width", l.width),
		logging.Int("height", l.height),
		logging.String("frames_dir", l.store.Dir()),
	)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("capture loop stopped")
			return nil
		case <-timer.C:
		}
		l.Tick(ctx)
		timer.Reset(l.interval)
	}
}

// Tick captures one frame and then consults the day trigger.
func (l *Loop) Tick(ctx context.Context) TickResult {
	var result TickResult
	frame, err := l.capture(ctx)
	if err != nil {
		result.CaptureErr = err
		if ctx.Err() == nil {
			l.warnCapture(err)
		}
	} else {
		result.Frame = &frame
		l.logger.Debug("frame captured", logging.String("frame", frame.Name))
	}

	if ctx.Err() != nil {
		return result
	}
	today := frames.DateString(l.now())
	rollover, changed := l.trigger.Check(today)
	if !changed {
		return result
	}
	result.Rollover = &rollover
	report := l.renderClosed(ctx, rollover)
	result.Report = &report
	l.trigger.Observe(today)
	return result
}

func (l *Loop) capture(ctx context.Context) (frames.Frame, error) {
	img, err := l.source.Grab(ctx)
	if err != nil {
		return frames.Frame{}, err
	}
	ts := l.now()
	data, err := l.encode(img)
	if err != nil {
		return frames.Frame{}, err
	}
	return l.store.Save(ts, data)
}

// encode normalizes a grabbed image to the configured resolution.
func (l *Loop) encode(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if l.width > 0 && l.height > 0 && (b.Dx() != l.width || b.Dy() != l.height) {
		img = imaging.Resize(img, l.width, l.height, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(l.quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *Loop) renderClosed(ctx context.Context, rollover Rollover) render.Report {
	attrs := []logging.Attr{logging.String("today", rollover.Today)}
	if rollover.Reconcile {
		attrs = append(attrs, logging.Bool("reconcile", true))
	} else {
		attrs = append(attrs, logging.String("closed", rollover.Closed))
	}
	l.logger.Info("day boundary detected", logging.Args(attrs...)...)

	report, err := l.renderer.RenderClosed(ctx, rollover.Today)
	if err != nil {
		logging.WarnWithContext(l.logger, "render pass skipped", "render_pass_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the frames directory is readable"),
			logging.String(logging.FieldImpact, "closed days render on the next boundary"),
		)
		return report
	}
	if len(report.Rendered) > 0 || len(report.Failed) > 0 {
		l.logger.Info("render pass complete",
			logging.Int("rendered", len(report.Rendered)),
			logging.Int("failed", len(report.Failed)),
		)
	}
	return report
}

func (l *Loop) warnCapture(err error) {
	switch {
	case errors.Is(err, frames.ErrFrameExists):
		logging.WarnWithContext(l.logger, "frame already captured this second", "frame_exists",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "capture interval shorter than one second"),
		)
	default:
		logging.WarnWithContext(l.logger, "capture failed", "capture_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the camera is reachable and the stream address is correct"),
			logging.String(logging.FieldImpact, "interval skipped"),
		)
	}
}

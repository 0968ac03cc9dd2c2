package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"timelapse/internal/fileutil"
	"timelapse/internal/frames"
	"timelapse/internal/history"
	"timelapse/internal/logging"
)

// Recorder persists render runs. *history.Store satisfies it.
type Recorder interface {
	Begin(ctx context.Context, kind history.Kind, label string, frameCount int) (*history.Run, error)
	Finish(ctx context.Context, id string, outcome history.Outcome) error
}

// Options wires a Pipeline.
type Options struct {
	Frames       *frames.Store
	VideoDir     string
	ThumbnailDir string
	Encoder      Encoder
	FPS          int
	JPEGQuality  int
	Timeout      time.Duration
	History      Recorder
	Logger       *slog.Logger
}

// Pipeline renders frame groups into videos and thumbnails. Encodes are
// serialized: a range render waits for a running daily render and vice versa.
type Pipeline struct {
	frames       *frames.Store
	videoDir     string
	thumbnailDir string
	encoder      Encoder
	fps          int
	jpegQuality  int
	timeout      time.Duration
	history      Recorder
	logger       *slog.Logger

	mu sync.Mutex
}

// Result describes a published artifact.
type Result struct {
	Kind       history.Kind
	Label      string
	RunID      string
	Video      string
	Thumbnail  string
	FrameCount int
	Width      int
	Height     int
	Elapsed    time.Duration
}

// Report summarises one pass over the closed day groups.
type Report struct {
	Rendered []Result
	Failed   map[string]error
}

// NewPipeline constructs a pipeline from opts.
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	thumbDir := opts.ThumbnailDir
	if thumbDir == "" {
		thumbDir = opts.VideoDir
	}
	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = 90
	}
	return &Pipeline{
		frames:       opts.Frames,
		videoDir:     opts.VideoDir,
		thumbnailDir: thumbDir,
		encoder:      opts.Encoder,
		fps:          opts.FPS,
		jpegQuality:  quality,
		timeout:      opts.Timeout,
		history:      opts.History,
		logger:       logging.NewComponentLogger(logger, "render"),
	}
}

// RenderClosed renders every day group strictly earlier than today. A failed
// group is logged and its frames kept; the remaining groups still render. The
// returned error is non-nil only when the frame store cannot be listed.
func (p *Pipeline) RenderClosed(ctx context.Context, today string) (Report, error) {
	report := Report{Failed: make(map[string]error)}
	list, err := p.frames.List()
	if err != nil {
		return report, Wrap(ErrFilesystem, today, "list frames", err)
	}
	groups := frames.ClosedGroups(list, today)
	if len(groups) == 0 {
		p.logger.Debug("no closed day groups", logging.String("today", today))
		return report, nil
	}
	for _, group := range groups {
		if ctx.Err() != nil {
			break
		}
		result, err := p.RenderGroup(ctx, group)
		if err != nil {
			report.Failed[group.Date] = err
			continue
		}
		report.Rendered = append(report.Rendered, result)
	}
	return report, nil
}

// RenderGroup publishes <date>.mp4 and <date>.jpg for one day group and then
// deletes the group's frames. On any failure the frames are kept and no file
// appears under a final name.
func (p *Pipeline) RenderGroup(ctx context.Context, group frames.DayGroup) (Result, error) {
	return p.render(ctx, history.KindDaily, group.Date, group.Paths(), true)
}

// RenderRange renders frames [start, end] (0-based, inclusive) of the current
// frame store listing. Source frames are not deleted.
func (p *Pipeline) RenderRange(ctx context.Context, start, end int) (Result, error) {
	list, err := p.frames.List()
	if err != nil {
		return Result{}, Wrap(ErrFilesystem, "range", "list frames", err)
	}
	if err := ValidateRange(start, end, len(list)); err != nil {
		return Result{}, err
	}
	return p.RenderFrames(ctx, list[start:end+1])
}

// RenderFrames renders an already selected run of frames under its range
// label. Source frames are not deleted.
func (p *Pipeline) RenderFrames(ctx context.Context, selected []frames.Frame) (Result, error) {
	if len(selected) == 0 {
		return Result{}, Wrap(ErrNoFrames, "range", "render", nil)
	}
	paths := make([]string, len(selected))
	for i, f := range selected {
		paths[i] = f.Path
	}
	return p.render(ctx, history.KindRange, RangeLabel(selected[0], selected[len(selected)-1]), paths, false)
}

// ValidateRange checks 0 <= start <= end < count.
func ValidateRange(start, end, count int) error {
	if start < 0 || end < start || end >= count {
		return fmt.Errorf("%w: [%d, %d] with %d frames", ErrInvalidRange, start, end, count)
	}
	return nil
}

// RangeLabel names a range artifact after its first and last frame stamps.
func RangeLabel(first, last frames.Frame) string {
	return strings.TrimSuffix(first.Name, frames.Ext) + "-" + strings.TrimSuffix(last.Name, frames.Ext)
}

func (p *Pipeline) render(ctx context.Context, kind history.Kind, label string, paths []string, consume bool) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	started := time.Now()
	result := Result{Kind: kind, Label: label, FrameCount: len(paths)}
	runID := p.begin(kind, label, len(paths))
	result.RunID = runID
	logger := p.logger.With(
		logging.String(logging.FieldDate, label),
		logging.String("kind", string(kind)),
	)
	if runID != "" {
		logger = logger.With(logging.String(logging.FieldRunID, runID))
	}
	logger.Info("render starting", logging.Int("frames", len(paths)))

	err := p.publish(ctx, label, paths, &result)
	if err == nil && consume {
		p.consume(logger, paths)
	}
	result.Elapsed = time.Since(started)
	p.finish(runID, result, err)

	if err != nil {
		logging.WarnWithContext(logger, "render failed", EventType(err),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
			logging.String(logging.FieldImpact, "frames retained for the next pass"),
		)
		return result, err
	}
	logger.Info("timelapse rendered",
		logging.String(logging.FieldEventType, "render_completed"),
		logging.String("video", result.Video),
		logging.String("thumbnail", result.Thumbnail),
		logging.Int("frames", result.FrameCount),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (p *Pipeline) publish(ctx context.Context, label string, paths []string, result *Result) error {
	if len(paths) == 0 {
		return Wrap(ErrNoFrames, label, "render", nil)
	}
	width, height, err := CheckDimensions(paths)
	if err != nil {
		return fmt.Errorf("%s: inspect frames: %w", label, err)
	}
	result.Width, result.Height = width, height

	tmp, err := fileutil.ReserveTemp(p.videoDir, label+"-*.mp4")
	if err != nil {
		return Wrap(ErrFilesystem, label, "reserve temp video", err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.Remove(tmp)
		}
	}()

	if err := p.encoder.Encode(ctx, Job{Label: label, Frames: paths, FPS: p.fps, Output: tmp}); err != nil {
		if errors.Is(err, ErrEncodeFailed) || errors.Is(err, ErrFilesystem) {
			return err
		}
		return Wrap(ErrEncodeFailed, label, "encode", err)
	}

	video := filepath.Join(p.videoDir, label+".mp4")
	thumbnail := filepath.Join(p.thumbnailDir, label+".jpg")
	// A re-render replaces a published pair. The old video keeps the fresh
	// thumbnail if its replacement never lands.
	_, statErr := os.Stat(video)
	replacing := statErr == nil
	if err := p.writeThumbnail(paths[len(paths)/2], thumbnail); err != nil {
		return Wrap(ErrFilesystem, label, "write thumbnail", err)
	}
	unpublishThumbnail := func() {
		if !replacing {
			_ = os.Remove(thumbnail)
		}
	}

	if err := os.Chmod(tmp, 0o644); err != nil {
		unpublishThumbnail()
		return Wrap(ErrFilesystem, label, "chmod video", err)
	}
	if err := os.Rename(tmp, video); err != nil {
		unpublishThumbnail()
		return Wrap(ErrFilesystem, label, "publish video", err)
	}
	published = true
	result.Video = video
	result.Thumbnail = thumbnail
	return nil
}

// writeThumbnail re-encodes the chosen frame and writes it atomically.
func (p *Pipeline) writeThumbnail(src, dst string) error {
	img, err := imaging.Open(src)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.jpegQuality)); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(dst, buf.Bytes(), 0o644)
}

// consume deletes rendered frames. The artifact is already published, so a
// failure here is logged rather than returned.
func (p *Pipeline) consume(logger *slog.Logger, paths []string) {
	if err := fileutil.RemoveAll(paths); err != nil {
		logging.ErrorWithContext(logger, "rendered frames not removed", "frame_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the remaining frames by hand before the next pass re-renders them"),
		)
	}
}

func (p *Pipeline) begin(kind history.Kind, label string, count int) string {
	if p.history == nil {
		return ""
	}
	run, err := p.history.Begin(context.Background(), kind, label, count)
	if err != nil {
		logging.WarnWithContext(p.logger, "render history unavailable", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "render proceeds without a history record"),
		)
		return ""
	}
	return run.ID
}

func (p *Pipeline) finish(runID string, result Result, renderErr error) {
	if p.history == nil || runID == "" {
		return
	}
	outcome := history.Outcome{
		Status:        FailureStatus(renderErr),
		ArtifactPath:  result.Video,
		ThumbnailPath: result.Thumbnail,
	}
	if renderErr != nil {
		outcome.ErrorMessage = renderErr.Error()
	}
	if err := p.history.Finish(context.Background(), runID, outcome); err != nil {
		logging.WarnWithContext(p.logger, "render history not updated", "history_write_failed",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err),
		)
	}
}

// CheckDimensions reads every frame header and requires all frames to match
// the first.
func CheckDimensions(paths []string) (int, int, error) {
	var width, height int
	for i, path := range paths {
		w, h, err := frameSize(path)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %s: %w", ErrFilesystem, filepath.Base(path), err)
		}
		if i == 0 {
			width, height = w, h
			continue
		}
		if w != width || h != height {
			return 0, 0, fmt.Errorf("%w: %s is %dx%d, expected %dx%d",
				ErrDimensionMismatch, filepath.Base(path), w, h, width, height)
		}
	}
	return width, height, nil
}

func frameSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, ErrDimensionMismatch):
		return "remove or resize the mismatched frame"
	case errors.Is(err, ErrEncodeFailed):
		return "check ffmpeg output and codec support"
	case errors.Is(err, ErrFilesystem):
		return "check permissions and free space on the artifact directories"
	default:
		return "check logs for details"
	}
}

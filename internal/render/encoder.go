package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"timelapse/internal/fileutil"
	"timelapse/internal/logging"
)

// Job describes one encode: an ordered frame list rendered at FPS into Output.
type Job struct {
	Label  string
	Frames []string
	FPS    int
	Output string
}

// Encoder turns an ordered frame list into a video file, overwriting Output.
type Encoder interface {
	Encode(ctx context.Context, job Job) error
}

// FFmpegEncoder encodes with ffmpeg's concat demuxer and libx264.
type FFmpegEncoder struct {
	Binary      string
	Preset      string
	CRF         int
	PixelFormat string
	// ManifestDir holds the transient <label>_file_list.txt concat manifest.
	ManifestDir string
	GracePeriod time.Duration
	Logger      *slog.Logger
}

const stderrTail = 1024

// Encode writes the concat manifest, runs ffmpeg and removes the manifest
// whether or not the encode succeeded. Cancelling ctx interrupts ffmpeg with
// SIGINT and kills it after GracePeriod.
func (e *FFmpegEncoder) Encode(ctx context.Context, job Job) error {
	if len(job.Frames) == 0 {
		return Wrap(ErrNoFrames, job.Label, "encode", nil)
	}
	manifest, err := e.writeManifest(job)
	if err != nil {
		return Wrap(ErrFilesystem, job.Label, "write manifest", err)
	}
	defer func() {
		if err := os.Remove(manifest); err != nil && !os.IsNotExist(err) {
			logging.WarnWithContext(e.logger(), "concat manifest not removed", "manifest_cleanup_failed",
				logging.String("manifest", manifest),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale manifest left in frames directory"),
			)
		}
	}()

	args := EncodeArgs(manifest, job.Output, job.FPS, e.Preset, e.CRF, e.PixelFormat)
	cmd := exec.CommandContext(ctx, e.binary(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGINT) }
	cmd.WaitDelay = e.grace()

	e.logger().Debug("ffmpeg encode starting",
		logging.String("label", job.Label),
		logging.Int("frames", len(job.Frames)),
		logging.String("output", job.Output),
	)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Wrap(ErrEncodeFailed, job.Label, "ffmpeg interrupted", ctx.Err())
		}
		return Wrap(ErrEncodeFailed, job.Label, "ffmpeg", fmt.Errorf("%w: %s", err, tail(stderr.String())))
	}
	info, err := os.Stat(job.Output)
	if err != nil {
		return Wrap(ErrEncodeFailed, job.Label, "stat output", err)
	}
	if info.Size() == 0 {
		return Wrap(ErrEncodeFailed, job.Label, "ffmpeg produced empty output", nil)
	}
	return nil
}

func (e *FFmpegEncoder) writeManifest(job Job) (string, error) {
	dir := e.ManifestDir
	if dir == "" {
		dir = filepath.Dir(job.Frames[0])
	}
	var buf strings.Builder
	for _, frame := range job.Frames {
		abs, err := filepath.Abs(frame)
		if err != nil {
			return "", err
		}
		buf.WriteString("file ")
		buf.WriteString(quoteConcatPath(abs))
		buf.WriteByte('\n')
	}
	path := filepath.Join(dir, job.Label+"_file_list.txt")
	if err := fileutil.WriteFileAtomic(path, []byte(buf.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// EncodeArgs builds the ffmpeg argument list for a concat encode.
func EncodeArgs(manifest, output string, fps int, preset string, crf int, pixelFormat string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-y",
		"-r", strconv.Itoa(fps),
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-vcodec", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", pixelFormat,
		output,
	}
}

// quoteConcatPath single-quotes a path for the concat demuxer.
func quoteConcatPath(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

func (e *FFmpegEncoder) binary() string {
	if b := strings.TrimSpace(e.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

func (e *FFmpegEncoder) grace() time.Duration {
	if e.GracePeriod > 0 {
		return e.GracePeriod
	}
	return 10 * time.Second
}

func (e *FFmpegEncoder) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.NewNop()
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = s[len(s)-stderrTail:]
	}
	return s
}

package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
)

// ErrCaptureFailed marks a transient acquisition failure. Callers treat it as a
// skipped interval.
var ErrCaptureFailed = errors.New("capture failed")

// Source yields one frame per call or fails.
type Source interface {
	Grab(ctx context.Context) (image.Image, error)
}

// FFmpegSource grabs a single still from a network stream by running ffmpeg
// and decoding the MJPEG it writes to stdout.
type FFmpegSource struct {
	Binary    string
	Address   string
	Transport string
	Timeout   time.Duration
}

const stderrLimit = 512

// Grab opens the stream, reads the next frame and closes it again. Each call is
// independent so a stalled connection never outlives one interval.
func (s *FFmpegSource) Grab(ctx context.Context) (image.Image, error) {
	if strings.TrimSpace(s.Address) == "" {
		return nil, fmt.Errorf("%w: stream address not configured", ErrCaptureFailed)
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.binary(), GrabArgs(s.Address, s.Transport)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGINT) }
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCaptureFailed, Redact(s.Address), ctx.Err())
		}
		return nil, fmt.Errorf("%w: ffmpeg: %w: %s", ErrCaptureFailed, err, tail(strings.ReplaceAll(stderr.String(), s.Address, Redact(s.Address))))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: no frame returned", ErrCaptureFailed)
	}
	img, err := imaging.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %w", ErrCaptureFailed, err)
	}
	return img, nil
}

func (s *FFmpegSource) binary() string {
	if b := strings.TrimSpace(s.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

// GrabArgs builds the ffmpeg argument list for a single-frame grab.
func GrabArgs(address, transport string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if strings.HasPrefix(strings.ToLower(address), "rtsp") && transport != "" {
		args = append(args, "-rtsp_transport", transport)
	}
	return append(args,
		"-i", address,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
}

// Redact strips credentials from a stream address so it can be logged.
func Redact(address string) string {
	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return "<stream>"
	}
	return u.Redacted()
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrLimit {
		s = s[len(s)-stderrLimit:]
	}
	return s
}

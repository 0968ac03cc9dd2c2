package render

import (
	"errors"
	"fmt"
	"strings"

	"timelapse/internal/history"
)

var (
	ErrEncodeFailed      = errors.New("encode failed")
	ErrDimensionMismatch = errors.New("frame dimensions mismatch")
	ErrInvalidRange      = errors.New("invalid frame range")
	ErrFilesystem        = errors.New("filesystem error")
	ErrNoFrames          = errors.New("no frames to render")
)

// Wrap tags err with a marker for later classification and prefixes it with
// the render label and operation.
func Wrap(marker error, label, operation string, err error) error {
	detail := buildDetail(label, operation)
	if marker == nil {
		marker = ErrEncodeFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a render error to the history status to persist.
func FailureStatus(err error) history.Status {
	if err == nil {
		return history.StatusSucceeded
	}
	return history.StatusFailed
}

// EventType names the log event for a render failure.
func EventType(err error) string {
	switch {
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrEncodeFailed):
		return "encode_failed"
	case errors.Is(err, ErrFilesystem):
		return "filesystem_error"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	default:
		return "render_failed"
	}
}

func buildDetail(label, operation string) string {
	parts := make([]string, 0, 2)
	if label = strings.TrimSpace(label); label != "" {
		parts = append(parts, label)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if len(parts) == 0 {
		return "render"
	}
	return strings.Join(parts, ": ")
}

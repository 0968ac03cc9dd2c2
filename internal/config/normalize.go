package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.applyEnvOverrides(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeRender()
	c.normalizeLogging()
	return nil
}

// applyEnvOverrides honours the variables used by container deployments. The
// stream address is deliberately absent.
func (c *Config) applyEnvOverrides() error {
	strOverrides := []struct {
		name   string
		target *string
	}{
		{"OUTPUT_DIR", &c.Paths.FramesDir},
		{"VIDEO_DIR", &c.Paths.VideoDir},
		{"THUMBNAIL_DIR", &c.Paths.ThumbnailDir},
	}
	for _, o := range strOverrides {
		if value, ok := os.LookupEnv(o.name); ok && strings.TrimSpace(value) != "" {
			*o.target = strings.TrimSpace(value)
		}
	}

	intOverrides := []struct {
		name   string
		target *int
	}{
		{"FPS", &c.Render.FPS},
		{"CAPTURE_INTERVAL", &c.Capture.IntervalSeconds},
		{"FRAME_WIDTH", &c.Capture.Width},
		{"FRAME_HEIGHT", &c.Capture.Height},
	}
	for _, o := range intOverrides {
		value, ok := os.LookupEnv(o.name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer, got %q", ErrConfiguration, o.name, value)
		}
		*o.target = parsed
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.FramesDir, err = expandPath(c.Paths.FramesDir); err != nil {
		return fmt.Errorf("paths.frames_dir: %w", err)
	}
	if c.Paths.VideoDir, err = expandPath(c.Paths.VideoDir); err != nil {
		return fmt.Errorf("paths.video_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ThumbnailDir) == "" {
		c.Paths.ThumbnailDir = c.Paths.VideoDir
	}
	if c.Paths.ThumbnailDir, err = expandPath(c.Paths.ThumbnailDir); err != nil {
		return fmt.Errorf("paths.thumbnail_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.StreamSecretPath = strings.TrimSpace(c.Capture.StreamSecretPath)
	c.Capture.RTSPTransport = strings.ToLower(strings.TrimSpace(c.Capture.RTSPTransport))
	if c.Capture.TimeoutSeconds <= 0 {
		c.Capture.TimeoutSeconds = defaultCaptureTimeout
	}
}

func (c *Config) normalizeRender() {
	if strings.TrimSpace(c.Render.FFmpegBinary) == "" {
		c.Render.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Render.FFprobeBinary) == "" {
		c.Render.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Render.PixelFormat) == "" {
		c.Render.PixelFormat = defaultPixelFormat
	}
	c.Render.Preset = strings.TrimSpace(c.Render.Preset)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

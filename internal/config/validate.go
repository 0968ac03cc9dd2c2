package config

import (
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. The stream credential is not
// checked here because read-only commands run without it; the daemon resolves
// it through StreamAddress before starting.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.FramesDir == "" {
		return fmt.Errorf("%w: paths.frames_dir must be set", ErrConfiguration)
	}
	if c.Paths.VideoDir == "" {
		return fmt.Errorf("%w: paths.video_dir must be set", ErrConfiguration)
	}
	if c.Paths.FramesDir == c.Paths.VideoDir {
		return fmt.Errorf("%w: paths.frames_dir and paths.video_dir must differ", ErrConfiguration)
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.IntervalSeconds < 1 {
		return fmt.Errorf("%w: capture.interval_seconds must be at least 1", ErrConfiguration)
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("%w: capture.width and capture.height must be positive", ErrConfiguration)
	}
	// yuv420p chroma subsampling needs even dimensions.
	if c.Capture.Width%2 != 0 || c.Capture.Height%2 != 0 {
		return fmt.Errorf("%w: capture.width and capture.height must be even, got %dx%d", ErrConfiguration, c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("%w: capture.jpeg_quality must be between 1 and 100", ErrConfiguration)
	}
	switch c.Capture.RTSPTransport {
	case "", "tcp", "udp":
	default:
		return fmt.Errorf("%w: capture.rtsp_transport must be tcp or udp, got %q", ErrConfiguration, c.Capture.RTSPTransport)
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.FPS < 1 {
		return fmt.Errorf("%w: render.fps must be at least 1", ErrConfiguration)
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return fmt.Errorf("%w: render.crf must be between 0 and 51", ErrConfiguration)
	}
	if c.Render.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: render.timeout_seconds must be zero or positive", ErrConfiguration)
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.Bind) == "" || !c.Server.RangeRenderEnabled {
		return nil
	}
	if c.Server.RangeRenderPerMinute < 1 {
		return fmt.Errorf("%w: server.range_render_per_minute must be at least 1", ErrConfiguration)
	}
	if c.Server.RangeRenderBurst < 1 {
		return fmt.Errorf("%w: server.range_render_burst must be at least 1", ErrConfiguration)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: logging.format must be console or json, got %q", ErrConfiguration, c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be debug, info, warn, or error, got %q", ErrConfiguration, c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return fmt.Errorf("%w: logging.retention_days must be zero or positive", ErrConfiguration)
	}
	return nil
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrConfiguration marks configuration problems that must stop the process
// before the capture loop starts.
var ErrConfiguration = errors.New("configuration error")

// Paths contains the directory layout for frames, artifacts, and state.
type Paths struct {
	FramesDir    string `toml:"frames_dir"`
	VideoDir     string `toml:"video_dir"`
	ThumbnailDir string `toml:"thumbnail_dir"`
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
}

// Capture contains frame acquisition settings.
type Capture struct {
	IntervalSeconds  int    `toml:"interval_seconds"`
	Width            int    `toml:"width"`
	Height           int    `toml:"height"`
	JPEGQuality      int    `toml:"jpeg_quality"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	StreamSecretPath string `toml:"stream_secret_path"`
	RTSPTransport    string `toml:"rtsp_transport"`
}

// Render contains timelapse encoding settings.
type Render struct {
	FPS            int    `toml:"fps"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	Preset         string `toml:"preset"`
	CRF            int    `toml:"crf"`
	PixelFormat    string `toml:"pixel_format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Server contains configuration for the read-only dashboard.
type Server struct {
	Bind                 string `toml:"bind"`
	RangeRenderEnabled   bool   `toml:"range_render_enabled"`
	RangeRenderPerMinute int    `toml:"range_render_per_minute"`
	RangeRenderBurst     int    `toml:"range_render_burst"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the timelapse daemon.
//
// Configuration sections by subsystem:
//   - Paths: frame store, artifact store, state and log directories
//   - Capture: stream polling interval, output resolution, credential path
//   - Render: ffmpeg encoder settings
//   - Server: dashboard bind address and range-render limits
//   - Logging: log format, level, and retention
type Config struct {
	Paths   Paths   `toml:"paths"`
	Capture Capture `toml:"capture"`
	Render  Render  `toml:"render"`
	Server  Server  `toml:"server"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/timelapse/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("timelapse.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates every directory the daemon writes to. Failure here
// is fatal at startup.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.FramesDir, c.Paths.VideoDir, c.Paths.ThumbnailDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StreamAddress reads the stream source address from the provisioned secret
// file. The address never comes from the environment so it stays out of
// process listings.
func (c *Config) StreamAddress() (string, error) {
	path := strings.TrimSpace(c.Capture.StreamSecretPath)
	if path == "" {
		return "", fmt.Errorf("%w: capture.stream_secret_path must be set", ErrConfiguration)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: stream secret %s not found", ErrConfiguration, path)
		}
		return "", fmt.Errorf("%w: read stream secret: %w", ErrConfiguration, err)
	}
	address := strings.TrimSpace(string(data))
	if address == "" {
		return "", fmt.Errorf("%w: stream secret %s is empty", ErrConfiguration, path)
	}
	return address, nil
}

// HistoryDBPath returns the location of the render history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "timelapse.lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "timelapse.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

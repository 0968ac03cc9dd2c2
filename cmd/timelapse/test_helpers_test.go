package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"timelapse/internal/config"
	"timelapse/internal/testsupport"
)

const stubFFmpeg = `#!/bin/sh
out=""
for a in "$@"; do out="$a"; done
case "$out" in
  *.mp4) printf video > "$out" ;;
  -encoders) echo " V....D libx264              libx264 H.264 / AVC" ;;
esac
exit 0
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStreamAddress("rtsp://127.0.0.1:1/live"))
	base := testsupport.BaseDir(cfg)
	ffmpeg := filepath.Join(base, "ffmpeg-stub")
	if err := os.WriteFile(ffmpeg, []byte(stubFFmpeg), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	cfg.Render.FFmpegBinary = ffmpeg
	cfg.Render.FFprobeBinary = filepath.Join(base, "missing-ffprobe")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
frames_dir = %q
video_dir = %q
thumbnail_dir = %q
state_dir = %q
log_dir = %q

[capture]
width = %d
height = %d
stream_secret_path = %q

[render]
ffmpeg_binary = %q
ffprobe_binary = %q

[server]
bind = %q
`,
		cfg.Paths.FramesDir,
		cfg.Paths.VideoDir,
		cfg.Paths.ThumbnailDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Capture.Width,
		cfg.Capture.Height,
		cfg.Capture.StreamSecretPath,
		cfg.Render.FFmpegBinary,
		cfg.Render.FFprobeBinary,
		cfg.Server.Bind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

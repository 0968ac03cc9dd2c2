package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncodeArgs(t *testing.T) {
	args := EncodeArgs("/f/20240101_file_list.txt", "/v/.20240101-1.mp4", 30, "slower", 24, "yuv420p")
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-y -r 30 -f concat -safe 0 -i /f/20240101_file_list.txt",
		"-vcodec libx264 -preset slower -crf 24 -pix_fmt yuv420p /v/.20240101-1.mp4",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "/v/.20240101-1.mp4" {
		t.Fatalf("output must be last, got %q", args[len(args)-1])
	}
}

func TestQuoteConcatPath(t *testing.T) {
	if got := quoteConcatPath("/frames/it's.jpg"); got != `'/frames/it'\''s.jpg'` {
		t.Fatalf("unexpected quoting %s", got)
	}
}

const stubFFmpeg = `#!/bin/sh
prev=""
out=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then cp "$a" "$MANIFEST_COPY"; fi
  prev="$a"
  out="$a"
done
printf video > "$out"
`

func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegEncoderWritesAndRemovesManifest(t *testing.T) {
	framesDir := t.TempDir()
	outDir := t.TempDir()
	copyPath := filepath.Join(t.TempDir(), "manifest.txt")
	t.Setenv("MANIFEST_COPY", copyPath)

	frames := []string{filepath.Join(framesDir, "20240101_000000.jpg"), filepath.Join(framesDir, "20240101_000200.jpg")}
	enc := &FFmpegEncoder{
		Binary:      writeStub(t, stubFFmpeg),
		Preset:      "slower",
		CRF:         24,
		PixelFormat: "yuv420p",
		ManifestDir: framesDir,
	}
	out := filepath.Join(outDir, "20240101.mp4")
	if err := enc.Encode(context.Background(), Job{Label: "20240101", Frames: frames, FPS: 30, Output: out}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	manifest, err := os.ReadFile(copyPath)
	if err != nil {
		t.Fatalf("manifest not passed to ffmpeg: %v", err)
	}
	want := "file '" + frames[0] + "'\nfile '" + frames[1] + "'\n"
	if string(manifest) != want {
		t.Fatalf("manifest = %q, want %q", manifest, want)
	}
	if _, err := os.Stat(filepath.Join(framesDir, "20240101_file_list.txt")); !os.IsNotExist(err) {
		t.Fatalf("manifest not removed: %v", err)
	}
	if data, _ := os.ReadFile(out); string(data) != "video" {
		t.Fatalf("unexpected output %q", data)
	}
}

func TestFFmpegEncoderFailureRemovesManifest(t *testing.T) {
	framesDir := t.TempDir()
	enc := &FFmpegEncoder{
		Binary:      writeStub(t, "#!/bin/sh\necho 'Unknown encoder libx264' >&2\nexit 1\n"),
		ManifestDir: framesDir,
	}
	job := Job{
		Label:  "20240101",
		Frames: []string{filepath.Join(framesDir, "20240101_000000.jpg")},
		FPS:    30,
		Output: filepath.Join(t.TempDir(), "out.mp4"),
	}
	err := enc.Encode(context.Background(), job)
	if !errors.Is(err, ErrEncodeFailed) {
		t.Fatalf("expected ErrEncodeFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unknown encoder") {
		t.Fatalf("stderr not surfaced: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(framesDir, "20240101_file_list.txt")); !os.IsNotExist(statErr) {
		t.Fatalf("manifest not removed after failure: %v", statErr)
	}
}

func TestFFmpegEncoderEmptyOutput(t *testing.T) {
	framesDir := t.TempDir()
	enc := &FFmpegEncoder{Binary: writeStub(t, "#!/bin/sh\nexit 0\n"), ManifestDir: framesDir}
	out := filepath.Join(t.TempDir(), ".tmp.mp4")
	if err := os.WriteFile(out, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	err := enc.Encode(context.Background(), Job{Label: "x", Frames: []string{filepath.Join(framesDir, "a.jpg")}, FPS: 1, Output: out})
	if !errors.Is(err, ErrEncodeFailed) {
		t.Fatalf("expected ErrEncodeFailed for empty output, got %v", err)
	}
}

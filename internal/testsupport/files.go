package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"timelapse/internal/frames"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SolidJPEG encodes a width x height image filled with c.
func SolidJPEG(t testing.TB, width, height int, c color.Color) []byte {
	t.Helper()

	img := imaging.New(width, height, c)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// WriteFrame stores a solid-colour frame named for ts in dir and returns its path.
func WriteFrame(t testing.TB, dir string, ts time.Time, width, height int, c color.Color) string {
	t.Helper()

	path := filepath.Join(dir, frames.Name(ts))
	if err := os.WriteFile(path, SolidJPEG(t, width, height, c), 0o644); err != nil {
		t.Fatalf("write frame %s: %v", path, err)
	}
	return path
}

// WriteDay writes count frames for the day of start, one minute apart. Frame i
// is filled with a grey level of i so frames can be told apart after decoding.
func WriteDay(t testing.TB, dir string, start time.Time, count, width, height int) []string {
	t.Helper()

	paths := make([]string, count)
	for i := range count {
		level := uint8(i * 255 / max(count-1, 1))
		paths[i] = WriteFrame(t, dir, start.Add(time.Duration(i)*time.Minute), width, height, color.Gray{Y: level})
	}
	return paths
}

// CenterGray decodes an image file and returns the luminance of its centre pixel.
func CenterGray(t testing.TB, path string) uint8 {
	t.Helper()

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	b := img.Bounds()
	center := image.Pt(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2)
	return color.GrayModel.Convert(img.At(center.X, center.Y)).(color.Gray).Y
}

// WriteLines writes lines to path, newline-terminated.
func WriteLines(t testing.TB, path string, lines ...string) {
	t.Helper()
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

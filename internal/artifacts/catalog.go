package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"timelapse/internal/logging"
	"timelapse/internal/media/ffprobe"
)

// ErrNotFound is returned for artifact names that are invalid or absent.
var ErrNotFound = errors.New("artifact not found")

const (
	VideoExt     = ".mp4"
	ThumbnailExt = ".jpg"

	probeCacheSize = 256
	probeCacheTTL  = 30 * time.Minute
)

var probeVideo = ffprobe.Inspect

// Video is one published timelapse.
type Video struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modified"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Duration  float64   `json:"duration_seconds,omitempty"`
	Frames    int       `json:"frames,omitempty"`
}

// Catalog lists and opens artifacts for the dashboard. It never writes.
type Catalog struct {
	videoDir     string
	thumbnailDir string
	ffprobe      string
	logger       *slog.Logger
	probes       *expirable.LRU[probeKey, ffprobe.Result]
}

type probeKey struct {
	name    string
	size    int64
	modTime int64
}

// NewCatalog returns a catalog over the artifact directories. An empty
// ffprobeBinary disables duration probing.
func NewCatalog(videoDir, thumbnailDir, ffprobeBinary string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = logging.NewNop()
	}
	if thumbnailDir == "" {
		thumbnailDir = videoDir
	}
	return &Catalog{
		videoDir:     videoDir,
		thumbnailDir: thumbnailDir,
		ffprobe:      ffprobeBinary,
		logger:       logging.NewComponentLogger(logger, "artifacts"),
		probes:       expirable.NewLRU[probeKey, ffprobe.Result](probeCacheSize, nil, probeCacheTTL),
	}
}

// List snapshots the video directory and returns published videos ordered by
// name. Temp files from in-progress renders are skipped.
func (c *Catalog) List(ctx context.Context) ([]Video, error) {
	entries, err := os.ReadDir(c.videoDir)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	thumbs := c.thumbnailSet()

	videos := make([]Video, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !ValidVideoName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between listing and stat
			continue
		}
		label := strings.TrimSuffix(name, VideoExt)
		video := Video{
			Name:    name,
			Label:   label,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if _, ok := thumbs[label+ThumbnailExt]; ok {
			video.Thumbnail = label + ThumbnailExt
		}
		if result, ok := c.probe(ctx, name, info); ok {
			video.Duration = result.DurationSeconds()
			video.Frames = result.FrameCount()
		}
		videos = append(videos, video)
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].Name < videos[j].Name })
	return videos, nil
}

// VideoPath resolves a video name to its path, or ErrNotFound.
func (c *Catalog) VideoPath(name string) (string, error) {
	if !ValidVideoName(name) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.existing(filepath.Join(c.videoDir, name))
}

// ThumbnailPath resolves a thumbnail name to its path, or ErrNotFound.
func (c *Catalog) ThumbnailPath(name string) (string, error) {
	if !ValidThumbnailName(name) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.existing(filepath.Join(c.thumbnailDir, name))
}

func (c *Catalog) existing(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	return path, nil
}

func (c *Catalog) thumbnailSet() map[string]struct{} {
	set := make(map[string]struct{})
	entries, err := os.ReadDir(c.thumbnailDir)
	if err != nil {
		return set
	}
	for _, entry := range entries {
		if ValidThumbnailName(entry.Name()) {
			set[entry.Name()] = struct{}{}
		}
	}
	return set
}

func (c *Catalog) probe(ctx context.Context, name string, info os.FileInfo) (ffprobe.Result, bool) {
	if c.ffprobe == "" {
		return ffprobe.Result{}, false
	}
	key := probeKey{name: name, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if result, ok := c.probes.Get(key); ok {
		return result, true
	}
	result, err := probeVideo(ctx, c.ffprobe, filepath.Join(c.videoDir, name))
	if err != nil {
		c.logger.Debug("video probe failed", logging.String("video", name), logging.Error(err))
		return ffprobe.Result{}, false
	}
	c.probes.Add(key, result)
	return result, true
}

// ValidVideoName accepts bare, non-hidden *.mp4 names.
func ValidVideoName(name string) bool {
	return validName(name, VideoExt)
}

// ValidThumbnailName accepts bare, non-hidden *.jpg names.
func ValidThumbnailName(name string) bool {
	return validName(name, ThumbnailExt)
}

func validName(name, ext string) bool {
	if name == "" || strings.HasPrefix(name, ".") || filepath.Base(name) != name {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	stem, ok := strings.CutSuffix(name, ext)
	return ok && stem != ""
}

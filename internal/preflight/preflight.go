package preflight

import (
	"context"
	"fmt"
	"strings"

	"timelapse/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the startup checks: every configured directory must be
// accessible, the frame and video filesystems must have room, and the stream
// credential must be provisioned. The camera itself is not contacted.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	dirs := []struct{ name, path string }{
		{"Frames directory", cfg.Paths.FramesDir},
		{"Video directory", cfg.Paths.VideoDir},
		{"Thumbnail directory", cfg.Paths.ThumbnailDir},
		{"State directory", cfg.Paths.StateDir},
	}
	var results []Result
	seen := make(map[string]struct{})
	for _, d := range dirs {
		if _, dup := seen[d.path]; dup || strings.TrimSpace(d.path) == "" {
			continue
		}
		seen[d.path] = struct{}{}
		results = append(results, CheckDirectoryAccess(d.name, d.path))
	}

	results = append(results,
		CheckFreeSpace("Frames free space", cfg.Paths.FramesDir, MinFreeBytes),
		CheckFreeSpace("Video free space", cfg.Paths.VideoDir, MinFreeBytes),
		CheckStreamSecret(cfg),
	)
	return results
}

// Failed returns the failing results.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Summary joins failing results into one line for an error message.
func Summary(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return strings.Join(parts, "; ")
}

package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// FFmpegRequirements lists the render toolchain for the configured binaries.
func FFmpegRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     defaultBinary(ffmpegBinary, "ffmpeg"),
			Description: "Required for frame capture and timelapse encoding",
			VersionArg:  "-version",
		},
		{
			Name:        "FFprobe",
			Command:     defaultBinary(ffprobeBinary, "ffprobe"),
			Description: "Reports video duration on the dashboard",
			Optional:    true,
			VersionArg:  "-version",
		},
	}
}

// CheckEncoder reports whether ffmpeg was built with the named encoder.
func CheckEncoder(ctx context.Context, ffmpegBinary, encoder string) Status {
	binary := defaultBinary(ffmpegBinary, "ffmpeg")
	result := Status{
		Name:        "FFmpeg " + encoder,
		Command:     binary,
		Description: "Encoder used for timelapse videos",
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	result.Command = resolved

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, resolved, "-hide_banner", "-encoders").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	if !hasEncoder(string(out), encoder) {
		result.Detail = fmt.Sprintf("ffmpeg built without %s", encoder)
		return result
	}
	result.Available = true
	return result
}

// hasEncoder scans `ffmpeg -encoders` output, whose rows look like
// " V....D libx264              libx264 H.264 ...".
func hasEncoder(listing, encoder string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == encoder {
			return true
		}
	}
	return false
}

func defaultBinary(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

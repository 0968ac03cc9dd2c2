package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"timelapse/internal/config"
	"timelapse/internal/deps"
	"timelapse/internal/stream"
)

// MinFreeBytes is the free space below which the artifact and frame
// directories are reported as failing.
const MinFreeBytes = 1 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// FreeBytes reports the space available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckFreeSpace fails when the filesystem holding path has less than min bytes free.
func CheckFreeSpace(name, path string, min uint64) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s (%s free)", path, humanBytes(free))
	if free < min {
		return Result{Name: name, Detail: detail + fmt.Sprintf(", below %s", humanBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckStreamSecret verifies the stream credential is provisioned and non-empty.
// The address itself is never included in the detail.
func CheckStreamSecret(cfg *config.Config) Result {
	const name = "Stream credential"
	if _, err := cfg.StreamAddress(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", cfg.Capture.StreamSecretPath)}
}

// CheckStream connects to the camera and reads its session description.
func CheckStream(ctx context.Context, address, transport string, timeout time.Duration) Result {
	const name = "Camera stream"
	if !strings.HasPrefix(strings.ToLower(address), "rtsp") {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (non-RTSP source, not probed)", stream.Redact(address))}
	}
	result, err := stream.Probe(ctx, address, transport, timeout)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !result.HasVideo() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no video track announced)", result.Address)}
	}
	var codecs []string
	for _, m := range result.Medias {
		codecs = append(codecs, m.Codecs...)
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%s, %s)", result.Address, strings.Join(codecs, ", "), result.Elapsed.Round(time.Millisecond)),
	}
}

// CheckSystemDeps evaluates the external binaries for the given config. Both
// the daemon and the CLI status command use it.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(deps.FFmpegRequirements(cfg.Render.FFmpegBinary, cfg.Render.FFprobeBinary))
	if len(statuses) > 0 && statuses[0].Available {
		statuses = append(statuses, deps.CheckEncoder(ctx, statuses[0].Command, "libx264"))
	}
	return statuses
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

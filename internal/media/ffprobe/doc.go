// Package ffprobe wraps ffprobe JSON output for rendered timelapse videos.
//
// Inspect executes ffprobe and returns a Result; helpers expose the duration,
// frame count and frame rate of the first video stream.
package ffprobe

// Package stream acquires frames from the camera stream.
//
// FFmpegSource performs one short-lived ffmpeg invocation per grab. Probe uses
// an RTSP DESCRIBE to confirm the camera is reachable before the daemon starts.
// Stream addresses carry credentials; only Redact output is ever logged.
package stream

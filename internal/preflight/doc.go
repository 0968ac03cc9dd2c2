// Package preflight provides readiness checks for the filesystem, the stream
// credential, the camera and the ffmpeg toolchain.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup. A failing directory or missing
//     credential is fatal; a camera that cannot be probed is only logged.
//   - The CLI "status" and "probe" commands call individual checks to display
//     health.
package preflight

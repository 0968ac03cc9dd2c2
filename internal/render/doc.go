// Package render turns frame groups into timelapse artifacts.
//
// For a closed day group the Pipeline checks frame dimensions, encodes into a
// dot-prefixed temp file, writes the middle frame as the thumbnail, renames the
// video into place and only then deletes the frames. Any failure before the
// rename leaves the frame store untouched. Range renders follow the same path
// without consuming frames.
package render

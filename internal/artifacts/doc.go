// Package artifacts is the read side of the artifact store: it lists published
// videos, pairs them with thumbnails and resolves download names safely.
//
// Listings are directory snapshots. A file removed after listing resolves to
// ErrNotFound. Video metadata from ffprobe is cached by name, size and mtime.
package artifacts

// Package frames manages the frame store: a directory of YYYYMMDD_HHMMSS.jpg
// stills that are the only persistent record of unrendered capture.
//
// Frame identity is the filename. DateOf is the single function that maps a
// frame to its day group, so the timestamp layout can change without touching
// grouping or rendering.
package frames

// Command timelapse runs the capture daemon and provides one-shot render,
// listing and diagnostic commands against the same frame and artifact stores.
package main

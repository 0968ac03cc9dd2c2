// Package config loads, normalizes, and validates timelapse configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the container environment
// overrides (OUTPUT_DIR, VIDEO_DIR, THUMBNAIL_DIR, FPS, CAPTURE_INTERVAL,
// FRAME_WIDTH, FRAME_HEIGHT). The stream address is only ever read from the
// provisioned secret file via StreamAddress.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config

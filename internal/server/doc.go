// Package server is the dashboard HTTP surface: an HTML index of rendered
// videos, file downloads, JSON listings and on-demand range renders.
//
// Handlers only read the frame store, artifact store and history database.
// POST /api/render validates the range against a fresh frame listing, replies
// 202 and renders in the background through the shared pipeline, limited per
// client IP.
package server

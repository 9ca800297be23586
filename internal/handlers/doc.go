// Package handlers implements the HTTP surface: scan job control, the
// gallery listing and semantic search, media content delivery, the vision
// chat endpoint and operational endpoints (stats, health, version).
package handlers

// Package media handles image decoding and thumbnail generation for
// library files, with an optional libvips fast path and ffmpeg frame
// extraction for videos.
package media

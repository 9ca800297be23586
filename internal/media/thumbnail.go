package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"media-curator/internal/logging"
	"media-curator/internal/mediatypes"
	"media-curator/internal/metrics"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// MinThumbnailSize and MaxThumbnailSize clamp the requested bounding
	// box edge.
	MinThumbnailSize = 100
	MaxThumbnailSize = 1080
	// DefaultThumbnailSize is used when the caller does not ask for one.
	DefaultThumbnailSize = 320

	thumbnailQuality = 80
)

// ThumbnailGenerator produces JPEG thumbnails for library files, cached on
// disk keyed by file id and size so cache entries survive restarts and die
// with reprocessing rather than with path changes.
type ThumbnailGenerator struct {
	cacheDir string
	mu       sync.Mutex
}

// NewThumbnailGenerator creates a generator caching into cacheDir.
func NewThumbnailGenerator(cacheDir string) (*ThumbnailGenerator, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache dir: %w", err)
	}
	logging.Debug("ThumbnailGenerator: cache dir %s", cacheDir)
	return &ThumbnailGenerator{cacheDir: cacheDir}, nil
}

// ClampSize normalizes a requested thumbnail edge into the supported
// range, substituting the default for zero or negative values.
func ClampSize(size int) int {
	if size <= 0 {
		return DefaultThumbnailSize
	}
	if size < MinThumbnailSize {
		return MinThumbnailSize
	}
	if size > MaxThumbnailSize {
		return MaxThumbnailSize
	}
	return size
}

func (t *ThumbnailGenerator) cachePath(fileID int64, size int) string {
	return filepath.Join(t.cacheDir, fmt.Sprintf("%d_%d.jpg", fileID, size))
}

// GetThumbnail returns JPEG thumbnail bytes for a file, generating and
// caching on miss. size is the bounding box edge and is clamped via
// ClampSize.
func (t *ThumbnailGenerator) GetThumbnail(fileID int64, filePath string, size int) ([]byte, error) {
	size = ClampSize(size)

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}

	cachePath := t.cachePath(fileID, size)
	if data, err := os.ReadFile(cachePath); err == nil {
		metrics.ThumbnailCacheHits.Inc()
		logging.Debug("Thumbnail cache hit: %d@%d", fileID, size)
		return data, nil
	}

	// Serialize generation; the second reader of a missing entry waits for
	// the first instead of decoding the same file twice.
	t.mu.Lock()
	defer t.mu.Unlock()

	if data, err := os.ReadFile(cachePath); err == nil {
		metrics.ThumbnailCacheHits.Inc()
		return data, nil
	}

	mediaType := mediatypes.GetMediaType(filepath.Ext(filePath))
	logging.Debug("Thumbnail generating: %s (%s, %dpx)", filePath, mediaType, size)

	var img image.Image
	var err error
	switch mediaType {
	case mediatypes.MediaTypeImage:
		img, err = t.loadImage(filePath, size)
	case mediatypes.MediaTypeVideo:
		img, err = t.extractVideoFrame(filePath)
	default:
		return nil, fmt.Errorf("unsupported media type: %s", mediaType)
	}
	if err != nil {
		return nil, fmt.Errorf("thumbnail generation failed: %w", err)
	}
	metrics.ThumbnailsGenerated.WithLabelValues(string(mediaType)).Inc()

	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	if err := t.writeCache(cachePath, buf.Bytes()); err != nil {
		logging.Warn("Failed to cache thumbnail %s: %v", cachePath, err)
	}
	return buf.Bytes(), nil
}

// writeCache lands the entry via temp file + rename so a crash mid-write
// never leaves a truncated thumbnail behind.
func (t *ThumbnailGenerator) writeCache(cachePath string, data []byte) error {
	tmp := fmt.Sprintf("%s.%d.tmp", cachePath, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// InvalidateFile drops all cached sizes for a file, for use after
// reprocessing replaces its content.
func (t *ThumbnailGenerator) InvalidateFile(fileID int64) {
	pattern := filepath.Join(t.cacheDir, fmt.Sprintf("%d_*.jpg", fileID))
	entries, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if err := os.Remove(entry); err != nil {
			logging.Warn("Failed to drop cached thumbnail %s: %v", entry, err)
		}
	}
}

// loadImage decodes an image for thumbnailing, preferring the libvips
// decode-time shrink when available and falling back to a full in-memory
// decode.
func (t *ThumbnailGenerator) loadImage(filePath string, size int) (image.Image, error) {
	if IsVipsAvailable() {
		img, err := LoadImageWithVips(filePath, size, size)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips load failed for %s, falling back: %v", filePath, err)
	}

	img, err := imaging.Open(filePath, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	logging.Debug("imaging.Open failed for %s: %v, trying plain decode", filePath, err)

	f, openErr := os.Open(filePath)
	if openErr != nil {
		return nil, openErr
	}
	defer f.Close()

	img, _, err = image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("all image decode methods failed: %w", err)
	}
	return img, nil
}

// extractVideoFrame pulls a representative frame via ffmpeg: one second in
// first, falling back to the first frame for clips shorter than that.
func (t *ThumbnailGenerator) extractVideoFrame(filePath string) (image.Image, error) {
	run := func(args ...string) (*bytes.Buffer, error) {
		cmd := exec.Command("ffmpeg", args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %w - %s", err, stderr.String())
		}
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("ffmpeg produced no output for %s", filePath)
		}
		return &stdout, nil
	}

	out, err := run("-ss", "00:00:01", "-i", filePath, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "png", "-")
	if err != nil {
		logging.Debug("Frame at 1s failed for %s, trying first frame: %v", filePath, err)
		out, err = run("-i", filePath, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "png", "-")
		if err != nil {
			return nil, err
		}
	}

	img, _, err := image.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

package mediatypes

// MediaType classifies an indexable media file.
type MediaType string

const (
	// MediaTypeImage represents a still image file.
	MediaTypeImage MediaType = "image"
	// MediaTypeVideo represents a video file.
	MediaTypeVideo MediaType = "video"
	// MediaTypeOther represents an unsupported file type.
	MediaTypeOther MediaType = "other"
)

// ImageExtensions maps file extensions to whether they are indexable images.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// VideoExtensions maps file extensions to whether they are indexable videos.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".bmp":  "image/bmp",

	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

// GetMediaType returns the MediaType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns MediaTypeOther if the extension is not recognized.
func GetMediaType(ext string) MediaType {
	if ImageExtensions[ext] {
		return MediaTypeImage
	}
	if VideoExtensions[ext] {
		return MediaTypeVideo
	}
	return MediaTypeOther
}

// GetMimeType returns the MIME type for a given file extension,
// or "application/octet-stream" if unknown.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsIndexable reports whether files with the given extension are
// picked up by the scanner at all.
func IsIndexable(ext string) bool {
	return ImageExtensions[ext] || VideoExtensions[ext]
}

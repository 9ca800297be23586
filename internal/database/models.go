package database

import "time"

// FileStatus tracks how far a media file has made it through the
// extraction pipeline.
type FileStatus string

const (
	// StatusPending marks a file whose derived data is being (re)written.
	StatusPending FileStatus = "pending"
	// StatusProcessed marks a file with a complete, consistent generation
	// of segments and embeddings.
	StatusProcessed FileStatus = "processed"
	// StatusFailed marks a file that could not be processed.
	StatusFailed FileStatus = "failed"
)

// TagCategory groups tags into the namespaces the gallery filters on.
type TagCategory string

const (
	TagCategoryGeneral   TagCategory = "general"
	TagCategoryCharacter TagCategory = "character"
	TagCategorySeries    TagCategory = "series"
)

// SegmentKind identifies what part of a media file a segment covers.
type SegmentKind string

const (
	// SegmentKindImage is the synthetic whole-image segment every image gets.
	SegmentKindImage SegmentKind = "image"
	// SegmentKindVideo is the synthetic whole-video segment carrying the
	// video-level visual embedding.
	SegmentKindVideo SegmentKind = "video"
	// SegmentKindKeyframe is a sampled video frame with a text description.
	SegmentKindKeyframe SegmentKind = "keyframe"
	// SegmentKindTranscript is a chunk of transcribed speech.
	SegmentKindTranscript SegmentKind = "transcript"
)

// MediaFile is one physical file in the library.
type MediaFile struct {
	ID            int64      `json:"id"`
	Path          string     `json:"file_path"`
	FileHash      string     `json:"-"`
	MediaType     string     `json:"media_type"`
	FileSize      int64      `json:"file_size,omitempty"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	Duration      float64    `json:"duration,omitempty"`
	ModTime       time.Time  `json:"-"`
	IngestedAt    time.Time  `json:"ingested_at"`
	Status        FileStatus `json:"status"`
	ErrorMsg      string     `json:"error,omitempty"`
	Tags          []string   `json:"tags"`
	CharacterTags []string   `json:"character_tags"`
	SeriesTags    []string   `json:"series_tags"`
}

// Tag is a (category, name) label shared across files.
type Tag struct {
	ID       int64       `json:"id"`
	Category TagCategory `json:"category"`
	Name     string      `json:"name"`
}

// TagRecord is a tag assignment produced by an extractor, carrying the
// confidence it was predicted with.
type TagRecord struct {
	Category   TagCategory `json:"category"`
	Name       string      `json:"name"`
	Confidence float64     `json:"confidence"`
}

// Segment is a searchable sub-unit of a media file. Its row id doubles as
// the embedding record id in the vector index.
type Segment struct {
	ID       int64       `json:"id"`
	FileID   int64       `json:"file_id"`
	Kind     SegmentKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	StartSec float64     `json:"start_sec,omitempty"`
	EndSec   float64     `json:"end_sec,omitempty"`
}

// HasText reports whether the segment carries search-snippet text.
func (s *Segment) HasText() bool {
	return s.Kind == SegmentKindKeyframe || s.Kind == SegmentKindTranscript
}

// Fingerprint is what the scanner learns about a previously seen path.
type Fingerprint struct {
	FileID    int64
	Hash      string
	Processed bool
}

// LibraryStats summarizes the indexed library.
type LibraryStats struct {
	TotalFiles     int64     `json:"totalFiles"`
	TotalImages    int64     `json:"totalImages"`
	TotalVideos    int64     `json:"totalVideos"`
	ProcessedFiles int64     `json:"processedFiles"`
	FailedFiles    int64     `json:"failedFiles"`
	TotalSegments  int64     `json:"totalSegments"`
	TotalTags      int64     `json:"totalTags"`
	LastScanned    time.Time `json:"lastScanned,omitempty"`
}

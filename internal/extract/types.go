package extract

import "context"

// Tag is one tag prediction from the tagger, namespaced by category
// (general, character, series) and carrying the model's confidence.
type Tag struct {
	Category   string  `json:"category"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// FrameDescription is one described video keyframe.
type FrameDescription struct {
	Timestamp float64 `json:"timestamp"`
	Text      string  `json:"text"`
}

// TranscriptChunk is one chunk of transcribed speech.
type TranscriptChunk struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Extractor is the pluggable feature-extraction capability set, one method
// per modality. New modalities are added by widening implementations of
// this interface, not by subclassing anything.
//
// Each call is independent and retryable; implementations must not carry
// state between calls. EmbedImage and EmbedText must target the same
// embedding space so image vectors and encoded text queries are comparable.
type Extractor interface {
	// TagImage predicts tags for a media file. Results are already
	// thresholded: predictions below the implementation's configured
	// confidence floor are dropped, not returned. Implementations accept
	// video paths by tagging a representative frame.
	TagImage(ctx context.Context, imagePath string) ([]Tag, error)

	// EmbedImage produces the file's visual embedding vector, deterministic
	// for identical bytes. Implementations accept video paths by embedding
	// a representative frame.
	EmbedImage(ctx context.Context, imagePath string) ([]float32, error)

	// EmbedText produces a text embedding in the same space as EmbedImage.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// DescribeKeyframes samples frames from a video and describes each,
	// ordered by timestamp.
	DescribeKeyframes(ctx context.Context, videoPath string) ([]FrameDescription, error)

	// TranscribeSpeech transcribes a video's audio track. Silent or
	// audio-less input yields an empty sequence, not an error.
	TranscribeSpeech(ctx context.Context, videoPath string) ([]TranscriptChunk, error)

	// Dimension returns the embedding vector length.
	Dimension() int
}

// VisionChat is the single-turn vision-language capability behind the chat
// endpoint. No conversation state is kept; the caller owns history.
type VisionChat interface {
	Chat(ctx context.Context, imagePath, prompt string) (string, error)
}

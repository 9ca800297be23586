package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-curator/internal/logging"
	"media-curator/internal/mediatypes"
	"media-curator/internal/metrics"
)

// Config holds the model service endpoints and tuning knobs for the
// default extractor.
type Config struct {
	OllamaURL    string
	EmbedModel   string
	VisionModel  string
	WhisperURL   string
	WhisperModel string

	// EmbeddingDim is the vector length EmbedModel produces.
	EmbeddingDim int

	// TagThreshold is the minimum confidence for a tag prediction to be
	// kept.
	TagThreshold float64

	// RequestTimeout bounds each individual model call.
	RequestTimeout time.Duration
}

// Service implements Extractor and VisionChat on top of an Ollama server,
// an OpenAI-compatible transcription server and the ffmpeg tools. All model
// work happens in external processes; Service is safe for concurrent use.
type Service struct {
	cfg     Config
	ollama  *OllamaClient
	whisper *WhisperClient
}

// NewService wires the default extractor from config.
func NewService(cfg Config) *Service {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	return &Service{
		cfg:     cfg,
		ollama:  NewOllamaClient(cfg.OllamaURL, cfg.RequestTimeout),
		whisper: NewWhisperClient(cfg.WhisperURL, cfg.WhisperModel, cfg.RequestTimeout),
	}
}

// Dimension returns the embedding vector length.
func (s *Service) Dimension() int {
	return s.cfg.EmbeddingDim
}

func observe(extractor string, start time.Time, err error) {
	metrics.ExtractorDuration.WithLabelValues(extractor).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExtractorErrors.WithLabelValues(extractor).Inc()
	}
}

// EmbedText embeds a text string into the shared embedding space.
func (s *Service) EmbedText(ctx context.Context, text string) (vec []float32, err error) {
	defer observe("embed_text", time.Now(), err)
	return s.ollama.Embed(ctx, s.cfg.EmbedModel, text, nil)
}

// EmbedImage embeds a media file's visual content into the shared
// embedding space. For videos the representative frame is embedded.
func (s *Service) EmbedImage(ctx context.Context, imagePath string) (vec []float32, err error) {
	defer observe("embed_image", time.Now(), err)

	framePath, cleanup, err := s.frameForModel(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	encoded, err := encodeImageFile(framePath)
	if err != nil {
		return nil, err
	}
	return s.ollama.Embed(ctx, s.cfg.EmbedModel, "", []string{encoded})
}

// frameForModel returns an image path usable by the vision and embedding
// models: the file itself for images, or an extracted middle frame for
// videos. The returned cleanup removes any temporary frame.
func (s *Service) frameForModel(ctx context.Context, path string) (string, func(), error) {
	if mediatypes.GetMediaType(filepath.Ext(path)) != mediatypes.MediaTypeVideo {
		return path, func() {}, nil
	}

	info, err := ProbeVideo(ctx, path)
	if err != nil {
		return "", nil, err
	}
	dir, err := os.MkdirTemp("", "curator-frame-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create frame dir: %w", err)
	}
	out := filepath.Join(dir, "frame.jpg")
	if err := ExtractFrame(ctx, path, info.Duration/2, out); err != nil {
		os.RemoveAll(dir)
		return "", nil, err
	}
	return out, func() { os.RemoveAll(dir) }, nil
}

const tagPrompt = `Analyze this image and list tags describing it.
Respond with only a JSON array, no other text. Each element must be an
object with fields "category" (one of "general", "character", "series"),
"name" (lowercase tag) and "confidence" (0.0 to 1.0). Use "character" for
named people or characters, "series" for the franchise or show the image
belongs to, and "general" for everything else.`

// TagImage predicts tags for a media file via the vision model and drops
// predictions below the configured confidence threshold. For videos the
// representative frame is tagged.
func (s *Service) TagImage(ctx context.Context, imagePath string) (tags []Tag, err error) {
	defer observe("tagger", time.Now(), err)

	framePath, cleanup, err := s.frameForModel(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	encoded, err := encodeImageFile(framePath)
	if err != nil {
		return nil, err
	}
	raw, err := s.ollama.Generate(ctx, s.cfg.VisionModel, tagPrompt, []string{encoded})
	if err != nil {
		return nil, err
	}

	tags, err = parseTags(raw, s.cfg.TagThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tagger output: %w", err)
	}
	return tags, nil
}

var validTagCategories = map[string]bool{
	"general":   true,
	"character": true,
	"series":    true,
}

// parseTags decodes the vision model's JSON tag array, tolerating code
// fences around it, and applies the confidence threshold. Predictions with
// unknown categories fold into general rather than being lost.
func parseTags(raw string, threshold float64) ([]Tag, error) {
	trimmed := strings.TrimSpace(raw)
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}

	var all []Tag
	if err := json.Unmarshal([]byte(trimmed), &all); err != nil {
		return nil, err
	}

	kept := make([]Tag, 0, len(all))
	for _, tag := range all {
		tag.Name = strings.ToLower(strings.TrimSpace(tag.Name))
		if tag.Name == "" || tag.Confidence < threshold {
			continue
		}
		tag.Category = strings.ToLower(strings.TrimSpace(tag.Category))
		if !validTagCategories[tag.Category] {
			tag.Category = "general"
		}
		kept = append(kept, tag)
	}
	return kept, nil
}

const describePrompt = `Describe this video frame in one or two sentences.
Mention the people, objects, setting and any visible action or text.
Respond with only the description.`

// DescribeKeyframes samples the standard keyframe set from a video and
// describes each frame with the vision model. Frames whose description
// fails are skipped with a warning.
func (s *Service) DescribeKeyframes(ctx context.Context, videoPath string) (descs []FrameDescription, err error) {
	defer observe("describer", time.Now(), err)

	info, err := ProbeVideo(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "curator-frames-")
	if err != nil {
		return nil, fmt.Errorf("failed to create frame dir: %w", err)
	}
	defer os.RemoveAll(dir)

	frames, err := SampleFrames(ctx, videoPath, info.Duration, dir)
	if err != nil {
		return nil, err
	}

	descs = make([]FrameDescription, 0, len(frames))
	for _, frame := range frames {
		encoded, encErr := encodeImageFile(frame.Path)
		if encErr != nil {
			logging.Warn("Skipping frame at %.1fs of %s: %v", frame.Timestamp, videoPath, encErr)
			continue
		}
		text, genErr := s.ollama.Generate(ctx, s.cfg.VisionModel, describePrompt, []string{encoded})
		if genErr != nil {
			logging.Warn("Description failed for frame at %.1fs of %s: %v", frame.Timestamp, videoPath, genErr)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		descs = append(descs, FrameDescription{Timestamp: frame.Timestamp, Text: text})
	}
	return descs, nil
}

// TranscribeSpeech extracts the video's audio track and transcribes it. A
// video without an audio track yields an empty transcript.
func (s *Service) TranscribeSpeech(ctx context.Context, videoPath string) (chunks []TranscriptChunk, err error) {
	defer observe("transcriber", time.Now(), err)

	info, err := ProbeVideo(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	if !info.HasAudio {
		return []TranscriptChunk{}, nil
	}

	dir, err := os.MkdirTemp("", "curator-audio-")
	if err != nil {
		return nil, fmt.Errorf("failed to create audio dir: %w", err)
	}
	defer os.RemoveAll(dir)

	audioPath := dir + "/audio.wav"
	if err := ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return nil, err
	}
	return s.whisper.Transcribe(ctx, audioPath)
}

// Chat answers a single-turn question about a media file with the vision
// model. For videos the representative frame is shown to the model.
func (s *Service) Chat(ctx context.Context, imagePath, prompt string) (answer string, err error) {
	defer observe("chat", time.Now(), err)

	framePath, cleanup, err := s.frameForModel(ctx, imagePath)
	if err != nil {
		return "", err
	}
	defer cleanup()

	encoded, err := encodeImageFile(framePath)
	if err != nil {
		return "", err
	}
	answer, err = s.ollama.Generate(ctx, s.cfg.VisionModel, prompt, []string{encoded})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

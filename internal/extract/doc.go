// Package extract provides the feature extraction capability set: tagging,
// image and text embedding, keyframe description and speech transcription.
//
// The default Service delegates all model work to external processes: an
// Ollama server for embeddings and vision-language calls, an
// OpenAI-compatible transcription server for speech, and the ffmpeg tools
// for frame and audio extraction. Callers depend on the Extractor and
// VisionChat interfaces so tests can substitute fakes and new model
// backends can be dropped in without touching the scan pipeline.
package extract

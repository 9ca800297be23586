package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WhisperClient talks to an OpenAI-compatible speech-to-text server
// (whisper.cpp server, faster-whisper-server and friends).
type WhisperClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewWhisperClient returns a client for the transcription server at
// baseURL, e.g. "http://localhost:8090".
func NewWhisperClient(baseURL, model string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// whisperVerboseResponse is the verbose_json response shape of
// /v1/audio/transcriptions.
type whisperVerboseResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads an audio file and returns the timestamped transcript
// chunks. Silence yields an empty slice, not an error.
func (c *WhisperClient) Transcribe(ctx context.Context, audioPath string) ([]TranscriptChunk, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to buffer audio file: %w", err)
	}
	if err := mw.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}

	url := c.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call transcription server at %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out whisperVerboseResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse transcription response: %w", err)
	}

	return parseTranscript(&out), nil
}

// parseTranscript converts a verbose_json response into transcript chunks,
// dropping empty segments. A response with text but no segment timing
// becomes a single chunk.
func parseTranscript(resp *whisperVerboseResponse) []TranscriptChunk {
	chunks := make([]TranscriptChunk, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		chunks = append(chunks, TranscriptChunk{Start: seg.Start, End: seg.End, Text: text})
	}

	if len(chunks) == 0 {
		if text := strings.TrimSpace(resp.Text); text != "" {
			chunks = append(chunks, TranscriptChunk{Text: text})
		}
	}
	return chunks
}

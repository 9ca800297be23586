package extract

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKeyframeTimestamps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		duration float64
		want     []float64
	}{
		{
			name:     "long video gets five samples",
			duration: 100,
			want:     []float64{10, 25, 50, 75, 90},
		},
		{
			name:     "edge offsets clamp into range",
			duration: 8,
			want:     []float64{0, 2, 4, 6, 8},
		},
		{
			name:     "zero duration collapses to single sample",
			duration: 0,
			want:     []float64{0},
		},
		{
			name:     "duplicate positions deduplicated",
			duration: 40,
			want:     []float64{10, 20, 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := KeyframeTimestamps(tt.duration)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("sample %d = %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		threshold float64
		want      []Tag
		wantErr   bool
	}{
		{
			name:      "plain array",
			raw:       `[{"category":"general","name":"beach","confidence":0.9}]`,
			threshold: 0.5,
			want:      []Tag{{Category: "general", Name: "beach", Confidence: 0.9}},
		},
		{
			name: "code fence stripped",
			raw: "```json\n" +
				`[{"category":"character","name":"alice","confidence":0.8}]` +
				"\n```",
			threshold: 0.5,
			want:      []Tag{{Category: "character", Name: "alice", Confidence: 0.8}},
		},
		{
			name:      "threshold drops weak predictions",
			raw:       `[{"category":"general","name":"tree","confidence":0.3},{"category":"general","name":"sky","confidence":0.7}]`,
			threshold: 0.5,
			want:      []Tag{{Category: "general", Name: "sky", Confidence: 0.7}},
		},
		{
			name:      "unknown category folds into general",
			raw:       `[{"category":"mood","name":"calm","confidence":0.9}]`,
			threshold: 0.5,
			want:      []Tag{{Category: "general", Name: "calm", Confidence: 0.9}},
		},
		{
			name:      "names normalized to lowercase",
			raw:       `[{"category":"series","name":"  Wonderland ","confidence":0.9}]`,
			threshold: 0.5,
			want:      []Tag{{Category: "series", Name: "wonderland", Confidence: 0.9}},
		},
		{
			name:      "empty names dropped",
			raw:       `[{"category":"general","name":"","confidence":0.9}]`,
			threshold: 0.5,
			want:      []Tag{},
		},
		{
			name:      "not json",
			raw:       "I cannot tag this image.",
			threshold: 0.5,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseTags(tt.raw, tt.threshold)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTags() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tag %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseTranscript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp whisperVerboseResponse
		want []TranscriptChunk
	}{
		{
			name: "segments with timing",
			resp: whisperVerboseResponse{
				Text: "hello world",
				Segments: []struct {
					Start float64 `json:"start"`
					End   float64 `json:"end"`
					Text  string  `json:"text"`
				}{
					{Start: 0, End: 2.5, Text: " hello "},
					{Start: 2.5, End: 4, Text: "world"},
				},
			},
			want: []TranscriptChunk{
				{Start: 0, End: 2.5, Text: "hello"},
				{Start: 2.5, End: 4, Text: "world"},
			},
		},
		{
			name: "silence yields empty",
			resp: whisperVerboseResponse{Text: "  "},
			want: []TranscriptChunk{},
		},
		{
			name: "text without segments becomes one chunk",
			resp: whisperVerboseResponse{Text: "just text"},
			want: []TranscriptChunk{{Text: "just text"}},
		},
		{
			name: "blank segments dropped",
			resp: whisperVerboseResponse{
				Segments: []struct {
					Start float64 `json:"start"`
					End   float64 `json:"end"`
					Text  string  `json:"text"`
				}{
					{Start: 0, End: 1, Text: "   "},
				},
			},
			want: []TranscriptChunk{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTranscript(&tt.resp)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFrameForModelPassesImagesThrough(t *testing.T) {
	t.Parallel()

	svc := NewService(Config{EmbeddingDim: 4})
	path := filepath.Join(t.TempDir(), "photo.jpg")

	got, cleanup, err := svc.frameForModel(context.Background(), path)
	if err != nil {
		t.Fatalf("frameForModel() error = %v", err)
	}
	defer cleanup()
	if got != path {
		t.Errorf("frameForModel() = %q, want the image path unchanged", got)
	}
}

func TestOllamaClientEmbed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "test-embed" || req.Prompt != "a red boat" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, 5*time.Second)
	vec, err := client.Embed(context.Background(), "test-embed", "a red boat", nil)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("embedding length = %d, want 3", len(vec))
	}
}

func TestOllamaClientEmptyEmbedding(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, 5*time.Second)
	if _, err := client.Embed(context.Background(), "m", "p", nil); err == nil {
		t.Error("expected error for empty embedding, got nil")
	}
}

func TestOllamaClientServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"error": "model not found"})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, 5*time.Second)
	_, err := client.Generate(context.Background(), "missing", "hi", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestWhisperClientTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("bad multipart body: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"text": "hello there",
			"segments": []map[string]any{
				{"start": 0.0, "end": 1.5, "text": "hello there"},
			},
		})
	}))
	defer srv.Close()

	audio := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(audio, []byte("RIFF fake wav"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := NewWhisperClient(srv.URL, "whisper-1", 5*time.Second)
	chunks, err := client.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "hello there" || chunks[0].End != 1.5 {
		t.Errorf("chunks = %+v", chunks)
	}
}

package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ollamaRequest is the request body shared by the generate and embeddings
// endpoints. Images carries base64-encoded image bytes for multimodal
// models.
type ollamaRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Stream bool     `json:"stream"`
	Images []string `json:"images,omitempty"`
}

type ollamaResponse struct {
	Response  string    `json:"response"`
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error"`
}

// OllamaClient talks to an Ollama server's generate and embeddings
// endpoints.
type OllamaClient struct {
	baseURL string
	client  *http.Client
}

// NewOllamaClient returns a client for the Ollama server at baseURL,
// e.g. "http://localhost:11434".
func NewOllamaClient(baseURL string, timeout time.Duration) *OllamaClient {
	return &OllamaClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *OllamaClient) post(ctx context.Context, endpoint string, reqBody ollamaRequest) (*ollamaResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ollama request: %w", err)
	}

	url := fmt.Sprintf("%s/api/%s", c.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama at %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ollama response: %w", err)
	}

	var out ollamaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("ollama %s returned %d: %s", endpoint, resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("ollama %s returned %d", endpoint, resp.StatusCode)
	}
	return &out, nil
}

// Embed returns the embedding for a text prompt with optional attached
// images.
func (c *OllamaClient) Embed(ctx context.Context, model, prompt string, images []string) ([]float32, error) {
	out, err := c.post(ctx, "embeddings", ollamaRequest{
		Model:  model,
		Prompt: prompt,
		Images: images,
	})
	if err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding for model %s", model)
	}
	return out.Embedding, nil
}

// Generate runs a non-streaming completion with optional attached images.
func (c *OllamaClient) Generate(ctx context.Context, model, prompt string, images []string) (string, error) {
	out, err := c.post(ctx, "generate", ollamaRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Images: images,
	})
	if err != nil {
		return "", err
	}
	return out.Response, nil
}

// encodeImageFile reads an image file and base64-encodes it for the Images
// field of an ollama request.
func encodeImageFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

package aicat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultGeminiEndpoint is the public Generative Language API base URL.
const DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"

const maxResponseBytes = 4 << 20

// GeminiProvider calls the generateContent endpoint over plain HTTP.
type GeminiProvider struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewGemini creates a Gemini provider. An empty endpoint selects
// DefaultGeminiEndpoint.
func NewGemini(apiKey, model, endpoint string, timeout time.Duration) *GeminiProvider {
	if endpoint == "" {
		endpoint = DefaultGeminiEndpoint
	}
	return &GeminiProvider{
		apiKey:   apiKey,
		model:    model,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (g *GeminiProvider) Name() string { return "gemini" }

// Model returns the model identifier.
func (g *GeminiProvider) Model() string { return g.model }

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// Generate sends prompt and returns the concatenated text parts of the first
// candidate.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("gemini: %w: status %d: %s", ErrEnvelope, resp.StatusCode, msg)
	}

	return geminiText(data)
}

// geminiText walks candidates[0].content.parts[*].text, checking each step.
func geminiText(data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("gemini: %w: body is not JSON", ErrEnvelope)
	}
	candidates := gjson.GetBytes(data, "candidates")
	if !candidates.IsArray() || len(candidates.Array()) == 0 {
		reason := gjson.GetBytes(data, "promptFeedback.blockReason").String()
		if reason != "" {
			return "", fmt.Errorf("gemini: %w: prompt blocked: %s", ErrEnvelope, reason)
		}
		return "", fmt.Errorf("gemini: %w: no candidates", ErrEnvelope)
	}
	first := candidates.Array()[0]
	content := first.Get("content")
	if !content.IsObject() {
		return "", fmt.Errorf("gemini: %w: candidate has no content (finishReason %q)", ErrEnvelope, first.Get("finishReason").String())
	}
	parts := content.Get("parts")
	if !parts.IsArray() {
		return "", fmt.Errorf("gemini: %w: content has no parts", ErrEnvelope)
	}

	var sb strings.Builder
	for _, p := range parts.Array() {
		t := p.Get("text")
		if t.Type == gjson.String {
			sb.WriteString(t.String())
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini: %w: no text parts", ErrEnvelope)
	}
	return sb.String(), nil
}

package aicat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"categories\":"},{"text":"[]}"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	g := NewGemini("secret", "gemini-2.0-flash", srv.URL+"/", 5*time.Second)
	text, err := g.Generate(context.Background(), "hello", GenerationParams{Temperature: 0.3, MaxOutputTokens: 100})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != `{"categories":[]}` {
		t.Errorf("text = %q", text)
	}
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Parts[0].Text != "hello" {
		t.Errorf("body contents = %+v", gotBody.Contents)
	}
	if gotBody.GenerationConfig.MaxOutputTokens != 100 || gotBody.GenerationConfig.Temperature != 0.3 {
		t.Errorf("generation config = %+v", gotBody.GenerationConfig)
	}
}

func TestGeminiGenerate_EnvelopeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"http error", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exceeded"}}`, "quota exceeded"},
		{"not json", http.StatusOK, `<html>oops</html>`, "not JSON"},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, "no candidates"},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "SAFETY"},
		{"no content", http.StatusOK, `{"candidates":[{"finishReason":"MAX_TOKENS"}]}`, "MAX_TOKENS"},
		{"parts not array", http.StatusOK, `{"candidates":[{"content":{"parts":"x"}}]}`, "no parts"},
		{"no text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{}}]}}]}`, "no text parts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewGemini("k", "m", srv.URL, time.Second).Generate(context.Background(), "p", GenerationParams{})
			if !errors.Is(err, ErrEnvelope) {
				t.Fatalf("err = %v, want ErrEnvelope", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestGeminiGenerate_RequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewGemini("k", "m", url, time.Second).Generate(context.Background(), "p", GenerationParams{})
	if err == nil || errors.Is(err, ErrEnvelope) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestAnthropicGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"m",`+
			`"content":[{"type":"text","text":"{\"categories\":[]}"}],`+
			`"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer srv.Close()

	a := NewAnthropic("secret", "m", srv.URL, 5*time.Second)
	text, err := a.Generate(context.Background(), "hello", GenerationParams{Temperature: 0.3, MaxOutputTokens: 64})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != `{"categories":[]}` {
		t.Errorf("text = %q", text)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotBody["model"] != "m" || gotBody["max_tokens"] != float64(64) {
		t.Errorf("body = %v", gotBody)
	}
}

func TestAnthropicGenerate_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	defer srv.Close()

	_, err := NewAnthropic("k", "m", srv.URL, time.Second).Generate(context.Background(), "p", GenerationParams{MaxOutputTokens: 10})
	if !errors.Is(err, ErrEnvelope) {
		t.Fatalf("err = %v, want ErrEnvelope", err)
	}
}

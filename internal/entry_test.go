package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/starford/kwcat/internal/aicat"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type cannedProvider struct{ text string }

func (p cannedProvider) Name() string  { return "canned" }
func (p cannedProvider) Model() string { return "canned-1" }
func (p cannedProvider) Generate(context.Context, string, aicat.GenerationParams) (string, error) {
	return p.text, nil
}

func testApp(t *testing.T, opts ...Option) (*components, http.Handler) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "kwcat.db")
	app := &application{}
	if err := app.init(append([]Option{WithConfig(cfg)}, opts...)); err != nil {
		t.Fatal(err)
	}
	c, err := app.build(discardLogger(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { c.db.Close() })
	return c, newRouter(cfg, c, nil)
}

func TestInit_RequiresConfig(t *testing.T) {
	if err := (&application{}).init(nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestNewProvider(t *testing.T) {
	cfg := NewDefaultConfig().AI
	if newProvider(cfg) != nil {
		t.Error("provider built without api key")
	}
	cfg.APIKey = "k"
	if p := newProvider(cfg); p == nil || p.Name() != "gemini" {
		t.Errorf("provider = %v, want gemini", p)
	}
	cfg.Provider = ProviderAnthropic
	if p := newProvider(cfg); p == nil || p.Name() != "anthropic" {
		t.Errorf("provider = %v, want anthropic", p)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, h := testApp(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", w.Code)
	}
}

func TestCategorizeThroughRouter_AIProvider(t *testing.T) {
	c, h := testApp(t, WithAIProvider(cannedProvider{
		text: `{"categories":[{"id":"devices","name":"Cihazlar","icon":"monitor","keywords":[1,2]}]}`,
	}))
	ctx := context.Background()
	id, err := c.db.CreateProject(ctx, "p", "elektronik")
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(map[string]any{"keywords": []string{"laptop", "tablet"}})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/projects/"+itoa(id)+"/categorization", bytes.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"ai_source":"ai"`) {
		t.Errorf("body = %s", w.Body.String())
	}
	if n, _ := c.db.UsageCount(ctx, id); n != 1 {
		t.Errorf("usage rows = %d, want 1", n)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := w.Body.String()
	if !strings.Contains(out, `kwcat_categorization_runs_total{source="ai"} 1`) {
		t.Errorf("runs metric missing:\n%s", out)
	}
	if !strings.Contains(out, `kwcat_ai_calls_total{provider="canned",success="true"} 1`) {
		t.Errorf("usage metric missing:\n%s", out)
	}
}

func TestBuild_InvalidRulesFile(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "kwcat.db")
	cfg.Fallback.RulesPath = filepath.Join(t.TempDir(), "missing.yaml")
	app := &application{}
	if err := app.init([]Option{WithConfig(cfg)}); err != nil {
		t.Fatal(err)
	}
	if _, err := app.build(discardLogger(), nil); err == nil {
		t.Fatal("expected error for missing rules file")
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// Package aicat categorizes keywords with an external language model.
//
// Every failure of the provider call, the response envelope or the model
// output is returned as a *Failure so callers can fall back to rule-based
// categorization; nothing in this package panics on untrusted output.
package aicat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/kwcat/internal/checksum"
	"github.com/starford/kwcat/internal/models"
	"github.com/starford/kwcat/internal/normalize"
)

// DefaultSampleLimit bounds the number of keywords sent to the model.
const DefaultSampleLimit = 500

// ErrEnvelope marks a provider response that was received but is unusable:
// a non-2xx status or a body that does not have the expected shape.
var ErrEnvelope = errors.New("malformed response envelope")

// GenerationParams are the sampling settings of one provider call.
type GenerationParams struct {
	Temperature     float64
	MaxOutputTokens int
}

// Provider generates text for a prompt.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// FailureKind classifies why AI categorization produced no result.
type FailureKind string

// Failure kinds.
const (
	FailureRequest  FailureKind = "request"
	FailureEnvelope FailureKind = "envelope"
	FailureNoJSON   FailureKind = "no_json"
	FailureParse    FailureKind = "parse"
	FailureEmpty    FailureKind = "empty"
)

// Failure is the error returned by Categorize.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("ai categorization failed (%s): %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Usage is the accounting record of one provider call. Token counts are
// approximated as bytes / 4.
type Usage struct {
	Provider       string
	Model          string
	InputTokens    int
	OutputTokens   int
	Latency        time.Duration
	Success        bool
	Error          string
	PromptChecksum string
}

// Config configures a Categorizer.
type Config struct {
	SampleLimit int
	Timeout     time.Duration
	Params      GenerationParams
}

// Categorizer turns a keyword sample into categories through a Provider.
type Categorizer struct {
	provider Provider
	cfg      Config
}

// New creates a Categorizer. Zero config values fall back to defaults.
func New(provider Provider, cfg Config) *Categorizer {
	if cfg.SampleLimit <= 0 {
		cfg.SampleLimit = DefaultSampleLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Params.MaxOutputTokens <= 0 {
		cfg.Params.MaxOutputTokens = 8192
	}
	return &Categorizer{provider: provider, cfg: cfg}
}

// Categorize asks the model to group at most SampleLimit records. The
// returned Usage is populated whether or not the call succeeded. A non-nil
// error is always a *Failure.
func (c *Categorizer) Categorize(ctx context.Context, records []models.KeywordRecord, topic string) ([]models.Category, Usage, error) {
	sample := records
	if len(sample) > c.cfg.SampleLimit {
		sample = sample[:c.cfg.SampleLimit]
	}

	prompt := BuildPrompt(sample, topic)
	usage := Usage{
		Provider:       c.provider.Name(),
		Model:          c.provider.Model(),
		InputTokens:    len(prompt) / 4,
		PromptChecksum: checksum.Prompt(prompt),
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := c.provider.Generate(callCtx, prompt, c.cfg.Params)
	usage.Latency = time.Since(start)
	usage.OutputTokens = len(text) / 4

	if err != nil {
		kind := FailureRequest
		if errors.Is(err, ErrEnvelope) {
			kind = FailureEnvelope
		}
		u, ferr := fail(&usage, kind, err)
		return nil, u, ferr
	}

	cats, ferr := parseResponse(text, sample)
	if ferr != nil {
		u, err := fail(&usage, ferr.Kind, ferr.Err)
		return nil, u, err
	}
	usage.Success = true
	return cats, usage, nil
}

func fail(u *Usage, kind FailureKind, err error) (Usage, error) {
	f := &Failure{Kind: kind, Err: err}
	u.Error = f.Error()
	return *u, f
}

type rawResponse struct {
	Categories []rawCategory `json:"categories"`
}

type rawCategory struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Icon        string            `json:"icon"`
	Description string            `json:"description"`
	Keywords    []json.RawMessage `json:"keywords"`
}

// parseResponse extracts, parses and validates the model output against the
// sample it was asked about.
func parseResponse(text string, sample []models.KeywordRecord) ([]models.Category, *Failure) {
	obj, ok := extractJSONObject(text)
	if !ok {
		return nil, &Failure{Kind: FailureNoJSON, Err: errors.New("no JSON object in response")}
	}
	var raw rawResponse
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, &Failure{Kind: FailureParse, Err: err}
	}

	cats := mapCategories(raw.Categories, sample)
	if len(cats) == 0 {
		return nil, &Failure{Kind: FailureEmpty, Err: errors.New("response contains no usable categories")}
	}
	return cats, nil
}

// otherCategory collects sample keywords the model did not assign.
var otherCategory = models.Category{
	ID:          "other",
	Name:        "Diğer",
	Icon:        DefaultIcon,
	Description: "Herhangi bir kategoriye atanmamış aramalar",
}

// mapCategories translates 1-based indices back to keyword texts. Indices
// outside [1, len(sample)], non-integers and keywords already claimed by an
// earlier category are dropped. Unassigned keywords go to an "other"
// category, so every sample keyword ends up in exactly one category.
func mapCategories(raw []rawCategory, sample []models.KeywordRecord) []models.Category {
	claimed := make([]bool, len(sample))
	usedIDs := make(map[string]bool)
	var out []models.Category

	for i, rc := range raw {
		name := strings.TrimSpace(rc.Name)
		if name == "" {
			continue
		}
		id := slugify(rc.ID)
		if id == "" {
			id = slugify(name)
		}
		if id == "" {
			id = "category-" + strconv.Itoa(i+1)
		}
		if usedIDs[id] {
			base := id
			for n := 2; usedIDs[id]; n++ {
				id = base + "-" + strconv.Itoa(n)
			}
		}
		usedIDs[id] = true
		icon := strings.TrimSpace(rc.Icon)
		if !validIcon(icon) {
			icon = DefaultIcon
		}

		var kws []string
		for _, rawIdx := range rc.Keywords {
			idx, ok := parseIndex(rawIdx)
			if !ok || idx < 1 || idx > len(sample) || claimed[idx-1] {
				continue
			}
			claimed[idx-1] = true
			kws = append(kws, sample[idx-1].Text)
		}
		if len(kws) == 0 {
			continue
		}
		out = append(out, models.Category{
			ID:          id,
			Name:        name,
			Icon:        icon,
			Description: strings.TrimSpace(rc.Description),
			Keywords:    kws,
		})
	}

	if len(out) == 0 {
		return nil
	}

	var rest []string
	for i, ok := range claimed {
		if !ok {
			rest = append(rest, sample[i].Text)
		}
	}
	if len(rest) == 0 {
		return out
	}
	for i := range out {
		if out[i].ID == otherCategory.ID {
			out[i].Keywords = append(out[i].Keywords, rest...)
			return out
		}
	}
	other := otherCategory
	other.Keywords = rest
	return append(out, other)
}

// parseIndex accepts an integral JSON number or a numeric string.
func parseIndex(raw json.RawMessage) (int, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		n = json.Number(strings.TrimSpace(s))
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, false
	}
	return i, true
}

// slugify lowercases s, folds locale characters and joins runs of other
// characters with '-'.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range normalize.Key(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Package categorize runs the keyword categorization pipeline for a project:
// cache check, deduplication, AI categorization with rule-based fallback,
// then persistence.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starford/kwcat/internal/aicat"
	"github.com/starford/kwcat/internal/apperr"
	"github.com/starford/kwcat/internal/dedup"
	"github.com/starford/kwcat/internal/metrics"
	"github.com/starford/kwcat/internal/models"
	"github.com/starford/kwcat/internal/normalize"
	"github.com/starford/kwcat/internal/persist"
	"github.com/starford/kwcat/internal/sse"
	"github.com/starford/kwcat/internal/store"
)

// Store is the storage surface the service reads from.
type Store interface {
	ProjectState(ctx context.Context, projectID int64) (*store.ProjectState, error)
	RecordUsage(ctx context.Context, projectID int64, u aicat.Usage) (string, error)
}

// AI categorizes a keyword sample with a language model.
type AI interface {
	Categorize(ctx context.Context, records []models.KeywordRecord, topic string) ([]models.Category, aicat.Usage, error)
}

// Fallback categorizes keywords without external calls. It never fails.
type Fallback interface {
	Categorize(records []models.KeywordRecord) []models.Category
}

// Persister writes a result back to storage.
type Persister interface {
	Persist(ctx context.Context, projectID int64, cats []models.Category) *persist.Report
}

// Events receives run notifications.
type Events interface {
	PublishRun(ev sse.RunEvent)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEvents sets the run event sink.
func WithEvents(e Events) Option {
	return func(s *Service) { s.events = e }
}

// WithSampleLimit caps how many deduplicated records are categorized.
func WithSampleLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sampleLimit = n
		}
	}
}

// Service coordinates one categorization run per call. It holds no
// per-project state; concurrent forced runs on one project race and the
// last write wins.
type Service struct {
	store    Store
	ai       AI
	fallback Fallback
	persist  Persister

	logger      *slog.Logger
	metrics     *metrics.Metrics
	events      Events
	sampleLimit int
}

// NewService creates a Service. ai may be nil, in which case every run uses
// the fallback categorizer.
func NewService(st Store, ai AI, fb Fallback, p Persister, opts ...Option) *Service {
	s := &Service{
		store:       st,
		ai:          ai,
		fallback:    fb,
		persist:     p,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		sampleLimit: aicat.DefaultSampleLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run categorizes raw for projectID. A cached result is returned as is
// unless force is set. AI and persistence failures never surface as errors;
// only bad input, an unknown project and storage read errors do.
func (s *Service) Run(ctx context.Context, projectID int64, raw []models.KeywordRecord, force bool) (*models.Result, error) {
	start := time.Now()
	if len(raw) == 0 {
		return nil, apperr.ErrNoKeywords
	}
	if !hasKeyword(raw) {
		return nil, fmt.Errorf("%w: every keyword is blank", apperr.ErrInvalidInput)
	}

	st, err := s.store.ProjectState(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if !force && st.Cache.Hit() {
		considered := 0
		for _, c := range st.Cache.Categories {
			considered += len(c.Keywords)
		}
		s.metrics.ObserveRun(string(models.SourceDatabase))
		return &models.Result{
			Categories:         st.Cache.Categories,
			Source:             models.SourceDatabase,
			Keywords:           raw,
			KeywordsConsidered: considered,
			OriginalCount:      len(raw),
			Elapsed:            time.Since(start),
			Saved:              true,
		}, nil
	}

	d := dedup.Deduplicate(raw)
	s.metrics.AddDuplicates(d.Removed)
	sample := d.Records
	if len(sample) > s.sampleLimit {
		sample = sample[:s.sampleLimit]
	}

	cats, source := s.categorize(ctx, projectID, sample, st.Topic)

	rep := s.persist.Persist(context.WithoutCancel(ctx), projectID, cats)
	s.reportPersist(projectID, rep)

	res := &models.Result{
		Categories:         cats,
		Source:             source,
		Keywords:           sample,
		KeywordsConsidered: len(sample),
		OriginalCount:      len(raw),
		DuplicatesRemoved:  d.Removed,
		Elapsed:            time.Since(start),
		Saved:              rep.OK(),
	}

	s.metrics.ObserveRun(string(source))
	if s.events != nil {
		s.events.PublishRun(sse.RunEvent{
			Kind:              sse.RunCompleted,
			ProjectID:         projectID,
			Source:            string(source),
			KeywordCount:      len(sample),
			DuplicatesRemoved: d.Removed,
		})
	}
	s.logger.Info("categorization finished",
		slog.Int64("project_id", projectID),
		slog.String("source", string(source)),
		slog.Int("keywords", len(sample)),
		slog.Int("duplicates_removed", d.Removed),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// hasKeyword reports whether any record survives normalization.
func hasKeyword(raw []models.KeywordRecord) bool {
	for _, r := range raw {
		if normalize.Key(r.Text) != "" {
			return true
		}
	}
	return false
}

// categorize tries the AI categorizer and falls back to rules on any
// failure. Both operate on the same sample.
func (s *Service) categorize(ctx context.Context, projectID int64, sample []models.KeywordRecord, topic string) ([]models.Category, models.Source) {
	if s.ai == nil {
		return s.fallback.Categorize(sample), models.SourceFallback
	}

	cats, usage, err := s.ai.Categorize(ctx, sample, topic)
	s.recordUsage(ctx, projectID, usage)

	if err == nil {
		s.metrics.ObserveAI(usage.Provider, "success", usage.Latency)
		return cats, models.SourceAI
	}

	kind := "unknown"
	var f *aicat.Failure
	if errors.As(err, &f) {
		kind = string(f.Kind)
	}
	s.metrics.ObserveAI(usage.Provider, kind, usage.Latency)
	s.logger.Warn("ai categorization failed, using fallback",
		slog.Int64("project_id", projectID),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
	return s.fallback.Categorize(sample), models.SourceFallback
}

func (s *Service) recordUsage(ctx context.Context, projectID int64, u aicat.Usage) {
	if u.Provider == "" {
		return
	}
	runID, err := s.store.RecordUsage(context.WithoutCancel(ctx), projectID, u)
	if err != nil {
		s.logger.Error("failed to record ai usage",
			slog.Int64("project_id", projectID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("ai usage recorded",
		slog.String("run_id", runID),
		slog.String("provider", u.Provider),
		slog.Int("input_tokens", u.InputTokens),
		slog.Int("output_tokens", u.OutputTokens),
		slog.Bool("success", u.Success),
	)
}

func (s *Service) reportPersist(projectID int64, rep *persist.Report) {
	if rep.OK() {
		return
	}
	for _, f := range rep.Failures {
		s.metrics.AddPersistFailure(string(f.Step))
		s.logger.Error("persist failed",
			slog.Int64("project_id", projectID),
			slog.String("step", string(f.Step)),
			slog.String("table", string(f.Table)),
			slog.String("keyword", f.Keyword),
			slog.String("error", f.Err.Error()),
		)
	}
	if s.events != nil {
		s.events.PublishRun(sse.RunEvent{
			Kind:      sse.RunPersistFailed,
			ProjectID: projectID,
			Failures:  len(rep.Failures),
		})
	}
}

// Status returns the cached categorization of a project.
func (s *Service) Status(ctx context.Context, projectID int64) (models.CacheEntry, error) {
	st, err := s.store.ProjectState(ctx, projectID)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("categorize: status: %w", err)
	}
	return st.Cache, nil
}

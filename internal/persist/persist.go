// Package persist writes a categorization result back to storage: the
// project cache first, then the category label of every keyword in both
// result tables.
package persist

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/kwcat/internal/models"
	"github.com/starford/kwcat/internal/store"
)

// DefaultBatchSize is the number of keyword assignments written concurrently.
const DefaultBatchSize = 50

// Step names the phase a failure happened in.
type Step string

const (
	StepCache  Step = "cache"
	StepUpdate Step = "update"
)

// Writer is the storage surface the synchronizer needs.
type Writer interface {
	SaveCache(ctx context.Context, projectID int64, cats []models.Category) error
	SetKeywordCategory(ctx context.Context, table store.Table, projectID int64, keyword, category string) error
}

// Failure is one failed write.
type Failure struct {
	Step    Step
	Table   store.Table
	Keyword string
	Err     error
}

// Report summarizes one Persist call.
type Report struct {
	// Assignments is the number of distinct keywords labelled.
	Assignments int
	// Attempted counts individual update operations (two per assignment).
	Attempted int
	// Batches holds the assignment count of each batch in execution order.
	Batches  []int
	Failures []Failure
}

// OK reports whether every write succeeded.
func (r *Report) OK() bool { return len(r.Failures) == 0 }

// Synchronizer propagates categories to storage.
type Synchronizer struct {
	w         Writer
	batchSize int
	tables    []store.Table
}

// New creates a Synchronizer. batchSize <= 0 selects DefaultBatchSize.
func New(w Writer, batchSize int) *Synchronizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Synchronizer{w: w, batchSize: batchSize, tables: store.ResultTables}
}

// Assignment labels one lowercased keyword with a category id.
type Assignment struct {
	Keyword  string
	Category string
}

// Assignments flattens cats into lowercased keyword -> category id pairs in
// category order then keyword order. A keyword listed twice keeps the last
// category but its first position.
func Assignments(cats []models.Category) []Assignment {
	pos := make(map[string]int)
	var out []Assignment
	for _, c := range cats {
		for _, kw := range c.Keywords {
			key := strings.ToLower(kw)
			if i, ok := pos[key]; ok {
				out[i].Category = c.ID
				continue
			}
			pos[key] = len(out)
			out = append(out, Assignment{Keyword: key, Category: c.ID})
		}
	}
	return out
}

// Persist saves the cache and labels keyword rows. It never stops early:
// a cache failure or a failed update is recorded and the remaining writes
// still run.
func (s *Synchronizer) Persist(ctx context.Context, projectID int64, cats []models.Category) *Report {
	rep := &Report{}
	if err := s.w.SaveCache(ctx, projectID, cats); err != nil {
		rep.Failures = append(rep.Failures, Failure{Step: StepCache, Err: err})
	}

	all := Assignments(cats)
	rep.Assignments = len(all)

	for start := 0; start < len(all); start += s.batchSize {
		end := min(start+s.batchSize, len(all))
		batch := all[start:end]
		rep.Batches = append(rep.Batches, len(batch))
		rep.Failures = append(rep.Failures, s.runBatch(ctx, projectID, batch)...)
		rep.Attempted += len(batch) * len(s.tables)
	}
	return rep
}

// runBatch issues every update of batch in parallel and waits for all of
// them. Each operation owns one result slot.
func (s *Synchronizer) runBatch(ctx context.Context, projectID int64, batch []Assignment) []Failure {
	n := len(batch) * len(s.tables)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(n)
	for i, a := range batch {
		for j, table := range s.tables {
			slot := i*len(s.tables) + j
			g.Go(func() error {
				errs[slot] = s.w.SetKeywordCategory(ctx, table, projectID, a.Keyword, a.Category)
				return nil
			})
		}
	}
	_ = g.Wait()

	var out []Failure
	for slot, err := range errs {
		if err == nil {
			continue
		}
		a := batch[slot/len(s.tables)]
		out = append(out, Failure{
			Step:    StepUpdate,
			Table:   s.tables[slot%len(s.tables)],
			Keyword: a.Keyword,
			Err:     err,
		})
	}
	return out
}

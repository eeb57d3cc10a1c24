package persist

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/starford/kwcat/internal/models"
	"github.com/starford/kwcat/internal/store"
)

type fakeWriter struct {
	mu        sync.Mutex
	cacheErr  error
	failKey   func(table store.Table, keyword string) bool
	cache     []models.Category
	labels    map[store.Table]map[string]string
	calls     atomic.Int64
	inFlight  atomic.Int64
	maxFlight atomic.Int64
	release   chan struct{}
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{labels: map[store.Table]map[string]string{}}
}

func (f *fakeWriter) SaveCache(_ context.Context, _ int64, cats []models.Category) error {
	if f.cacheErr != nil {
		return f.cacheErr
	}
	f.mu.Lock()
	f.cache = cats
	f.mu.Unlock()
	return nil
}

func (f *fakeWriter) SetKeywordCategory(_ context.Context, table store.Table, _ int64, keyword, category string) error {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxFlight.Load()
		if cur <= prev || f.maxFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.release != nil {
		<-f.release
	}
	if f.failKey != nil && f.failKey(table, keyword) {
		return errors.New("write failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labels[table] == nil {
		f.labels[table] = map[string]string{}
	}
	f.labels[table][keyword] = category
	return nil
}

func categoriesOf(n int) []models.Category {
	var kws []string
	for i := 0; i < n; i++ {
		kws = append(kws, fmt.Sprintf("Keyword %03d", i))
	}
	return []models.Category{{ID: "general", Name: "Genel", Icon: "folder", Keywords: kws}}
}

func TestPersist_BatchCompleteness(t *testing.T) {
	w := newFakeWriter()
	w.failKey = func(_ store.Table, kw string) bool { return kw == "keyword 003" || kw == "keyword 010" }

	rep := New(w, 50).Persist(context.Background(), 1, categoriesOf(120))

	if !reflect.DeepEqual(rep.Batches, []int{50, 50, 20}) {
		t.Fatalf("batches = %v, want [50 50 20]", rep.Batches)
	}
	if rep.Assignments != 120 || rep.Attempted != 240 {
		t.Errorf("assignments/attempted = %d/%d, want 120/240", rep.Assignments, rep.Attempted)
	}
	if got := w.calls.Load(); got != 240 {
		t.Errorf("update calls = %d, want 240", got)
	}
	if len(rep.Failures) != 4 || rep.OK() {
		t.Fatalf("failures = %d, want 4", len(rep.Failures))
	}
	for _, f := range rep.Failures {
		if f.Step != StepUpdate || f.Err == nil {
			t.Errorf("failure = %+v", f)
		}
	}
	if got := w.labels[store.RawKeywordResults]["keyword 119"]; got != "general" {
		t.Errorf("last keyword label = %q", got)
	}
}

func TestPersist_CacheFailureDoesNotAbort(t *testing.T) {
	w := newFakeWriter()
	w.cacheErr = errors.New("db locked")

	rep := New(w, 0).Persist(context.Background(), 1, categoriesOf(3))
	if len(rep.Failures) != 1 || rep.Failures[0].Step != StepCache {
		t.Fatalf("failures = %+v", rep.Failures)
	}
	if w.calls.Load() != 6 {
		t.Errorf("update calls = %d, want 6", w.calls.Load())
	}
}

func TestPersist_BatchConcurrencyBounded(t *testing.T) {
	w := newFakeWriter()
	w.release = make(chan struct{})
	done := make(chan *Report)
	go func() { done <- New(w, 5).Persist(context.Background(), 1, categoriesOf(12)) }()

	// Each batch of 5 assignments runs 10 updates at once; release them one
	// at a time so a later batch could only start early if batching leaked.
	for i := 0; i < 24; i++ {
		w.release <- struct{}{}
	}
	rep := <-done

	if got := w.maxFlight.Load(); got > 10 {
		t.Errorf("max concurrent updates = %d, want <= 10", got)
	}
	if !reflect.DeepEqual(rep.Batches, []int{5, 5, 2}) {
		t.Errorf("batches = %v", rep.Batches)
	}
}

func TestAssignments(t *testing.T) {
	cats := []models.Category{
		{ID: "a", Keywords: []string{"Laptop", "Çanta"}},
		{ID: "b", Keywords: []string{"mouse", "LAPTOP"}},
	}
	got := Assignments(cats)
	want := []Assignment{
		{Keyword: "laptop", Category: "b"},
		{Keyword: "çanta", Category: "a"},
		{Keyword: "mouse", Category: "b"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Assignments = %+v, want %+v", got, want)
	}
}

func TestPersist_Empty(t *testing.T) {
	w := newFakeWriter()
	rep := New(w, 50).Persist(context.Background(), 1, nil)
	if !rep.OK() || len(rep.Batches) != 0 || rep.Attempted != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestPersist_AgainstSQLite(t *testing.T) {
	f := t.TempDir() + "/kwcat.db"
	db, err := store.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	id, _ := db.CreateProject(ctx, "p", "")
	for _, table := range store.ResultTables {
		_ = db.UpsertKeywordResult(ctx, table, id, models.KeywordRecord{Text: "Laptop Fiyatı"})
	}

	cats := []models.Category{{ID: "price", Name: "Fiyat", Icon: "tag", Keywords: []string{"laptop fiyatı"}}}
	rep := New(db, 50).Persist(ctx, id, cats)
	if !rep.OK() {
		t.Fatalf("failures = %+v", rep.Failures)
	}
	for _, table := range store.ResultTables {
		if got, _ := db.KeywordCategory(ctx, table, id, "Laptop Fiyatı"); got != "price" {
			t.Errorf("%s category = %q, want price", table, got)
		}
	}
	st, _ := db.ProjectState(ctx, id)
	if !st.Cache.Hit() {
		t.Errorf("cache not saved")
	}
}

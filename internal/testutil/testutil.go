// Package testutil provides shared test helpers for databases and loggers.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/kwcat/internal/models"
	"github.com/starford/kwcat/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "kwcat-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestProject creates a project and seeds both result tables with texts.
func TestProject(t *testing.T, db *store.DB, topic string, texts ...string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := db.CreateProject(ctx, "test project", topic)
	if err != nil {
		t.Fatal(err)
	}
	for _, text := range texts {
		for _, table := range store.ResultTables {
			if err := db.UpsertKeywordResult(ctx, table, id, models.KeywordRecord{Text: text}); err != nil {
				t.Fatal(err)
			}
		}
	}
	return id
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

package store

import (
	"context"

	"github.com/starford/kwcat/internal/aicat"
	"github.com/starford/kwcat/internal/models"
)

// Repository is the storage surface used by the categorization service.
// Consumers depend on it rather than on *DB so tests can substitute fakes.
type Repository interface {
	ProjectState(ctx context.Context, projectID int64) (*ProjectState, error)
	SaveCache(ctx context.Context, projectID int64, cats []models.Category) error
	SetKeywordCategory(ctx context.Context, table Table, projectID int64, keyword, category string) error
	RecordUsage(ctx context.Context, projectID int64, u aicat.Usage) (string, error)
	Ping() error
}

var _ Repository = (*DB)(nil)

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/kwcat/internal/aicat"
	"github.com/starford/kwcat/internal/apperr"
	"github.com/starford/kwcat/internal/models"
)

// Table names a keyword result table.
type Table string

// Result tables updated by the synchronizer.
const (
	KeywordResults    Table = "keyword_results"
	RawKeywordResults Table = "raw_keyword_results"
)

// ResultTables lists every table that carries a category label.
var ResultTables = []Table{KeywordResults, RawKeywordResults}

func (t Table) valid() bool {
	return t == KeywordResults || t == RawKeywordResults
}

// ProjectState is the categorization-relevant part of a project row.
type ProjectState struct {
	ID    int64
	Name  string
	Topic string
	Cache models.CacheEntry
}

// CreateProject inserts a project and returns its id.
func (db *DB) CreateProject(ctx context.Context, name, topic string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `INSERT INTO projects (name, topic) VALUES (?, ?)`, name, topic)
	if err != nil {
		return 0, fmt.Errorf("store: create project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: create project: %w", err)
	}
	return id, nil
}

// ProjectState loads a project's topic and categorization cache. A missing
// project yields apperr.ErrNotFound.
func (db *DB) ProjectState(ctx context.Context, projectID int64) (*ProjectState, error) {
	var (
		st   = ProjectState{ID: projectID}
		cats sql.NullString
		done any
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT name, topic, ai_categories, ai_categorization_done FROM projects WHERE id = ?`, projectID,
	).Scan(&st.Name, &st.Topic, &cats, &done)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: project %d: %w", projectID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: project state: %w", err)
	}

	st.Cache.Done = doneFlag(done)
	if cats.Valid && strings.TrimSpace(cats.String) != "" {
		if err := json.Unmarshal([]byte(cats.String), &st.Cache.Categories); err != nil {
			// An unreadable cache is treated as absent and recomputed.
			st.Cache.Categories = nil
		}
	}
	return &st, nil
}

// doneFlag normalizes the stored is-done flag, which may come back as an
// integer, a boolean, a string or raw bytes depending on how it was written.
func doneFlag(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case []byte:
		return truthyString(string(x))
	case string:
		return truthyString(x)
	default:
		return false
	}
}

func truthyString(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n != 0
	}
	return false
}

// SaveCache overwrites the project's cached categories and marks it done.
func (db *DB) SaveCache(ctx context.Context, projectID int64, cats []models.Category) error {
	if cats == nil {
		cats = []models.Category{}
	}
	data, err := json.Marshal(cats)
	if err != nil {
		return fmt.Errorf("store: marshal categories: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE projects
		SET ai_categories = ?, ai_categorization_done = 1, updated_at = ?
		WHERE id = ?
	`, string(data), time.Now().UTC(), projectID)
	if err != nil {
		return fmt.Errorf("store: save cache: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: save cache: project %d: %w", projectID, apperr.ErrNotFound)
	}
	return nil
}

// SetKeywordCategory labels every row of table whose lowercased keyword
// equals keyword. Matching no row is not an error.
func (db *DB) SetKeywordCategory(ctx context.Context, table Table, projectID int64, keyword, category string) error {
	if !table.valid() {
		return fmt.Errorf("store: unknown table %q", table)
	}
	q := `UPDATE ` + string(table) + ` SET category = ? WHERE project_id = ? AND kw_lower(keyword) = ?`
	if _, err := db.conn.ExecContext(ctx, q, category, projectID, strings.ToLower(keyword)); err != nil {
		return fmt.Errorf("store: set %s category: %w", table, err)
	}
	return nil
}

// UpsertKeywordResult inserts or replaces a keyword row in table.
func (db *DB) UpsertKeywordResult(ctx context.Context, table Table, projectID int64, rec models.KeywordRecord) error {
	if !table.valid() {
		return fmt.Errorf("store: unknown table %q", table)
	}
	q := `INSERT INTO ` + string(table) + ` (project_id, keyword, search_volume, cpc, competition)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, keyword) DO UPDATE SET
			search_volume = excluded.search_volume,
			cpc           = excluded.cpc,
			competition   = excluded.competition`
	if _, err := db.conn.ExecContext(ctx, q, projectID, rec.Text, rec.SearchVolume, rec.CostPerClick, rec.Competition); err != nil {
		return fmt.Errorf("store: upsert %s: %w", table, err)
	}
	return nil
}

// KeywordCategory returns the category label of a keyword row, or "" when
// the row is unlabelled or missing.
func (db *DB) KeywordCategory(ctx context.Context, table Table, projectID int64, keyword string) (string, error) {
	if !table.valid() {
		return "", fmt.Errorf("store: unknown table %q", table)
	}
	var cat sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT category FROM `+string(table)+` WHERE project_id = ? AND keyword = ?`, projectID, keyword,
	).Scan(&cat)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: keyword category: %w", err)
	}
	return cat.String, nil
}

// RecordUsage appends one provider call to the usage ledger and returns the
// generated run id.
func (db *DB) RecordUsage(ctx context.Context, projectID int64, u aicat.Usage) (string, error) {
	runID := uuid.NewString()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO ai_usage_log
			(run_id, project_id, provider, model, input_tokens, output_tokens, latency_ms, success, error, prompt_checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, projectID, u.Provider, u.Model, u.InputTokens, u.OutputTokens,
		u.Latency.Milliseconds(), u.Success, u.Error, u.PromptChecksum)
	if err != nil {
		return "", fmt.Errorf("store: record usage: %w", err)
	}
	return runID, nil
}

// UsageCount returns the number of ledger rows for a project.
func (db *DB) UsageCount(ctx context.Context, projectID int64) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM ai_usage_log WHERE project_id = ?`, projectID).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: usage count: %w", err)
	}
	return n, nil
}

// UsageTotal aggregates ledger rows for one provider and outcome.
type UsageTotal struct {
	Provider     string
	Success      bool
	Calls        int64
	InputTokens  int64
	OutputTokens int64
}

// UsageTotals sums the usage ledger by provider and outcome.
func (db *DB) UsageTotals(ctx context.Context) ([]UsageTotal, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT provider, success, count(*), sum(input_tokens), sum(output_tokens)
		FROM ai_usage_log
		GROUP BY provider, success
		ORDER BY provider, success
	`)
	if err != nil {
		return nil, fmt.Errorf("store: usage totals: %w", err)
	}
	defer rows.Close()

	var out []UsageTotal
	for rows.Next() {
		var t UsageTotal
		if err := rows.Scan(&t.Provider, &t.Success, &t.Calls, &t.InputTokens, &t.OutputTokens); err != nil {
			return nil, fmt.Errorf("store: usage totals: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Package models defines the domain types for kwcat.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Source tells where a categorization result came from.
type Source string

// Categorization sources.
const (
	SourceDatabase Source = "database"
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// KeywordRecord is a single search keyword with the SEO metrics supplied by
// the caller. Identity for deduplication is derived from Text, not ID.
type KeywordRecord struct {
	ID           *int64   `json:"id,omitempty"`
	Text         string   `json:"keyword"`
	SearchVolume *float64 `json:"search_volume"`
	CostPerClick *float64 `json:"cpc"`
	Competition  *string  `json:"competition"`
}

// UnmarshalJSON accepts either a bare string or an object. Objects may carry
// the keyword under "keyword" or "text".
func (k *KeywordRecord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = KeywordRecord{Text: s}
		return nil
	}

	var raw struct {
		ID           *int64   `json:"id"`
		Keyword      string   `json:"keyword"`
		Text         string   `json:"text"`
		SearchVolume *float64 `json:"search_volume"`
		CostPerClick *float64 `json:"cpc"`
		Competition  *string  `json:"competition"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("keyword record: %w", err)
	}
	text := raw.Keyword
	if text == "" {
		text = raw.Text
	}
	*k = KeywordRecord{
		ID:           raw.ID,
		Text:         text,
		SearchVolume: raw.SearchVolume,
		CostPerClick: raw.CostPerClick,
		Competition:  raw.Competition,
	}
	return nil
}

// Volume returns the search volume, treating a missing value as zero.
func (k KeywordRecord) Volume() float64 {
	if k.SearchVolume == nil {
		return 0
	}
	return *k.SearchVolume
}

// Category is a named bucket of keywords. Across one run every keyword
// appears in exactly one category.
type Category struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords"`
}

// CacheEntry is the last persisted categorization of a project.
// A nil Categories slice means nothing is cached.
type CacheEntry struct {
	Categories []Category
	Done       bool
}

// Hit reports whether the entry may be served without recomputation.
func (e CacheEntry) Hit() bool {
	return e.Done && e.Categories != nil
}

// Result is the outcome of one categorization run.
type Result struct {
	Categories         []Category
	Source             Source
	Keywords           []KeywordRecord
	KeywordsConsidered int
	OriginalCount      int
	DuplicatesRemoved  int
	Elapsed            time.Duration
	// Saved is false when any persistence step failed. Always true on a
	// cache hit.
	Saved bool
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}

// String returns a pointer to v.
func String(v string) *string {
	return &v
}

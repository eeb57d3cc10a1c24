// Package fallback implements the deterministic rule-based categorizer used
// whenever AI categorization is unavailable. It never fails.
package fallback

import (
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/starford/kwcat/internal/models"
	"github.com/starford/kwcat/internal/normalize"
)

type compiled struct {
	price, question, comparison matcher
	brand, general              Bucket
}

// Categorizer assigns keywords to a fixed set of buckets. The rule set can be
// swapped at runtime; each call to Categorize uses a single rule set.
type Categorizer struct {
	rules atomic.Pointer[compiled]
}

// New creates a Categorizer. A nil rule set selects DefaultRules.
func New(rules *RuleSet) *Categorizer {
	c := &Categorizer{}
	c.SetRules(rules)
	return c
}

// SetRules replaces the active rule set.
func (c *Categorizer) SetRules(rules *RuleSet) {
	if rules == nil {
		rules = DefaultRules()
	}
	c.rules.Store(&compiled{
		price:      compile(rules.Price),
		question:   compile(rules.Question),
		comparison: compile(rules.Comparison),
		brand:      rules.Brand,
		general:    rules.General,
	})
}

// Categorize classifies every record into exactly one bucket, by first
// matching rule. Empty buckets are omitted; keywords keep input order.
func (c *Categorizer) Categorize(records []models.KeywordRecord) []models.Category {
	r := c.rules.Load()
	buckets := []Bucket{r.price.bucket, r.question.bucket, r.comparison.bucket, r.brand, r.general}
	assigned := make([][]string, len(buckets))

	for _, rec := range records {
		padded := " " + normalize.Key(rec.Text) + " "
		var idx int
		switch {
		case r.price.match(padded):
			idx = 0
		case r.question.match(padded):
			idx = 1
		case r.comparison.match(padded):
			idx = 2
		case hasCapitalizedToken(rec.Text):
			idx = 3
		default:
			idx = 4
		}
		assigned[idx] = append(assigned[idx], rec.Text)
	}

	var out []models.Category
	for i, kws := range assigned {
		if len(kws) == 0 {
			continue
		}
		b := buckets[i]
		out = append(out, models.Category{
			ID:          b.ID,
			Name:        b.Name,
			Icon:        b.Icon,
			Description: b.Description,
			Keywords:    kws,
		})
	}
	return out
}

// hasCapitalizedToken is the brand heuristic: some token of the raw text
// starts with an upper-case letter.
func hasCapitalizedToken(text string) bool {
	for _, tok := range strings.Fields(text) {
		r, _ := utf8.DecodeRuneInString(tok)
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

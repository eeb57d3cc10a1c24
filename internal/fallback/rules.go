package fallback

import (
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/kwcat/internal/normalize"
)

// Bucket describes one fallback category and the terms that select it.
//
// Stems match the start of a token (or phrase), which tolerates Turkish
// suffixes: "fiyat" matches "fiyatı" and "fiyatları". Words must match a
// whole token (or a whole phrase).
type Bucket struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Icon        string   `yaml:"icon"`
	Description string   `yaml:"description"`
	Stems       []string `yaml:"stems"`
	Words       []string `yaml:"words"`
}

// Validate validates the bucket metadata.
func (b Bucket) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.ID, validation.Required),
		validation.Field(&b.Name, validation.Required),
		validation.Field(&b.Icon, validation.Required),
	)
}

// RuleSet is the ordered rule table of the fallback categorizer. Rules are
// evaluated price, question, comparison, brand, then general.
type RuleSet struct {
	Price      Bucket `yaml:"price"`
	Question   Bucket `yaml:"question"`
	Comparison Bucket `yaml:"comparison"`
	Brand      Bucket `yaml:"brand"`
	General    Bucket `yaml:"general"`
}

// Validate validates every bucket.
func (r *RuleSet) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Price),
		validation.Field(&r.Question),
		validation.Field(&r.Comparison),
		validation.Field(&r.Brand),
		validation.Field(&r.General),
	)
}

// DefaultRules returns the built-in Turkish/English rule set.
func DefaultRules() *RuleSet {
	return &RuleSet{
		Price: Bucket{
			ID:          "price",
			Name:        "Fiyat ve Satın Alma",
			Icon:        "tag",
			Description: "Fiyat, indirim ve satın alma niyeti taşıyan aramalar",
			Stems:       []string{"fiyat", "ucuz", "indirim", "kampanya", "ücret", "taksit", "satın al", "satılık", "price", "cheap", "discount"},
			Words:       []string{"tl", "kaç para", "kaç tl", "buy", "deal"},
		},
		Question: Bucket{
			ID:          "question",
			Name:        "Sorular",
			Icon:        "help-circle",
			Description: "Bilgi arayan soru kalıbındaki aramalar",
			Stems:       []string{"nasıl", "neden", "nedir", "nerede", "hangi"},
			Words:       []string{"ne", "mi", "mı", "mu", "mü", "kim", "kaç", "niçin", "how", "what", "why", "where", "which", "when"},
		},
		Comparison: Bucket{
			ID:          "comparison",
			Name:        "Karşılaştırma",
			Icon:        "scale",
			Description: "Ürün veya seçenekleri karşılaştıran aramalar",
			Stems:       []string{"karşılaştır", "alternatif", "fark", "compare"},
			Words:       []string{"vs", "veya", "yoksa", "ya da", "versus", "or"},
		},
		Brand: Bucket{
			ID:          "brand",
			Name:        "Markalar",
			Icon:        "award",
			Description: "Marka veya ürün adı içeren aramalar",
		},
		General: Bucket{
			ID:          "general",
			Name:        "Genel",
			Icon:        "folder",
			Description: "Diğer genel aramalar",
		},
	}
}

// LoadRules reads a YAML rule set from path. Buckets missing from the file
// keep their built-in definitions.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fallback: read rules %s: %w", path, err)
	}
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("fallback: parse rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("fallback: invalid rules %s: %w", path, err)
	}
	return rules, nil
}

// matcher is a bucket compiled for matching against comparison keys.
type matcher struct {
	bucket Bucket
	stems  []string
	words  []string
}

func compile(b Bucket) matcher {
	m := matcher{bucket: b}
	for _, s := range b.Stems {
		if k := normalize.Key(s); k != "" {
			m.stems = append(m.stems, k)
		}
	}
	for _, w := range b.Words {
		if k := normalize.Key(w); k != "" {
			m.words = append(m.words, k)
		}
	}
	return m
}

// match reports whether the padded key (" key ") hits any term.
func (m matcher) match(padded string) bool {
	for _, s := range m.stems {
		if strings.Contains(padded, " "+s) {
			return true
		}
	}
	for _, w := range m.words {
		if strings.Contains(padded, " "+w+" ") {
			return true
		}
	}
	return false
}

package fallback

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/starford/kwcat/internal/models"
)

func records(texts ...string) []models.KeywordRecord {
	out := make([]models.KeywordRecord, len(texts))
	for i, t := range texts {
		out[i] = models.KeywordRecord{Text: t}
	}
	return out
}

func byID(cats []models.Category) map[string][]string {
	out := make(map[string][]string, len(cats))
	for _, c := range cats {
		out[c.ID] = c.Keywords
	}
	return out
}

func TestCategorize_Buckets(t *testing.T) {
	c := New(nil)
	got := byID(c.Categorize(records(
		"laptop fiyatı",
		"en ucuz telefon",
		"kulaklık nasıl temizlenir",
		"iphone mu samsung mu",
		"iphone vs samsung",
		"Samsung Galaxy",
		"masaüstü bilgisayar",
	)))

	want := map[string][]string{
		"price":      {"laptop fiyatı", "en ucuz telefon"},
		"question":   {"kulaklık nasıl temizlenir", "iphone mu samsung mu"},
		"comparison": {"iphone vs samsung"},
		"brand":      {"Samsung Galaxy"},
		"general":    {"masaüstü bilgisayar"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buckets = %v\nwant %v", got, want)
	}
}

func TestCategorize_PriorityOrder(t *testing.T) {
	c := New(nil)
	// Matches price, question, comparison and brand; price wins.
	cats := c.Categorize(records("Apple fiyatı nedir vs"))
	if len(cats) != 1 || cats[0].ID != "price" {
		t.Fatalf("cats = %+v, want single price category", cats)
	}
}

func TestCategorize_OmitsEmptyBucketsAndKeepsOrder(t *testing.T) {
	c := New(nil)
	cats := c.Categorize(records("masaüstü", "telefon fiyatları"))
	if len(cats) != 2 {
		t.Fatalf("len = %d, want 2", len(cats))
	}
	if cats[0].ID != "price" || cats[1].ID != "general" {
		t.Errorf("order = %s, %s; want price, general", cats[0].ID, cats[1].ID)
	}
	if cats[0].Icon == "" || cats[0].Name == "" {
		t.Errorf("category metadata missing: %+v", cats[0])
	}
}

func TestCategorize_DiacriticInsensitive(t *testing.T) {
	c := New(nil)
	cats := c.Categorize(records("laptop fiyati", "bilgisayar nasil kurulur"))
	got := byID(cats)
	if len(got["price"]) != 1 || len(got["question"]) != 1 {
		t.Errorf("buckets = %v", got)
	}
}

func TestCategorize_WordsNeedWholeTokens(t *testing.T) {
	c := New(nil)
	// "mini" must not hit the question word "mi"; "tlc" must not hit "tl".
	cats := c.Categorize(records("mini buzdolabı", "tlc tablet"))
	if len(cats) != 1 || cats[0].ID != "general" {
		t.Errorf("cats = %+v, want only general", cats)
	}
}

func TestCategorize_Partition(t *testing.T) {
	in := records("a fiyat", "b nedir", "c vs d", "Marka", "düz", "a fiyat 2", "x")
	cats := New(nil).Categorize(in)

	seen := map[string]int{}
	for _, c := range cats {
		for _, k := range c.Keywords {
			seen[k]++
		}
	}
	if len(seen) != len(in) {
		t.Fatalf("covered %d keywords, want %d", len(seen), len(in))
	}
	for k, n := range seen {
		if n != 1 {
			t.Errorf("keyword %q appears %d times", k, n)
		}
	}
}

func TestCategorize_Deterministic(t *testing.T) {
	in := records("laptop fiyatı", "Samsung", "nedir", "vs", "düz metin")
	c := New(nil)
	a, _ := json.Marshal(c.Categorize(in))
	b, _ := json.Marshal(c.Categorize(in))
	if string(a) != string(b) {
		t.Errorf("non-deterministic output:\n%s\n%s", a, b)
	}
}

func TestCategorize_Empty(t *testing.T) {
	if cats := New(nil).Categorize(nil); len(cats) != 0 {
		t.Errorf("cats = %+v, want none", cats)
	}
}

func TestHasCapitalizedToken(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Samsung galaxy", true},
		{"galaxy Samsung", true},
		{"İstanbul otel", true},
		{"samsung", false},
		{"123 abc", false},
	}
	for _, tt := range tests {
		if got := hasCapitalizedToken(tt.in); got != tt.want {
			t.Errorf("hasCapitalizedToken(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

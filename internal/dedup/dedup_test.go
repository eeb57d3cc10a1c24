package dedup

import (
	"reflect"
	"testing"

	"github.com/starford/kwcat/internal/models"
)

func rec(text string, vol *float64) models.KeywordRecord {
	return models.KeywordRecord{Text: text, SearchVolume: vol}
}

func texts(rs []models.KeywordRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Text
	}
	return out
}

func TestDeduplicate_NoCollisions(t *testing.T) {
	in := []models.KeywordRecord{rec("a", nil), rec("b", nil), rec("c", nil)}
	res := Deduplicate(in)
	if res.Removed != 0 {
		t.Errorf("Removed = %d, want 0", res.Removed)
	}
	if got := texts(res.Records); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("records = %v", got)
	}
}

func TestDeduplicate_AccentedWinsAndKeepsMaxVolume(t *testing.T) {
	// Accented spelling has the lower volume; order must not matter.
	orders := [][]models.KeywordRecord{
		{rec("masaüstü", models.Float64(50)), rec("masaustu", models.Float64(100))},
		{rec("masaustu", models.Float64(100)), rec("masaüstü", models.Float64(50))},
	}
	for i, in := range orders {
		res := Deduplicate(in)
		if len(res.Records) != 1 {
			t.Fatalf("order %d: len = %d, want 1", i, len(res.Records))
		}
		got := res.Records[0]
		if got.Text != "masaüstü" {
			t.Errorf("order %d: text = %q, want masaüstü", i, got.Text)
		}
		if got.SearchVolume == nil || *got.SearchVolume != 100 {
			t.Errorf("order %d: volume = %v, want 100", i, got.SearchVolume)
		}
		if res.Removed != 1 {
			t.Errorf("order %d: Removed = %d, want 1", i, res.Removed)
		}
	}
}

func TestDeduplicate_IncomingAccentedVolumeFallback(t *testing.T) {
	// Max of the two is zero, so the incoming value is used as is.
	in := []models.KeywordRecord{rec("cay", models.Float64(0)), rec("çay", nil)}
	got := Deduplicate(in).Records[0]
	if got.Text != "çay" {
		t.Fatalf("text = %q", got.Text)
	}
	if got.SearchVolume != nil {
		t.Errorf("volume = %v, want nil", *got.SearchVolume)
	}
}

func TestDeduplicate_CostPerClickPreference(t *testing.T) {
	// Incoming accented: prefer incoming cpc.
	in := []models.KeywordRecord{
		{Text: "cicek", CostPerClick: models.Float64(1.5)},
		{Text: "çiçek", CostPerClick: models.Float64(2.5)},
	}
	if got := Deduplicate(in).Records[0]; *got.CostPerClick != 2.5 {
		t.Errorf("cpc = %v, want 2.5", *got.CostPerClick)
	}

	// Incoming accented without cpc: keep retained cpc.
	in = []models.KeywordRecord{
		{Text: "cicek", CostPerClick: models.Float64(1.5)},
		{Text: "çiçek"},
	}
	if got := Deduplicate(in).Records[0]; got.CostPerClick == nil || *got.CostPerClick != 1.5 {
		t.Errorf("cpc = %v, want 1.5", got.CostPerClick)
	}

	// Retained accented: prefer retained cpc.
	in = []models.KeywordRecord{
		{Text: "çiçek", CostPerClick: models.Float64(3)},
		{Text: "cicek", CostPerClick: models.Float64(1)},
	}
	if got := Deduplicate(in).Records[0]; *got.CostPerClick != 3 {
		t.Errorf("cpc = %v, want 3", *got.CostPerClick)
	}

	// Retained accented without cpc: take incoming.
	in = []models.KeywordRecord{
		{Text: "çiçek"},
		{Text: "cicek", CostPerClick: models.Float64(1)},
	}
	if got := Deduplicate(in).Records[0]; got.CostPerClick == nil || *got.CostPerClick != 1 {
		t.Errorf("cpc = %v, want 1", got.CostPerClick)
	}
}

func TestDeduplicate_NeitherAccentedHigherVolumeWins(t *testing.T) {
	in := []models.KeywordRecord{
		rec("Laptop", models.Float64(10)),
		rec("laptop", models.Float64(30)),
		rec("LAPTOP ", models.Float64(30)),
	}
	res := Deduplicate(in)
	if len(res.Records) != 1 {
		t.Fatalf("len = %d", len(res.Records))
	}
	// Tie on 30 keeps the currently retained record.
	if res.Records[0].Text != "laptop" {
		t.Errorf("text = %q, want laptop", res.Records[0].Text)
	}
	if res.Removed != 2 {
		t.Errorf("Removed = %d, want 2", res.Removed)
	}
}

func TestDeduplicate_BothAccented(t *testing.T) {
	in := []models.KeywordRecord{
		rec("Çanta", models.Float64(5)),
		rec("çanta", models.Float64(9)),
	}
	got := Deduplicate(in).Records[0]
	if got.Text != "çanta" || *got.SearchVolume != 9 {
		t.Errorf("got %q/%v, want çanta/9", got.Text, *got.SearchVolume)
	}
}

func TestDeduplicate_OrderOfFirstAppearance(t *testing.T) {
	in := []models.KeywordRecord{
		rec("b", nil),
		rec("a", models.Float64(1)),
		rec("B", models.Float64(99)),
		rec("c", nil),
	}
	got := texts(Deduplicate(in).Records)
	want := []string{"B", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestDeduplicate_DropsEmptyText(t *testing.T) {
	in := []models.KeywordRecord{rec("  ", nil), rec("x", nil)}
	res := Deduplicate(in)
	if len(res.Records) != 1 || res.Removed != 1 {
		t.Errorf("records = %v, removed = %d", texts(res.Records), res.Removed)
	}
}

func TestDeduplicate_DoesNotMutateInput(t *testing.T) {
	in := []models.KeywordRecord{
		rec("masaüstü", models.Float64(1)),
		rec("masaustu", models.Float64(7)),
	}
	_ = Deduplicate(in)
	if *in[0].SearchVolume != 1 || *in[1].SearchVolume != 7 {
		t.Errorf("input mutated: %v, %v", *in[0].SearchVolume, *in[1].SearchVolume)
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	in := []models.KeywordRecord{
		rec("masaüstü bilgisayar", nil),
		rec("masaustu bilgisayar", models.Float64(80)),
		rec("laptop fiyatı", models.Float64(5)),
		rec("Laptop Fiyati", models.Float64(50)),
		rec("oyuncu   mouse", nil),
		rec("oyuncu mouse", models.Float64(3)),
	}
	once := Deduplicate(in).Records
	twice := Deduplicate(once)
	if twice.Removed != 0 {
		t.Errorf("second pass removed %d", twice.Removed)
	}
	if !reflect.DeepEqual(once, twice.Records) {
		t.Errorf("not idempotent:\n%v\n%v", texts(once), texts(twice.Records))
	}
}

func TestDeduplicate_Scenario(t *testing.T) {
	in := []models.KeywordRecord{
		rec("masaüstü bilgisayar", nil),
		rec("masaustu bilgisayar", models.Float64(80)),
		rec("laptop fiyatı", nil),
	}
	res := Deduplicate(in)
	if res.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", res.Removed)
	}
	if got := texts(res.Records); !reflect.DeepEqual(got, []string{"masaüstü bilgisayar", "laptop fiyatı"}) {
		t.Fatalf("records = %v", got)
	}
	if v := res.Records[0].SearchVolume; v == nil || *v != 80 {
		t.Errorf("volume = %v, want 80", v)
	}
}

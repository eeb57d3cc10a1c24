// Package dedup collapses keyword records whose texts share a comparison key.
package dedup

import (
	"github.com/starford/kwcat/internal/models"
	"github.com/starford/kwcat/internal/normalize"
)

// Result holds the surviving records in first-appearance order and the
// number of input records that were folded away.
type Result struct {
	Records []models.KeywordRecord
	Removed int
}

// Deduplicate groups records by comparison key and keeps one record per key.
//
// On a collision the diacritic-bearing spelling wins and keeps the best
// search volume seen. When both or neither spelling carries locale
// characters, the record with the strictly higher volume wins.
// Records with an empty key are dropped.
func Deduplicate(records []models.KeywordRecord) Result {
	order := make([]string, 0, len(records))
	kept := make(map[string]models.KeywordRecord, len(records))

	for _, rec := range records {
		key := normalize.Key(rec.Text)
		if key == "" {
			continue
		}
		cur, ok := kept[key]
		if !ok {
			order = append(order, key)
			kept[key] = rec
			continue
		}
		kept[key] = merge(cur, rec)
	}

	out := make([]models.KeywordRecord, 0, len(order))
	for _, key := range order {
		out = append(out, kept[key])
	}
	return Result{Records: out, Removed: len(records) - len(out)}
}

// merge returns the record that survives a collision between the currently
// retained record and an incoming one. Neither argument is modified.
func merge(retained, incoming models.KeywordRecord) models.KeywordRecord {
	inAccent := normalize.HasLocaleChars(incoming.Text)
	curAccent := normalize.HasLocaleChars(retained.Text)

	switch {
	case inAccent && !curAccent:
		out := incoming
		vol := maxVolume(retained.SearchVolume, incoming.SearchVolume)
		if !truthy(vol) {
			vol = incoming.SearchVolume
		}
		out.SearchVolume = vol
		out.CostPerClick = either(incoming.CostPerClick, retained.CostPerClick)
		return out

	case curAccent && !inAccent:
		out := retained
		out.SearchVolume = maxVolume(retained.SearchVolume, incoming.SearchVolume)
		out.CostPerClick = either(retained.CostPerClick, incoming.CostPerClick)
		return out

	default:
		if incoming.Volume() > retained.Volume() {
			return incoming
		}
		return retained
	}
}

// maxVolume returns the larger of two optional volumes; nil only when both
// are nil. Missing values count as zero.
func maxVolume(a, b *float64) *float64 {
	if a == nil && b == nil {
		return nil
	}
	var av, bv float64
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	if bv > av {
		av = bv
	}
	return models.Float64(av)
}

// either returns first when it is set and non-zero, otherwise second.
func either(first, second *float64) *float64 {
	if truthy(first) {
		return first
	}
	return second
}

func truthy(v *float64) bool {
	return v != nil && *v != 0
}

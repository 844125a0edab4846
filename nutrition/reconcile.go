package nutrition

import "vidasync"

// hit is a cache row together with the text the current request used for it.
type hit struct {
	original string
	entry    vidasync.CacheEntry
}

// reconcile sorts hits and fresh entries into accepted ingredients, corrections and invalid
// items. Hits come first; each group keeps its order. Empty groups are nil.
func reconcile(hits []hit, fresh []vidasync.CacheEntry) (valid []vidasync.IngredientDetail, corrections []vidasync.UnitCorrection, invalid []string) {
	add := func(original string, e vidasync.CacheEntry, cached bool) {
		if !e.IsValidFood {
			invalid = append(invalid, original)
			return
		}

		name := original
		if e.CorrectedInput != nil {
			name = *e.CorrectedInput
			if *e.CorrectedInput != original {
				corrections = append(corrections, vidasync.UnitCorrection{Original: original, Corrected: *e.CorrectedInput})
			}
		}
		valid = append(valid, vidasync.IngredientDetail{Name: name, Nutrition: e.Macros, Cached: cached})
	}

	for _, h := range hits {
		add(h.original, h.entry, true)
	}
	for _, f := range fresh {
		add(f.OriginalInput, f, false)
	}
	return valid, corrections, invalid
}

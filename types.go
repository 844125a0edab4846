package vidasync

import (
	"net/http"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// IngredientKey is the canonical form of a food phrase used to look up and store cache rows.
type IngredientKey string

// Macros holds the four macro quantities as display strings, e.g. "180 kcal" or "12g".
type Macros struct {
	Calories string `json:"calories"`
	Protein  string `json:"protein"`
	Carbs    string `json:"carbs"`
	Fat      string `json:"fat"`
}

// EntrySource tells where a CacheEntry came from during a calculation. It is never persisted.
type EntrySource int

const (
	SourceCache EntrySource = iota
	SourceOracle
	SourceFallback
	SourceDefault
)

func (s EntrySource) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceOracle:
		return "oracle"
	case SourceFallback:
		return "fallback"
	case SourceDefault:
		return "default"
	default:
		return "unknown"
	}
}

// CacheEntry is one row of the ingredient cache.
type CacheEntry struct {
	ID             string        `json:"id,omitempty"`
	IngredientKey  IngredientKey `json:"ingredient_key"`
	OriginalInput  string        `json:"original_input"`
	CorrectedInput *string       `json:"corrected_input"`
	Macros
	IsValidFood bool        `json:"is_valid_food"`
	CreatedAt   time.Time   `json:"created_at"`
	Source      EntrySource `json:"-"`
}

// IngredientDetail is a single accepted ingredient in a calculation result.
type IngredientDetail struct {
	Name      string `json:"name"`
	Nutrition Macros `json:"nutrition"`
	Cached    bool   `json:"cached"`
}

// UnitCorrection reports that the oracle rewrote a phrase, usually to fix its unit.
type UnitCorrection struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// AggregateResult is the outcome of a nutrition calculation.
// When InvalidItems is non-empty, Nutrition and Ingredients are nil.
type AggregateResult struct {
	Nutrition    *Macros            `json:"nutrition"`
	Ingredients  []IngredientDetail `json:"ingredients"`
	Corrections  []UnitCorrection   `json:"corrections"`
	InvalidItems []string           `json:"invalidItems"`
	Error        string             `json:"error,omitempty"`
}

// Rejected reports whether the calculation produced no nutrition totals.
func (r AggregateResult) Rejected() bool {
	return r.Nutrition == nil
}

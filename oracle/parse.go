package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"vidasync"
	"vidasync/macros"
)

type wireClassification struct {
	Ingredient     string     `json:"ingredient"`
	CorrectedInput *string    `json:"corrected_input"`
	IsValidFood    *bool      `json:"is_valid_food"`
	Calories       macroField `json:"calories"`
	Protein        macroField `json:"protein"`
	Carbs          macroField `json:"carbs"`
	Fat            macroField `json:"fat"`
}

// macroField accepts "180 kcal" as well as a bare 180; models do both.
type macroField struct {
	text   string
	number *float64
}

func (f *macroField) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f.text = strings.TrimSpace(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		f.number = &n
		return nil
	}
	return fmt.Errorf("expected string or number, got %s", b)
}

func (f macroField) present() bool { return f.text != "" || f.number != nil }

func (f macroField) render(unit func(float64) string) string {
	if f.number != nil {
		return unit(*f.number)
	}
	return f.text
}

// ParseClassifications extracts the JSON answer from free model text and decodes it strictly.
func ParseClassifications(raw string, want int) ([]Classification, error) {
	return DecodeClassifications([]byte(extractJSONArray(raw)), want)
}

// DecodeClassifications decodes either a bare array or an {"ingredients": [...]} object and
// requires exactly want well-formed entries.
func DecodeClassifications(data []byte, want int) ([]Classification, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, parseErrorf(nil, "empty response")
	}

	var items []wireClassification
	if data[0] == '{' {
		var wrapped struct {
			Ingredients *[]wireClassification `json:"ingredients"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, parseErrorf(err, "decode object")
		}
		if wrapped.Ingredients == nil {
			return nil, parseErrorf(nil, "missing \"ingredients\"")
		}
		items = *wrapped.Ingredients
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, parseErrorf(err, "decode array")
	}

	if len(items) != want {
		return nil, parseErrorf(nil, "got %d classifications for %d phrases", len(items), want)
	}

	out := make([]Classification, 0, len(items))
	for i, it := range items {
		if it.IsValidFood == nil {
			return nil, parseErrorf(nil, "item %d: missing is_valid_food", i)
		}
		for name, f := range map[string]macroField{
			"calories": it.Calories, "protein": it.Protein, "carbs": it.Carbs, "fat": it.Fat,
		} {
			if !f.present() {
				return nil, parseErrorf(nil, "item %d: missing %s", i, name)
			}
		}

		var corrected *string
		if it.CorrectedInput != nil {
			if s := strings.TrimSpace(*it.CorrectedInput); s != "" {
				corrected = &s
			}
		}

		out = append(out, Classification{
			Ingredient:     it.Ingredient,
			CorrectedInput: corrected,
			IsValidFood:    *it.IsValidFood,
			Macros: vidasync.Macros{
				Calories: it.Calories.render(macros.Calories),
				Protein:  it.Protein.render(macros.Grams),
				Carbs:    it.Carbs.render(macros.Grams),
				Fat:      it.Fat.render(macros.Grams),
			},
		})
	}

	return out, nil
}

// extractJSONArray returns the text between the first '[' and the last ']', or raw unchanged.
func extractJSONArray(raw string) string {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start != -1 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// ParseTotals reads the legacy "calories: X kcal" line format. Missing lines default to zero.
func ParseTotals(raw string) (vidasync.Macros, error) {
	m := macros.Zero
	found := 0

	for _, line := range strings.Split(raw, "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		switch strings.ToLower(strings.Trim(k, " \t-*")) {
		case "calories":
			m.Calories = v
		case "protein":
			m.Protein = v
		case "carbs":
			m.Carbs = v
		case "fat":
			m.Fat = v
		default:
			continue
		}
		found++
	}

	if found == 0 {
		return vidasync.Macros{}, parseErrorf(nil, "no macro lines in legacy response")
	}
	return m, nil
}

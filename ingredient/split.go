package ingredient

import (
	"strings"

	"vidasync"
)

// delimiters are matched as plain substrings. " e " and " com " are Portuguese for "and" / "with";
// the surrounding spaces keep words such as "leite" or "comida" intact.
var delimiters = []string{",", "+", " e ", " com "}

// Split breaks a free-text food description into trimmed, non-blank phrases in input order.
func Split(text string) []string {
	var (
		phrases []string
		start   int
	)

	for i := 0; i < len(text); {
		d := delimiterAt(text, i)
		if d == "" {
			i++
			continue
		}
		phrases = appendPhrase(phrases, text[start:i])
		i += len(d)
		start = i
	}
	phrases = appendPhrase(phrases, text[start:])

	return phrases
}

func delimiterAt(text string, i int) string {
	for _, d := range delimiters {
		if strings.HasPrefix(text[i:], d) {
			return d
		}
	}
	return ""
}

func appendPhrase(phrases []string, raw string) []string {
	if p := strings.TrimSpace(raw); p != "" {
		return append(phrases, p)
	}
	return phrases
}

// NormalizeKey trims, lower-cases and collapses inner whitespace so that phrases differing only
// in case or spacing share one cache row.
func NormalizeKey(phrase string) vidasync.IngredientKey {
	return vidasync.IngredientKey(strings.Join(strings.Fields(strings.ToLower(phrase)), " "))
}

// Phrase is an ingredient phrase paired with its cache key.
type Phrase struct {
	Key      vidasync.IngredientKey
	Original string
}

// Index pairs each phrase with its key. Phrases that normalize to the same key collapse into one
// Phrase kept at the position of the first occurrence and carrying the most recent literal text.
func Index(phrases []string) []Phrase {
	out := make([]Phrase, 0, len(phrases))
	pos := make(map[vidasync.IngredientKey]int, len(phrases))

	for _, p := range phrases {
		key := NormalizeKey(p)
		if i, ok := pos[key]; ok {
			out[i].Original = p
			continue
		}
		pos[key] = len(out)
		out = append(out, Phrase{Key: key, Original: p})
	}

	return out
}

// Keys returns the keys of the indexed phrases in order.
func Keys(phrases []Phrase) []vidasync.IngredientKey {
	keys := make([]vidasync.IngredientKey, len(phrases))
	for i, p := range phrases {
		keys[i] = p.Key
	}
	return keys
}

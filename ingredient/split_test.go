package ingredient

import (
	"testing"

	"vidasync"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "comma and the word e",
			input:    "2 ovos, 1 banana e 100ml de leite",
			expected: []string{"2 ovos", "1 banana", "100ml de leite"},
		},
		{
			name:     "plus sign and the word com",
			input:    "200g de arroz + feijão com 100g de frango",
			expected: []string{"200g de arroz", "feijão", "100g de frango"},
		},
		{
			name:     "words containing delimiters stay intact",
			input:    "1 copo de leite, comida caseira",
			expected: []string{"1 copo de leite", "comida caseira"},
		},
		{
			name:     "blank fragments are dropped",
			input:    " , 1 maçã ,, + ",
			expected: []string{"1 maçã"},
		},
		{
			name:     "single phrase",
			input:    "  2 ovos mexidos  ",
			expected: []string{"2 ovos mexidos"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
		{
			name:     "whitespace only",
			input:    "   \t ",
			expected: nil,
		},
		{
			name:     "delimiters only",
			input:    ", + ,",
			expected: nil,
		},
		{
			name:     "upper case E is not a delimiter",
			input:    "pão E manteiga",
			expected: []string{"pão E manteiga"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Split(tt.input))
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		input    string
		expected vidasync.IngredientKey
	}{
		{"2 Ovos Mexidos", "2 ovos mexidos"},
		{"  100G   de\tARROZ  ", "100g de arroz"},
		{"banana", "banana"},
		{"Maçã  Verde", "maçã verde"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeKey(tt.input))
		})
	}
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	inputs := []string{
		"2 ovos mexidos",
		"  MUITO   espaço  ",
		"Café\tCOM\nleite",
		"ÁGUA de Coco",
		"x",
	}

	for _, in := range inputs {
		once := NormalizeKey(in)
		twice := NormalizeKey(string(once))
		assert.Equal(t, once, twice, "normalizing %q twice changed the key", in)
	}
}

func TestIndex(t *testing.T) {
	t.Run("distinct phrases keep order", func(t *testing.T) {
		got := Index([]string{"2 Ovos", "1 banana"})
		assert.Equal(t, []Phrase{
			{Key: "2 ovos", Original: "2 Ovos"},
			{Key: "1 banana", Original: "1 banana"},
		}, got)
	})

	t.Run("phrases sharing a key collapse", func(t *testing.T) {
		got := Index([]string{"1 Banana", "2 ovos", "1  banana"})
		assert.Equal(t, []Phrase{
			{Key: "1 banana", Original: "1  banana"},
			{Key: "2 ovos", Original: "2 ovos"},
		}, got)
	})

	t.Run("keys helper", func(t *testing.T) {
		phrases := Index([]string{"A", "b"})
		assert.Equal(t, []vidasync.IngredientKey{"a", "b"}, Keys(phrases))
	})
}

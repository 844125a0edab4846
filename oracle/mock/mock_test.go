package mock

import (
	"context"
	"testing"

	"vidasync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimator_Classify(t *testing.T) {
	e := NewEstimator()

	got, err := e.Classify(context.Background(), []string{"2 ovos mexidos", "1 banana", "100g de cadeira", "250ml de arroz", "200ml de leite", "1 prato de sopa"})
	require.NoError(t, err)
	require.Len(t, got, 6)

	assert.Equal(t, "2 ovos mexidos", got[0].Ingredient)
	assert.True(t, got[0].IsValidFood)
	assert.Equal(t, vidasync.Macros{Calories: "140 kcal", Protein: "12g", Carbs: "1g", Fat: "10g"}, got[0].Macros)
	assert.Equal(t, "2 ovos mexidos", *got[0].CorrectedInput)

	assert.Equal(t, vidasync.Macros{Calories: "90 kcal", Protein: "1g", Carbs: "23g", Fat: "0.3g"}, got[1].Macros)

	assert.False(t, got[2].IsValidFood)
	assert.Equal(t, "0 kcal", got[2].Calories)

	assert.Equal(t, "250g de arroz", *got[3].CorrectedInput)
	assert.Equal(t, "325 kcal", got[3].Calories)

	assert.Equal(t, "200ml de leite", *got[4].CorrectedInput)
	assert.Equal(t, "122 kcal", got[4].Calories)

	assert.True(t, got[5].IsValidFood, "unknown foods are still food")
	assert.Equal(t, "0 kcal", got[5].Calories)
}

func TestEstimator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEstimator().Classify(ctx, []string{"1 banana"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewEstimator().EstimateTotals(ctx, "1 banana")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEstimator_EstimateTotals(t *testing.T) {
	got, err := NewEstimator().EstimateTotals(context.Background(), "1 banana")
	require.NoError(t, err)
	assert.Equal(t, "90 kcal", got.Calories)
}

func TestQuantity(t *testing.T) {
	tests := []struct {
		phrase string
		qty    float64
		unit   string
	}{
		{"2 ovos", 2, ""},
		{"100g de arroz", 100, "g"},
		{"250 ml de leite", 250, "ml"},
		{"1,5 kg de frango", 1.5, "kg"},
		{"2 gemas", 2, ""},
		{"banana", 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			qty, unit := quantity(tt.phrase)
			assert.Equal(t, tt.qty, qty)
			assert.Equal(t, tt.unit, unit)
		})
	}
}

// Package mock is a deterministic, offline oracle.Estimator. It knows a handful of foods and is
// meant for local runs and tests, not for real nutrition advice.
package mock

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"vidasync"
	"vidasync/macros"
	"vidasync/oracle"
)

type food struct {
	name                          string
	calories, protein, carbs, fat float64
	// perHundred foods are quoted per 100g or 100ml; the others per unit.
	perHundred bool
	// solid foods measured in ml get their unit corrected to grams.
	solid bool
}

var foods = []food{
	{name: "ovo", calories: 70, protein: 6, carbs: 0.5, fat: 5},
	{name: "banana", calories: 90, protein: 1, carbs: 23, fat: 0.3},
	{name: "maçã", calories: 52, protein: 0.3, carbs: 14, fat: 0.2},
	{name: "pão", calories: 140, protein: 4.5, carbs: 28, fat: 1.5},
	{name: "arroz", calories: 130, protein: 2.5, carbs: 28, fat: 0.3, perHundred: true, solid: true},
	{name: "feijão", calories: 76, protein: 4.8, carbs: 14, fat: 0.5, perHundred: true, solid: true},
	{name: "frango", calories: 165, protein: 31, fat: 3.6, perHundred: true, solid: true},
	{name: "aveia", calories: 389, protein: 17, carbs: 66, fat: 7, perHundred: true, solid: true},
	{name: "leite", calories: 61, protein: 3.2, carbs: 4.8, fat: 3.3, perHundred: true},
	{name: "suco", calories: 45, protein: 0.7, carbs: 10, fat: 0.2, perHundred: true},
}

var nonFoods = []string{"cadeira", "mesa", "celular", "sapato", "pedra"}

var quantityRegex = regexp.MustCompile(`^\s*([0-9]+(?:[.,][0-9]+)?)\s*(g|ml|kg|l)?\b`)

type Estimator struct{}

func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) Classify(ctx context.Context, phrases []string) ([]oracle.Classification, error) {
	slog.Info("MOCK_ORACLE: Classify invoked", "phrases", len(phrases))

	out := make([]oracle.Classification, 0, len(phrases))
	for _, p := range phrases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, classify(p))
	}
	return out, nil
}

func (e *Estimator) EstimateTotals(ctx context.Context, phrase string) (vidasync.Macros, error) {
	if err := ctx.Err(); err != nil {
		return vidasync.Macros{}, err
	}
	return classify(phrase).Macros, nil
}

func classify(phrase string) oracle.Classification {
	lower := strings.ToLower(phrase)
	corrected := phrase
	c := oracle.Classification{Ingredient: phrase, CorrectedInput: &corrected, IsValidFood: true, Macros: macros.Zero}

	for _, nf := range nonFoods {
		if strings.Contains(lower, nf) {
			c.IsValidFood = false
			return c
		}
	}

	qty, unit := quantity(lower)
	for _, f := range foods {
		if !strings.Contains(lower, f.name) {
			continue
		}

		factor := qty
		if f.perHundred {
			switch unit {
			case "kg", "l":
				factor = qty * 10
			case "g", "ml":
				factor = qty / 100
			}
		}
		if f.solid && unit == "ml" {
			corrected = strings.Replace(phrase, "ml", "g", 1)
		}

		c.Macros = vidasync.Macros{
			Calories: macros.Calories(f.calories * factor),
			Protein:  macros.Grams(f.protein * factor),
			Carbs:    macros.Grams(f.carbs * factor),
			Fat:      macros.Grams(f.fat * factor),
		}
		return c
	}
	return c
}

// quantity returns the leading amount and unit of a phrase, 1 and "" when absent.
func quantity(phrase string) (float64, string) {
	m := quantityRegex.FindStringSubmatch(phrase)
	if m == nil {
		return 1, ""
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 1, ""
	}
	return v, m[2]
}

// Package macros sums and renders macro quantity strings. It is the only place that decides how
// a macro total is printed, for single calculations and for meal or day summaries alike.
package macros

import (
	"math"
	"regexp"
	"strconv"

	"vidasync"
)

var numberRegex = regexp.MustCompile(`[0-9.]+`)

// Zero is the all-zero macro set.
var Zero = vidasync.Macros{
	Calories: "0 kcal",
	Protein:  "0g",
	Carbs:    "0g",
	Fat:      "0g",
}

// ExtractNumber returns the first run of digits and dots in s as a number, or 0.
func ExtractNumber(s string) float64 {
	m := numberRegex.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatNumber renders integral values without a decimal point and everything else with one decimal.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func Calories(v float64) string { return FormatNumber(v) + " kcal" }

func Grams(v float64) string { return FormatNumber(v) + "g" }

// Sum adds every field across items.
func Sum(items []vidasync.Macros) vidasync.Macros {
	var cal, pro, carb, fat float64
	for _, m := range items {
		cal += ExtractNumber(m.Calories)
		pro += ExtractNumber(m.Protein)
		carb += ExtractNumber(m.Carbs)
		fat += ExtractNumber(m.Fat)
	}

	return vidasync.Macros{
		Calories: Calories(cal),
		Protein:  Grams(pro),
		Carbs:    Grams(carb),
		Fat:      Grams(fat),
	}
}

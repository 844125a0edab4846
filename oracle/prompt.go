package oracle

import "strings"

// ToolName is the tool providers with structured output force the model to call.
const ToolName = "report_ingredients"

// UserMessage lists the phrases one per line, in order.
func UserMessage(phrases []string) string {
	var b strings.Builder
	for i, p := range phrases {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(p)
	}
	return b.String()
}

// SystemPrompt asks for the same object ClassificationSchema describes, so providers that enforce
// the schema as a response format get consistent instructions.
const SystemPrompt = `You are a professional nutritionist. You receive a list of foods, one per line, and reply with ONLY a JSON object of the form {"ingredients": [...]}.

For EACH line, in the same order, add one entry to "ingredients" with:
- "ingredient": the food exactly as it was written
- "corrected_input": the corrected phrasing (e.g. "250ml de arroz" -> "250g de arroz", rice is measured in grams). If it is already correct, repeat the original.
- "is_valid_food": true if it is a real edible food, false if it is not edible (e.g. "cadeira", "mesa", "celular")
- "calories": "X kcal" for the informed quantity
- "protein": "Xg"
- "carbs": "Xg"
- "fat": "Xg"

If is_valid_food is false, use "0 kcal", "0g", "0g", "0g" for the macros.

RULES:
1. Rice, beans and flours are ALWAYS measured in grams, never ml.
2. Milk, juices and water are correctly measured in ml.
3. Anything that is not edible has is_valid_food = false.
4. Return exactly one entry per input line.
5. Answer with the JSON object only: no extra text, no markdown.

Example:
{"ingredients": [
  {"ingredient": "200g de arroz", "corrected_input": "200g de arroz", "is_valid_food": true, "calories": "260 kcal", "protein": "5g", "carbs": "57g", "fat": "0.5g"},
  {"ingredient": "100g de cadeira", "corrected_input": "100g de cadeira", "is_valid_food": false, "calories": "0 kcal", "protein": "0g", "carbs": "0g", "fat": "0g"}
]}
`

// ToolPrompt replaces the output instructions of SystemPrompt for providers that return the
// answer through the ToolName tool.
const ToolPrompt = `You are a professional nutritionist. You receive a list of foods, one per line.
Call the ` + ToolName + ` tool exactly once with one entry per line, in the same order.

- "corrected_input" fixes units when needed (rice, beans and flours are measured in grams; milk, juices and water in ml). Repeat the original if it is already correct.
- "is_valid_food" is false for anything that is not edible (e.g. "cadeira", "mesa", "celular"); use "0 kcal", "0g", "0g", "0g" for its macros.
- Macros are strings for the informed quantity: "X kcal" for calories, "Xg" for the others.
`

const LegacySystemPrompt = `You are a nutrition calculator. Add up all the informed foods and answer ONLY in this exact format, nothing else:
calories: X kcal
protein: Xg
carbs: Xg
fat: Xg
`

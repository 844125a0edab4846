package oracle

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// ClassificationSchema describes the structured answer: an object with an "ingredients" array.
func ClassificationSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"ingredients": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"ingredient":      {Type: "string", Description: "the food exactly as written"},
						"corrected_input": {Type: "string", Description: "corrected phrasing, or the original when already correct"},
						"is_valid_food":   {Type: "boolean"},
						"calories":        {Type: "string", Description: "e.g. \"180 kcal\""},
						"protein":         {Type: "string", Description: "e.g. \"12g\""},
						"carbs":           {Type: "string", Description: "e.g. \"1g\""},
						"fat":             {Type: "string", Description: "e.g. \"10g\""},
					},
					Required: []string{"ingredient", "corrected_input", "is_valid_food", "calories", "protein", "carbs", "fat"},
				},
			},
		},
		Required: []string{"ingredients"},
	}
}

// SchemaMap returns ClassificationSchema as a plain JSON map, the form SDK document types and
// HTTP request bodies expect.
func SchemaMap() (map[string]any, error) {
	b, err := json.Marshal(ClassificationSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal classification schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal classification schema: %w", err)
	}
	return m, nil
}

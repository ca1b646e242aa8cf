package schema

// Decision accepts the gameplay response shape. Field types are loose
// because models return numbers as strings and single actions as bare
// strings; at least one known field must be present so that an unrelated
// object found in prose is not mistaken for a decision.
var Decision = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"reasoning": map[string]any{"type": []string{"string", "null"}},
		"actions": map[string]any{
			"type":  []string{"array", "string", "null"},
			"items": map[string]any{"type": "string"},
		},
		"memory_updates": map[string]any{
			"type": []string{"object", "null"},
			"properties": map[string]any{
				"add":    map[string]any{"type": []string{"array", "string", "null"}},
				"remove": map[string]any{"type": []string{"array", "integer", "string", "null"}},
				"update": map[string]any{"type": []string{"object", "null"}},
			},
		},
	},
	"anyOf": []any{
		map[string]any{"required": []string{"actions"}},
		map[string]any{"required": []string{"reasoning"}},
		map[string]any{"required": []string{"memory_updates"}},
	},
}

// ToolPlan accepts the tool selection response shape.
var ToolPlan = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"reasoning": map[string]any{"type": []string{"string", "null"}},
		"tool_calls": map[string]any{
			"type": []string{"array", "null"},
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tool": map[string]any{"type": "string"},
				},
			},
		},
	},
	"anyOf": []any{
		map[string]any{"required": []string{"tool_calls"}},
		map[string]any{"required": []string{"reasoning"}},
	},
}

// MemoryList accepts a condensed memory, either a bare array of strings
// or an object with a "memory" array.
var MemoryList = map[string]any{
	"oneOf": []any{
		map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		map[string]any{
			"type":     "object",
			"required": []string{"memory"},
			"properties": map[string]any{
				"memory": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
	},
}

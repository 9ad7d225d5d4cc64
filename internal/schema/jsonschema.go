package schema

// JSONSchema renders the schema as a strict JSON Schema for structured LLM
// output. With citations on, every leaf becomes
// {"value": <leaf>, "citations": [{"page": int, "lines": [int]}]}.
func (s *Schema) JSONSchema(withCitations bool) map[string]any {
	return objectSchema(s.Fields, withCitations)
}

func objectSchema(fields []Field, withCitations bool) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f, withCitations)
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func fieldSchema(f Field, withCitations bool) map[string]any {
	if f.IsLeaf() {
		leaf := leafSchema(f)
		if !withCitations {
			return leaf
		}
		wrapped := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"value":     leaf,
				"citations": CitationListSchema(),
			},
			"required":             []string{"value", "citations"},
			"additionalProperties": false,
		}
		if f.Description != "" {
			wrapped["description"] = f.Description
		}
		return wrapped
	}

	var out map[string]any
	switch f.Type {
	case Array:
		out = map[string]any{
			"type":  "array",
			"items": fieldSchema(*f.Items, withCitations),
		}
	default:
		out = objectSchema(f.Fields, withCitations)
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	return out
}

// leafSchema renders scalars and scalar arrays. Values are nullable so the
// model can report a field as absent.
func leafSchema(f Field) map[string]any {
	var out map[string]any
	switch f.Type {
	case Array:
		item := Field{Type: String}
		if f.Items != nil {
			item = *f.Items
		}
		out = map[string]any{
			"type":  []any{"array", "null"},
			"items": map[string]any{"type": string(item.Type)},
		}
	case Object:
		out = map[string]any{"type": []any{"object", "null"}}
	default:
		out = map[string]any{"type": []any{string(f.Type), "null"}}
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	return out
}

// CitationListSchema is the JSON Schema of the citations the model returns.
func CitationListSchema() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"page": map[string]any{"type": "integer"},
				"lines": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "integer"},
				},
			},
			"required":             []string{"page", "lines"},
			"additionalProperties": false,
		},
	}
}

package extractor

import (
	"encoding/json"
	"strings"
)

// DefaultSystemPrompt is sent when the config does not override it.
const DefaultSystemPrompt = `You are an expert in document extraction and information extraction from documents.

INSTRUCTIONS:
1. Read the whole document before answering
2. Extract exactly what the document states; do not invent or infer values
3. Use null for any field the document does not contain
4. Respond with ONLY a JSON object matching the output schema`

const citationInstructions = `
5. For every field, return {"value": ..., "citations": [...]} where each citation
   gives the zero-based page number and the line numbers where the value appears.
   Example: [{"page": 0, "lines": [10, 11]}, {"page": 1, "lines": [20]}]
   Line numbers are the numbers before each line inside the <page> blocks.`

// DefaultUserPrompt is the user prompt template. {content_text} and
// {schema} are replaced with the formatted document and the JSON schema.
const DefaultUserPrompt = `Please extract the information from the document below.

DOCUMENT:
{content_text}

OUTPUT SCHEMA:
{schema}`

func systemPrompt(override string, citations bool) string {
	if override != "" {
		return override
	}
	if citations {
		return DefaultSystemPrompt + citationInstructions
	}
	return DefaultSystemPrompt
}

func userPrompt(template, content string, jsonSchema map[string]any) (string, error) {
	if template == "" {
		template = DefaultUserPrompt
	}
	schemaJSON, err := json.MarshalIndent(jsonSchema, "", "  ")
	if err != nil {
		return "", err
	}
	r := strings.NewReplacer("{content_text}", content, "{schema}", string(schemaJSON))
	return r.Replace(template), nil
}

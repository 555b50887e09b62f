package extractor

import "encoding/json"

// BuildExtractionPrompt returns the extraction prompt for a document type's
// JSON schema.
func BuildExtractionPrompt(schema json.RawMessage) string {
	return `You are a document data extraction assistant. Analyze the provided document and extract its data into a JSON object conforming to the JSON Schema below.

IMPORTANT INSTRUCTIONS:
- Extract every field the schema asks for. Use null for values genuinely absent from the document.
- Do not invent data. Copy values exactly as they appear, normalizing only whitespace.
- The document may span multiple pages; consider all of them.

Return ONLY valid JSON with no markdown formatting, no code fences, no explanation — just the raw JSON object.

JSON Schema:
` + string(schema)
}

// BuildValidationPrompt returns the pre-extraction validation prompt. The
// model must answer with a small JSON object so the result is machine-checkable.
func BuildValidationPrompt(instructions string) string {
	return `You are a document validation assistant. Decide whether the provided document satisfies the following expectation:

` + instructions + `

Return ONLY a JSON object of the form {"matches": true|false, "reason": "<one short sentence>"} with no markdown formatting and no explanation outside the JSON.`
}

package port

import (
	"context"
	"encoding/json"
)

// ExtractInput carries the data needed for one extraction call.
type ExtractInput struct {
	FileBytes   []byte
	ContentType string
	Schema      json.RawMessage
	ModelName   string
}

// Extractor abstracts the AI model capability: given document bytes and a
// schema, produce structured data. Streaming mode emits the model's raw text
// incrementally through the emit callback; an error returned from emit stops
// the stream and is propagated.
type Extractor interface {
	Extract(ctx context.Context, input ExtractInput) (json.RawMessage, error)
	ExtractStream(ctx context.Context, input ExtractInput, emit func(chunk string) error) error
	// Validate asks the model whether the document matches the expectations
	// stated in instructions. A false result carries a human-readable reason.
	Validate(ctx context.Context, input ExtractInput, instructions string) (bool, string, error)
}

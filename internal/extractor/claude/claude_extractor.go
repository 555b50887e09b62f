package claude

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docstream/internal/config"
	"docstream/internal/extractor"
	"docstream/internal/jsonfix"
	"docstream/internal/port"
)

const (
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"

	maxTokens = 16384
)

// Extractor implements port.Extractor using the Anthropic Messages API.
type Extractor struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewExtractor creates a Claude-based extractor from config.
func NewExtractor(cfg *config.ExtractorConfig) *Extractor {
	return newExtractor(cfg, apiURL)
}

// NewExtractorWithEndpoint creates an extractor pointing at a custom API
// endpoint (for testing).
func NewExtractorWithEndpoint(cfg *config.ExtractorConfig, endpoint string) *Extractor {
	return newExtractor(cfg, endpoint)
}

func newExtractor(cfg *config.ExtractorConfig, endpoint string) *Extractor {
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Extractor{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *Extractor) modelFor(input port.ExtractInput) string {
	if input.ModelName != "" {
		return input.ModelName
	}
	return e.model
}

// Extract performs a single blocking extraction call and returns the final
// structured object.
func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (json.RawMessage, error) {
	prompt := extractor.BuildExtractionPrompt(input.Schema)
	body, err := e.requestBody(input, prompt, false)
	if err != nil {
		return nil, err
	}

	respBody, err := e.call(ctx, body)
	if err != nil {
		return nil, err
	}

	text, err := responseText(respBody)
	if err != nil {
		return nil, err
	}
	return terminalJSON(text)
}

// ExtractStream performs a streaming extraction call, emitting each raw text
// delta through emit. An error returned by emit aborts the stream.
func (e *Extractor) ExtractStream(ctx context.Context, input port.ExtractInput, emit func(chunk string) error) error {
	prompt := extractor.BuildExtractionPrompt(input.Schema)
	body, err := e.requestBody(input, prompt, true)
	if err != nil {
		return err
	}

	req, err := e.newRequest(ctx, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling anthropic API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return readEventStream(resp.Body, emit)
}

// Validate asks the model a yes/no question about the document, phrased by
// the document type's validation instructions.
func (e *Extractor) Validate(ctx context.Context, input port.ExtractInput, instructions string) (bool, string, error) {
	prompt := extractor.BuildValidationPrompt(instructions)
	body, err := e.requestBody(input, prompt, false)
	if err != nil {
		return false, "", err
	}

	respBody, err := e.call(ctx, body)
	if err != nil {
		return false, "", err
	}

	text, err := responseText(respBody)
	if err != nil {
		return false, "", err
	}

	verdictJSON, err := terminalJSON(text)
	if err != nil {
		return false, "", fmt.Errorf("parsing validation verdict: %w", err)
	}
	var verdict struct {
		Matches bool   `json:"matches"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(verdictJSON, &verdict); err != nil {
		return false, "", fmt.Errorf("parsing validation verdict: %w", err)
	}
	return verdict.Matches, verdict.Reason, nil
}

func (e *Extractor) requestBody(input port.ExtractInput, prompt string, stream bool) ([]byte, error) {
	contentBlocks, err := buildContentBlocks(input, prompt)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]interface{}{
		"model":      e.modelFor(input),
		"max_tokens": maxTokens,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": contentBlocks,
			},
		},
	}
	if stream {
		reqBody["stream"] = true
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return bodyBytes, nil
}

func (e *Extractor) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	return req, nil
}

func (e *Extractor) call(ctx context.Context, body []byte) ([]byte, error) {
	req, err := e.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling anthropic API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func buildContentBlocks(input port.ExtractInput, prompt string) ([]map[string]interface{}, error) {
	encoded := base64.StdEncoding.EncodeToString(input.FileBytes)
	var blocks []map[string]interface{}

	switch input.ContentType {
	case "application/pdf":
		blocks = append(blocks, map[string]interface{}{
			"type": "document",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": "application/pdf",
				"data":       encoded,
			},
		})
	case "image/jpeg", "image/png":
		blocks = append(blocks, map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": input.ContentType,
				"data":       encoded,
			},
		})
	default:
		return nil, fmt.Errorf("unsupported content type for extraction: %s", input.ContentType)
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "text",
		"text": prompt,
	})

	return blocks, nil
}

// apiResponse models the non-streaming Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func responseText(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	if resp.StopReason == "max_tokens" {
		return "", fmt.Errorf("output truncated (stop_reason: max_tokens): response exceeded output token limit")
	}
	return resp.Content[0].Text, nil
}

// terminalJSON parses the model's terminal text strictly, then through the
// repair pass. Unparsable text surfaces as jsonfix.NonJSONError.
func terminalJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}
	repaired := jsonfix.Repair(trimmed)
	if json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired), nil
	}
	return nil, &jsonfix.NonJSONError{Raw: text}
}

// streamEvent models one SSE data payload from the streaming Messages API.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// readEventStream consumes the SSE body line by line, forwarding text deltas.
func readEventStream(body io.Reader, emit func(chunk string) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			// Skip malformed keep-alive payloads rather than kill the stream.
			continue
		}

		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				if err := emit(ev.Delta.Text); err != nil {
					return err
				}
			}
		case "error":
			return fmt.Errorf("anthropic stream error (%s): %s", ev.Error.Type, ev.Error.Message)
		case "message_stop":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

package extractor_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"docstream/internal/config"
	claude "docstream/internal/extractor/claude"
	"docstream/internal/jsonfix"
	"docstream/internal/port"
)

func newTestExtractor(serverURL string) *claude.Extractor {
	cfg := &config.ExtractorConfig{
		Provider:     "claude",
		APIKey:       "test-api-key",
		DefaultModel: "claude-sonnet-4-20250514",
		TimeoutSecs:  30,
	}
	return claude.NewExtractorWithEndpoint(cfg, serverURL)
}

func textResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
		"stop_reason": "end_turn",
	}
}

func pdfInput() port.ExtractInput {
	return port.ExtractInput{
		FileBytes:   []byte("%PDF-1.4 test content"),
		ContentType: "application/pdf",
		Schema:      json.RawMessage(`{"type": "object"}`),
	}
}

func TestExtractor_Extract_PDF_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])

		messages := reqBody["messages"].([]interface{})
		assert.Len(t, messages, 1)
		content := messages[0].(map[string]interface{})["content"].([]interface{})
		assert.Len(t, content, 2)
		assert.Equal(t, "document", content[0].(map[string]interface{})["type"])
		assert.Equal(t, "text", content[1].(map[string]interface{})["type"])

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(textResponse(`{"invoice_number": "INV-001"}`))
	}))
	defer server.Close()

	ext := newTestExtractor(server.URL)

	result, err := ext.Extract(context.Background(), pdfInput())
	assert.NoError(t, err)

	var data map[string]interface{}
	assert.NoError(t, json.Unmarshal(result, &data))
	assert.Equal(t, "INV-001", data["invoice_number"])
}

func TestExtractor_Extract_ImageUsesImageBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		content := reqBody["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		block := content[0].(map[string]interface{})
		assert.Equal(t, "image", block["type"])
		assert.Equal(t, "image/png", block["source"].(map[string]interface{})["media_type"])

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(textResponse(`{}`))
	}))
	defer server.Close()

	ext := newTestExtractor(server.URL)
	input := pdfInput()
	input.ContentType = "image/png"

	_, err := ext.Extract(context.Background(), input)
	assert.NoError(t, err)
}

func TestExtractor_Extract_RepairsFencedOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(textResponse("```json\n{\"total\": 42}\n```"))
	}))
	defer server.Close()

	ext := newTestExtractor(server.URL)

	result, err := ext.Extract(context.Background(), pdfInput())
	assert.NoError(t, err)
	assert.JSONEq(t, `{"total": 42}`, string(result))
}

func TestExtractor_Extract_NonJSONOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(textResponse("I cannot extract structured data from this file."))
	}))
	defer server.Close()

	ext := newTestExtractor(server.URL)

	_, err := ext.Extract(context.Background(), pdfInput())
	assert.Error(t, err)

	var nonJSON *jsonfix.NonJSONError
	assert.True(t, errors.As(err, &nonJSON))
}

func TestExtractor_Extract_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	ext := newTestExtractor(server.URL)

	_, err := ext.Extract(context.Background(), pdfInput())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestExtractor_Extract_UnsupportedContentType(t *testing.T) {
	ext := newTestExtractor("http://127.0.0.1:0")
	input := pdfInput()
	input.ContentType = "text/plain"

	_, err := ext.Extract(context.Background(), input)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}

func TestExtractor_ExtractStream_EmitsDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, true, reqBody["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		chunks := []string{`{"invoice`, `_number": `, `"INV-9"}`}
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		for _, c := range chunks {
			payload, _ := json.Marshal(map[string]interface{}{
				"type":  "content_block_delta",
				"delta": map[string]interface{}{"type": "text_delta", "text": c},
			})
			fmt.Fprintf(w, "event: content_block_delta\ndata: %s\n\n", payload)
		}
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	ext := newTestExtractor(server.URL)

	var got string
	err := ext.ExtractStream(context.Background(), pdfInput(), func(chunk string) error {
		got += chunk
		return nil
	})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"invoice_number": "INV-9"}`, got)
}

func TestExtractor_ExtractStream_EmitErrorAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for i := 0; i < 10; i++ {
			payload, _ := json.Marshal(map[string]interface{}{
				"type":  "content_block_delta",
				"delta": map[string]interface{}{"type": "text_delta", "text": "x"},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
	}))
	defer server.Close()

	ext := newTestExtractor(server.URL)

	calls := 0
	err := ext.ExtractStream(context.Background(), pdfInput(), func(chunk string) error {
		calls++
		return errors.New("subscriber gone")
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "subscriber gone")
	assert.Equal(t, 1, calls)
}

func TestExtractor_ExtractStream_StreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`+"\n\n")
	}))
	defer server.Close()

	ext := newTestExtractor(server.URL)

	err := ext.ExtractStream(context.Background(), pdfInput(), func(string) error { return nil })
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Overloaded")
}

func TestExtractor_Validate_Verdicts(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		matches bool
		reason  string
	}{
		{"accepted", `{"matches": true, "reason": ""}`, true, ""},
		{"rejected", `{"matches": false, "reason": "this is a bank statement"}`, false, "this is a bank statement"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode(textResponse(tc.text))
			}))
			defer server.Close()

			ext := newTestExtractor(server.URL)
			matches, reason, err := ext.Validate(context.Background(), pdfInput(), "must be an invoice")
			assert.NoError(t, err)
			assert.Equal(t, tc.matches, matches)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestExtractor_Extract_ModelOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-haiku-4-20250514", reqBody["model"])

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(textResponse(`{}`))
	}))
	defer server.Close()

	ext := newTestExtractor(server.URL)
	input := pdfInput()
	input.ModelName = "claude-haiku-4-20250514"

	_, err := ext.Extract(context.Background(), input)
	assert.NoError(t, err)
}

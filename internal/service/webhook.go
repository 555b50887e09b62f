package service

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"docstream/internal/config"
	"docstream/internal/domain"
)

// WebhookNotifier delivers batch completion notifications. Delivery is best
// effort: one POST, no retries, failures only logged.
type WebhookNotifier struct {
	client *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg *config.WebhookConfig) *WebhookNotifier {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	BatchID     string     `json:"batch_id"`
	Status      string     `json:"status"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Notify posts the batch's terminal summary to url.
func (n *WebhookNotifier) Notify(url string, batch *domain.Batch) {
	payload := webhookPayload{
		BatchID:     batch.ID.String(),
		Status:      string(batch.Status),
		Total:       batch.Total,
		Completed:   batch.Completed,
		Failed:      batch.Failed,
		CompletedAt: batch.CompletedAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("webhookNotifier: batch %s: marshaling payload: %v", batch.ID, err)
		return
	}

	resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("webhookNotifier: batch %s: POST %s: %v", batch.ID, url, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		log.Printf("webhookNotifier: batch %s: POST %s: status %d", batch.ID, url, resp.StatusCode)
		return
	}
	log.Printf("webhookNotifier: batch %s: delivered to %s", batch.ID, url)
}

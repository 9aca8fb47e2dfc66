package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
)

// Notification is a reminder ready to be shown to the user
type Notification struct {
	DocumentID string     `json:"document_id"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	ExpiryDate civil.Date `json:"expiry_date"`
	DaysBefore int        `json:"days_before"`
}

// Notifier delivers notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct{}

// Notify logs the notification
func (LogNotifier) Notify(_ context.Context, n Notification) error {
	slog.Info(n.Title, "document_id", n.DocumentID, "body", n.Body, "expiry_date", n.ExpiryDate.String())
	return nil
}

// WebhookNotifier posts notifications as JSON to a URL
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify posts the notification
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// MultiNotifier delivers to every notifier and fails if any of them fails
type MultiNotifier []Notifier

// Notify delivers to all notifiers
func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebhookNotifier POSTs notifications as JSON to the configured sink.
type WebhookNotifier struct {
	URL     string
	Client  *http.Client
	log     zerolog.Logger
	backoff func(attempt int) time.Duration
}

func NewWebhookNotifier(url string, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
	}
}

type webhookPayload struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
	SentAt  string `json:"sent_at"`
}

func (w *WebhookNotifier) send(ctx context.Context, p webhookPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Notify sends with exponential backoff retry; a slow or failing sink must not
// stall the settlement batch for long.
func (w *WebhookNotifier) Notify(ctx context.Context, userID, title, message, notifType string) error {
	payload := webhookPayload{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    notifType,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	}

	const maxRetries = 3
	var lastErr error
	for i := 0; ; i++ {
		err := w.send(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		// No point backing off once the last attempt has failed.
		if i == maxRetries {
			break
		}
		backoff := w.backoff(i)
		w.log.Warn().
			Err(err).
			Int("attempt", i+1).
			Dur("backoff", backoff).
			Msg("notification send failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

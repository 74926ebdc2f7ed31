package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// AlertIDHeader carries the alert identity on every delivery so receivers
// can drop redelivered events.
const AlertIDHeader = "X-Journeywatch-Alert-Id"

const (
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookAttempts = 3
)

// retryDelay is the first backoff; it doubles after every failed attempt.
var retryDelay = time.Second

// Send delivers one alert event to a webhook. Transport errors, 429 and 5xx
// responses are retried; any other non-2xx response is final.
func Send(ctx context.Context, cfg WebhookConfig, event AlertEvent) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("notify: %s payload: %w", cfg.Format, err)
	}

	client := &http.Client{Timeout: cfg.timeout()}
	attempts := cfg.attempts()
	delay := retryDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("notify: webhook %s: %w", cfg.host(), ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		retry, err := deliver(ctx, client, cfg, event.AlertID, body)
		if err == nil {
			return nil
		}
		if !retry {
			return fmt.Errorf("notify: webhook %s: %w", cfg.host(), err)
		}
		lastErr = err
	}
	return fmt.Errorf("notify: webhook %s: gave up after %d attempts: %w", cfg.host(), attempts, lastErr)
}

func deliver(ctx context.Context, client *http.Client, cfg WebhookConfig, alertID string, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AlertIDHeader, alertID)
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return true, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return true, fmt.Errorf("HTTP %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("rejected with HTTP %d", resp.StatusCode)
	}
}

// host names the destination in errors and logs. Webhook URLs often embed
// credentials in the path, so the full URL is never printed.
func (w WebhookConfig) host() string {
	u, err := url.Parse(w.URL)
	if err != nil || u.Host == "" {
		return "(invalid url)"
	}
	return u.Host
}

func (w WebhookConfig) timeout() time.Duration {
	if w.Timeout > 0 {
		return w.Timeout
	}
	return defaultWebhookTimeout
}

func (w WebhookConfig) attempts() int {
	if w.Attempts > 0 {
		return w.Attempts
	}
	return defaultWebhookAttempts
}

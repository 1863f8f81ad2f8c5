package trigger

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Webhook request headers.
const (
	// IdempotencyKeyHeader carries "<poller id>/<dedup key>", so receivers
	// shared by several pollers never collapse different pollers' items.
	IdempotencyKeyHeader = "Idempotency-Key"

	// PollerHeader carries the id of the poller that emitted the trigger.
	PollerHeader = "Dropwatch-Poller"
)

// WebhookEngine delivers triggers as HTTP POST requests. The receiving
// service deduplicates on the Idempotency-Key header and answers 409 Conflict
// for a key it has already accepted.
type WebhookEngine struct {
	pollerID   string
	config     WebhookConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookEngine creates the webhook engine of pollerID. A nil client gets
// one with RequestTimeout applied.
func NewWebhookEngine(pollerID string, cfg WebhookConfig, client *http.Client, logger *slog.Logger) (*WebhookEngine, error) {
	if cfg.URL == "" {
		return nil, ErrMissingWebhookURL
	}
	switch cfg.AuthType {
	case "", "none", "basic", "bearer", "hmac":
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAuthType, cfg.AuthType)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &WebhookEngine{
		pollerID:   pollerID,
		config:     cfg,
		httpClient: client,
		logger:     logger.With("component", "webhook-engine", "poller", pollerID),
	}, nil
}

// IdempotencyKey is the Idempotency-Key sent for key.
func (w *WebhookEngine) IdempotencyKey(key string) string {
	return w.pollerID + "/" + key
}

// Submit posts payload with the poller-scoped idempotency key.
func (w *WebhookEngine) Submit(ctx context.Context, key string, payload []byte) (Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(IdempotencyKeyHeader, w.IdempotencyKey(key))
	req.Header.Set(PollerHeader, w.pollerID)

	w.addAuth(req, payload)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read body for error reporting
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return Receipt{}, nil
	case code == http.StatusConflict:
		w.logger.Debug("webhook reported duplicate key", "key", key)
		return Receipt{Duplicate: true}, nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return Receipt{}, fmt.Errorf("%w: status %d, body: %s", ErrWebhookStatus, code, string(body))
	default:
		return Receipt{}, fmt.Errorf("%w: %w: status %d, body: %s", ErrRejected, ErrWebhookStatus, code, string(body))
	}
}

func (w *WebhookEngine) addAuth(req *http.Request, payload []byte) {
	switch w.config.AuthType {
	case "basic":
		req.SetBasicAuth(w.config.Username, w.config.Password)

	case "bearer":
		req.Header.Set("Authorization", "Bearer "+w.config.Token)

	case "hmac":
		header := w.config.HMACHeader
		if header == "" {
			header = "X-Signature"
		}
		req.Header.Set(header, computeHMAC(payload, w.config.HMACSecret))
	}
}

// computeHMAC computes HMAC-SHA256 signature.
func computeHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"punchd/internal/punch"
)

// WebhookSink posts outcome events as JSON. When a secret is configured the
// body is signed with HMAC-SHA256 so receivers can authenticate the sender.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	return &WebhookSink{cfg: cfg, client: &http.Client{}}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, o punch.Outcome) error {
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Punchd-Event-ID", o.ID)
	if s.cfg.Secret != "" {
		req.Header.Set("X-Punchd-Signature", computeSignature(s.cfg.Secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is for receivers to verify incoming webhooks.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// Webhook delivery headers.
const (
	HeaderEvent     = "X-Portal-Event"
	HeaderDelivery  = "X-Portal-Delivery"
	HeaderSignature = "X-Portal-Signature"
)

// WebhookConfig configures WebhookSink. Events limits delivery to the listed
// event names; empty means all of them.
type WebhookConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	Secret   string        `yaml:"secret"`
	Timeout  time.Duration `yaml:"timeout"`
	Events   []string      `yaml:"events"`
}

// WebhookSink posts event envelopes to an HTTP endpoint. Bodies are signed
// with HMAC-SHA256 over the raw JSON when a secret is set.
type WebhookSink struct {
	Endpoint string
	Secret   string
	Events   []string
	Client   *http.Client
}

// NewWebhookSink creates a WebhookSink from config.
func NewWebhookSink(c WebhookConfig) *WebhookSink {
	if !c.Enabled || c.Endpoint == "" {
		return nil
	}
	cli := &http.Client{Timeout: c.Timeout}
	if c.Timeout == 0 {
		cli.Timeout = 5 * time.Second
	}
	return &WebhookSink{Endpoint: c.Endpoint, Secret: c.Secret, Events: c.Events, Client: cli}
}

// Wants reports whether the sink delivers events named name.
func (s *WebhookSink) Wants(name string) bool {
	return len(s.Events) == 0 || slices.Contains(s.Events, name)
}

func (s *WebhookSink) Emit(ctx context.Context, e Event) error {
	if s == nil || !s.Wants(e.Name) {
		return nil
	}
	data, err := json.Marshal(e.Envelope())
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, e.Name)
	req.Header.Set(HeaderDelivery, e.ID)
	if s.Secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+Sign(s.Secret, data))
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	if err := resp.Body.Close(); err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: %s", e.Name, resp.Status)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret, as sent in
// HeaderSignature.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

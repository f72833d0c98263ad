// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package messaging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tessera-games/lantern/internal/config"
)

// SMSChannel delivers messages through an HTTP SMS provider API.
type SMSChannel struct {
	cfg    *config.SMSConfig
	client *http.Client
}

// NewSMSChannel creates the SMS channel.
func NewSMSChannel(cfg *config.SMSConfig) *SMSChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMSChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the channel key.
func (c *SMSChannel) Name() string {
	return "sms"
}

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send posts the message to the provider. Any non-2xx response is a
// delivery failure; the response body is included for the audit trail.
func (c *SMSChannel) Send(ctx context.Context, msg Outbound) error {
	if msg.To.Phone == "" {
		return fmt.Errorf("contact %q has no phone number", msg.To.Name)
	}

	payload, err := json.Marshal(smsRequest{
		From: c.cfg.From,
		To:   msg.To.Phone,
		Body: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ProviderURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms provider request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

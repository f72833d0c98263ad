// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package messaging

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/tessera-games/lantern/internal/config"
)

// EmailChannel delivers messages over SMTP.
type EmailChannel struct {
	cfg  *config.EmailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel creates the email channel.
func NewEmailChannel(cfg *config.EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg, send: smtp.SendMail}
}

// Name returns the channel key.
func (c *EmailChannel) Name() string {
	return "email"
}

// Send delivers the message. smtp.SendMail has no context support, so
// cancellation is checked before dialing only.
func (c *EmailChannel) Send(ctx context.Context, msg Outbound) error {
	if msg.To.Email == "" {
		return fmt.Errorf("contact %q has no email address", msg.To.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To.Email)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	if err := c.send(addr, auth, c.cfg.From, []string{msg.To.Email}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekey Contributors

// Package mail delivers verification and password-reset emails over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"net/url"

	"github.com/samber/oops"

	"github.com/gatekey/gatekey/internal/auth"
)

//go:embed templates/*.html
var templatesFS embed.FS

var (
	verifyTemplate = template.Must(template.New("verify_email.html").
			ParseFS(templatesFS, "templates/verify_email.html"))
	resetTemplate = template.Must(template.New("password_reset.html").
			ParseFS(templatesFS, "templates/password_reset.html"))
)

// Config holds SMTP settings and the public base URL used to build the
// links embedded in outgoing mail.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// BaseURL is the externally reachable root of the web frontend, e.g.
	// https://app.example.com. Token links are built relative to it.
	BaseURL string
}

// sendFunc abstracts smtp.SendMail so tests can capture outgoing messages.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier implements auth.Notifier over SMTP.
type SMTPNotifier struct {
	cfg    Config
	send   sendFunc
	logger *slog.Logger
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg Config, logger *slog.Logger) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_BAD_CONFIG").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_BAD_CONFIG").Errorf("smtp from address is required")
	}
	if cfg.BaseURL == "" {
		return nil, oops.Code("MAIL_BAD_CONFIG").Errorf("base url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &SMTPNotifier{cfg: cfg, logger: logger}
	n.send = n.sendMail
	return n, nil
}

// SendVerification delivers an email-verification link carrying the
// plaintext token.
func (n *SMTPNotifier) SendVerification(ctx context.Context, email, token string) error {
	link := n.cfg.BaseURL + "/verify-email?token=" + url.QueryEscape(token)
	return n.deliver(ctx, email, "Confirm your email", verifyTemplate, link)
}

// SendPasswordReset delivers a password-reset link carrying the plaintext
// token.
func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	link := n.cfg.BaseURL + "/new-password?token=" + url.QueryEscape(token)
	return n.deliver(ctx, email, "Reset your password", resetTemplate, link)
}

func (n *SMTPNotifier) deliver(ctx context.Context, email, subject string, tmpl *template.Template, link string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(err)
	}

	var body bytes.Buffer
	data := struct{ Link string }{Link: link}
	if err := tmpl.Execute(&body, data); err != nil {
		return oops.Code("MAIL_RENDER_FAILED").
			With("template", tmpl.Name()).
			Wrap(err)
	}

	msg := buildHTMLMessage(n.cfg.From, email, subject, body.String())
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var a smtp.Auth
	if n.cfg.Username != "" || n.cfg.Password != "" {
		a = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := n.send(addr, a, n.cfg.From, []string{email}, []byte(msg)); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "send mail").
			With("host", n.cfg.Host).
			Wrap(err)
	}

	n.logger.Debug("email delivered", "subject", subject)
	return nil
}

// sendMail sends over plain SMTP, or implicit TLS when the configured port
// is 465.
func (n *SMTPNotifier) sendMail(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	if n.cfg.Port != 465 {
		return smtp.SendMail(addr, a, from, to, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if a != nil {
		if err := client.Auth(a); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildHTMLMessage(from, to, subject, htmlBody string) string {
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"utf-8\"\r\n\r\n%s",
		from, to, subject, htmlBody)
}

// Compile-time interface check.
var _ auth.Notifier = (*SMTPNotifier)(nil)

// Package mail sends account emails: verification codes over SMTP and
// password reset links through the Resend HTTP API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const (
	verificationSubject = "Your verification code"
	resetSubject        = "Password reset"
	defaultTimeout      = 15 * time.Second
)

// ErrNotConfigured is returned when the transport for a message is missing.
var ErrNotConfigured = errors.New("mail: not configured")

// Sender delivers account emails.
type Sender interface {
	SendVerificationCode(ctx context.Context, to, code string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}

// Options configures a Mailer.
type Options struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	From         string

	ResendAPIKey string
	ResendURL    string
	ResetFrom    string

	// LogOnly writes messages to the log when a transport is not configured.
	// Meant for local development.
	LogOnly bool
	Logger  *slog.Logger
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer implements Sender.
type Mailer struct {
	opts     Options
	http     *http.Client
	sendMail sendMailFunc
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Mailer.
func New(opts Options) *Mailer {
	if opts.From == "" {
		opts.From = opts.SMTPUser
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mailer{
		opts:     opts,
		http:     &http.Client{Timeout: defaultTimeout},
		sendMail: smtp.SendMail,
		now:      time.Now,
		logger:   logger,
	}
}

func (m *Mailer) smtpConfigured() bool {
	return m.opts.SMTPHost != "" && m.opts.SMTPUser != "" && m.opts.SMTPPassword != ""
}

func (m *Mailer) resendConfigured() bool {
	return m.opts.ResendAPIKey != ""
}

// SendVerificationCode mails a registration code over SMTP.
func (m *Mailer) SendVerificationCode(ctx context.Context, to, code string) error {
	body := "Your verification code is " + code
	if !m.smtpConfigured() {
		if m.opts.LogOnly {
			m.logger.Warn("SMTP not configured, logging verification email", "to", to, "body", body)
			return nil
		}
		return fmt.Errorf("%w: email server", ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := m.buildMessage(m.opts.From, to, verificationSubject, body)
	addr := net.JoinHostPort(m.opts.SMTPHost, strconv.Itoa(m.opts.SMTPPort))
	auth := smtp.PlainAuth("", m.opts.SMTPUser, m.opts.SMTPPassword, m.opts.SMTPHost)

	if err := m.sendMail(addr, auth, m.opts.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	m.logger.Info("verification email sent", "to", to)
	return nil
}

func (m *Mailer) buildMessage(from, to, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// SendPasswordReset mails a reset link through Resend.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, link string) error {
	text := "Click the link below to reset your password:\n\n" + link
	if !m.resendConfigured() {
		if m.opts.LogOnly {
			m.logger.Warn("Resend not configured, logging password reset email", "to", to, "link", link)
			return nil
		}
		return fmt.Errorf("%w: Resend API key", ErrNotConfigured)
	}

	payload, err := json.Marshal(resendRequest{
		From:    m.opts.ResetFrom,
		To:      []string{to},
		Subject: resetSubject,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("marshal resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.ResendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.opts.ResendAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("send password reset email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send password reset email: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	m.logger.Info("password reset email sent", "to", to)
	return nil
}

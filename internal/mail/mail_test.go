package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailer_SendVerificationCode(t *testing.T) {
	m := New(Options{
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		SMTPUser:     "mailer@example.com",
		SMTPPassword: "secret",
	})
	m.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.SendVerificationCode(context.Background(), "alice@example.com", "123456"))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "mailer@example.com", gotFrom, "From defaults to the SMTP user")
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Your verification code\r\n")
	assert.Contains(t, msg, "\r\n\r\nYour verification code is 123456\r\n")
}

func TestMailer_SendVerificationCode_NotConfigured(t *testing.T) {
	m := New(Options{SMTPHost: "smtp.example.com"})

	err := m.SendVerificationCode(context.Background(), "a@b.c", "1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	m = New(Options{LogOnly: true})
	assert.NoError(t, m.SendVerificationCode(context.Background(), "a@b.c", "1"))
}

func TestMailer_SendPasswordReset(t *testing.T) {
	var got resendRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer server.Close()

	m := New(Options{
		ResendAPIKey: "re_test",
		ResendURL:    server.URL,
		ResetFrom:    "MyCellar <noreply@mycellarapp.com>",
	})

	err := m.SendPasswordReset(context.Background(), "bob@example.com", "https://app.example.com/reset?token=abc")
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_test", auth)
	assert.Equal(t, "MyCellar <noreply@mycellarapp.com>", got.From)
	assert.Equal(t, []string{"bob@example.com"}, got.To)
	assert.Equal(t, "Password reset", got.Subject)
	assert.Equal(t, "Click the link below to reset your password:\n\nhttps://app.example.com/reset?token=abc", got.Text)
}

func TestMailer_SendPasswordReset_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer server.Close()

	m := New(Options{ResendAPIKey: "k", ResendURL: server.URL})

	err := m.SendPasswordReset(context.Background(), "a@b.c", "link")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
	assert.Contains(t, err.Error(), "invalid from")
}

func TestMailer_SendPasswordReset_NotConfigured(t *testing.T) {
	m := New(Options{})
	assert.ErrorIs(t, m.SendPasswordReset(context.Background(), "a@b.c", "link"), ErrNotConfigured)
}

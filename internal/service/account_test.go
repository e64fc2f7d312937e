package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycellarapp/cellar-server/internal/auth"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/mail"
)

const testTokenKey = "707172737475767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f"

type fakeMailer struct {
	mu     sync.Mutex
	codes  map[string]string
	links  map[string]string
	failed error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{codes: make(map[string]string), links: make(map[string]string)}
}

func (m *fakeMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed != nil {
		return m.failed
	}
	m.codes[to] = code
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed != nil {
		return m.failed
	}
	m.links[to] = link
	return nil
}

func newTestAccounts(t *testing.T) (*AccountService, *fakeMailer) {
	t.Helper()
	env := newTestEnv(t)
	tokens, err := auth.NewTokenService(testTokenKey, time.Hour)
	require.NoError(t, err)
	mailer := newFakeMailer()
	svc := NewAccountService(env.store, env.kv, tokens, mailer, AccountOptions{
		PublicURL: "https://cellar.example.com/",
	}, slog.New(slog.DiscardHandler))
	return svc, mailer
}

func register(t *testing.T, svc *AccountService, mailer *fakeMailer, email, password string) *AuthResult {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, RegisterRequest{Email: email, Password: password}))
	code := mailer.codes[strings.ToLower(email)]
	require.Len(t, code, 6)
	res, err := svc.VerifyRegistration(ctx, VerifyRequest{Email: email, Code: code})
	require.NoError(t, err)
	return res
}

func TestAccount_RegisterVerifyLogin(t *testing.T) {
	svc, mailer := newTestAccounts(t)
	ctx := context.Background()

	res := register(t, svc, mailer, "Alice@Example.com", "secret1")
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "alice@example.com", res.User.Email)

	claims, err := svc.Authenticate(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	_, err = svc.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	logged, err := svc.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, logged.User.ID)

	me, err := svc.Me(ctx, res.User.ID)
	require.NoError(t, err)
	assert.False(t, me.LastLoginAt.IsZero())

	err = svc.Register(ctx, RegisterRequest{Email: "alice@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestAccount_RegisterValidation(t *testing.T) {
	svc, _ := newTestAccounts(t)
	ctx := context.Background()

	err := svc.Register(ctx, RegisterRequest{Email: "not-an-email", Password: "secret1"})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	err = svc.Register(ctx, RegisterRequest{Email: "bob@example.com", Password: "123"})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestAccount_MailNotConfigured(t *testing.T) {
	svc, mailer := newTestAccounts(t)
	mailer.failed = mail.ErrNotConfigured

	err := svc.Register(context.Background(), RegisterRequest{Email: "bob@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domainerrors.ErrUnavailable)
}

func TestAccount_VerificationAttemptsExhausted(t *testing.T) {
	svc, mailer := newTestAccounts(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, RegisterRequest{Email: "bob@example.com", Password: "secret1"}))
	code := mailer.codes["bob@example.com"]

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for range 5 {
		_, err := svc.VerifyRegistration(ctx, VerifyRequest{Email: "bob@example.com", Code: wrong})
		assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	}

	// The pending entry is gone, so even the right code fails.
	_, err := svc.VerifyRegistration(ctx, VerifyRequest{Email: "bob@example.com", Code: code})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestAccount_PasswordReset(t *testing.T) {
	svc, mailer := newTestAccounts(t)
	ctx := context.Background()
	register(t, svc, mailer, "carol@example.com", "secret1")

	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Empty(t, mailer.links["nobody@example.com"])

	require.NoError(t, svc.RequestPasswordReset(ctx, "Carol@example.com"))
	link := mailer.links["carol@example.com"]
	require.True(t, strings.HasPrefix(link, "https://cellar.example.com/reset-password?token="), link)

	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")

	require.NoError(t, svc.ConfirmPasswordReset(ctx, ResetConfirmRequest{Token: token, Password: "newpass1"}))

	_, err = svc.Login(ctx, LoginRequest{Email: "carol@example.com", Password: "newpass1"})
	assert.NoError(t, err)

	// Tokens are single use.
	err = svc.ConfirmPasswordReset(ctx, ResetConfirmRequest{Token: token, Password: "another1"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestAccount_ResetNotConfigured(t *testing.T) {
	svc, mailer := newTestAccounts(t)
	register(t, svc, mailer, "dave@example.com", "secret1")
	mailer.failed = mail.ErrNotConfigured

	err := svc.RequestPasswordReset(context.Background(), "dave@example.com")
	require.Error(t, err)
	de, ok := domainerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "Resend API key not configured.", de.Message)
}

func TestAccount_AuthenticateRejectsGarbage(t *testing.T) {
	svc, _ := newTestAccounts(t)
	_, err := svc.Authenticate("v4.local.garbage")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mycellarapp/cellar-server/internal/auth"
	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/id"
	"github.com/mycellarapp/cellar-server/internal/mail"
	"github.com/mycellarapp/cellar-server/internal/store"
	"github.com/mycellarapp/cellar-server/internal/validation"
)

// AccountTokens holds short-lived account state. *kv.Store implements it.
type AccountTokens interface {
	SavePending(ctx context.Context, p *domain.PendingRegistration, ttl time.Duration) error
	GetPending(ctx context.Context, email string) (*domain.PendingRegistration, error)
	RecordFailedAttempt(ctx context.Context, email string) (int, error)
	DeletePending(ctx context.Context, email string) error
	SaveReset(ctx context.Context, token string, r *domain.PasswordReset, ttl time.Duration) error
	ConsumeReset(ctx context.Context, token string) (*domain.PasswordReset, error)
}

// AccountOptions configures an AccountService.
type AccountOptions struct {
	VerificationCodeTTL time.Duration
	ResetTokenTTL       time.Duration
	// PublicURL is the client origin used to build reset links.
	PublicURL string
}

// RegisterRequest starts a registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// VerifyRequest completes a registration with the emailed code.
type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// LoginRequest carries user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResetConfirmRequest sets a new password with a reset token.
type ResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by a successful login or verification.
type AuthResult struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

// AccountService handles registration, login and password resets.
type AccountService struct {
	store     store.Store
	tokens    AccountTokens
	issuer    *auth.TokenService
	mailer    mail.Sender
	validator *validation.Validator
	opts      AccountOptions
	now       func() time.Time
	logger    *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(
	st store.Store,
	tokens AccountTokens,
	issuer *auth.TokenService,
	mailer mail.Sender,
	opts AccountOptions,
	logger *slog.Logger,
) *AccountService {
	if opts.VerificationCodeTTL <= 0 {
		opts.VerificationCodeTTL = 15 * time.Minute
	}
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = time.Hour
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AccountService{
		store:     st,
		tokens:    tokens,
		issuer:    issuer,
		mailer:    mailer,
		validator: validation.New(),
		opts:      opts,
		now:       time.Now,
		logger:    logger,
	}
}

func passwordErr(err error) error {
	switch {
	case errors.Is(err, auth.ErrPasswordTooShort):
		return domainerrors.Validationf("Password must be at least %d characters.", auth.MinPasswordLength)
	case errors.Is(err, auth.ErrPasswordTooLong):
		return domainerrors.Validation("Password is too long.")
	}
	return domainerrors.Validation(err.Error())
}

// Register stores a pending registration and emails its verification code.
// A repeated request for the same address replaces the earlier code.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if err := auth.CheckPassword(req.Password); err != nil {
		return passwordErr(err)
	}
	email := domain.NormalizeEmail(req.Email)

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return domainerrors.AlreadyExists("An account with this email already exists.")
	} else if !errors.Is(err, store.ErrNotFound) {
		return domainerrors.Store(err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	code, err := id.VerificationCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	pending := &domain.PendingRegistration{
		Email:        email,
		PasswordHash: hash,
		Code:         code,
		CreatedAt:    s.now(),
	}
	if err := s.tokens.SavePending(ctx, pending, s.opts.VerificationCodeTTL); err != nil {
		return domainerrors.Store(err)
	}

	if err := s.mailer.SendVerificationCode(ctx, email, code); err != nil {
		if errors.Is(err, mail.ErrNotConfigured) {
			return domainerrors.Unavailable("Email server not configured.")
		}
		s.logger.Error("failed to send verification code", "email", email, "error", err)
		return domainerrors.Upstream("Failed to send email: " + err.Error())
	}

	s.logger.Info("registration pending", "email", email)
	return nil
}

// VerifyRegistration checks the emailed code and creates the account. The
// pending entry is dropped once the attempt limit is exceeded.
func (s *AccountService) VerifyRegistration(ctx context.Context, req VerifyRequest) (*AuthResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(req.Email)

	pending, err := s.tokens.GetPending(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.InvalidCredentials("Verification code expired or not requested.")
		}
		return nil, domainerrors.Store(err)
	}

	if pending.Code != strings.TrimSpace(req.Code) {
		attempts, err := s.tokens.RecordFailedAttempt(ctx, email)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Store(err)
		}
		if attempts >= domain.MaxVerificationAttempts {
			if err := s.tokens.DeletePending(ctx, email); err != nil {
				s.logger.Warn("failed to drop pending registration", "email", email, "error", err)
			}
			return nil, domainerrors.InvalidCredentials("Too many attempts. Request a new code.")
		}
		return nil, domainerrors.InvalidCredentials("Invalid verification code.")
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}
	now := s.now()
	user := &domain.User{
		ID:           userID,
		Email:        email,
		PasswordHash: pending.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLoginAt:  now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, domainerrors.AlreadyExists("An account with this email already exists.")
		}
		return nil, domainerrors.Store(err)
	}
	if err := s.tokens.DeletePending(ctx, email); err != nil {
		s.logger.Warn("failed to drop pending registration", "email", email, "error", err)
	}

	s.logger.Info("user registered", "user_id", userID, "email", email)
	return s.issue(user)
}

// Login checks credentials and issues an access token.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	invalid := domainerrors.InvalidCredentials("Invalid email or password.")

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid
		}
		return nil, domainerrors.Store(err)
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.logger.Info("login failed", "user_id", user.ID)
		return nil, invalid
	}

	user.LastLoginAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("failed to record login", "user_id", user.ID, "error", err)
	}
	return s.issue(user)
}

func (s *AccountService) issue(user *domain.User) (*AuthResult, error) {
	token, expires, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &AuthResult{User: user, AccessToken: token, ExpiresAt: expires}, nil
}

// RequestPasswordReset mails a single-use reset link. Unknown addresses
// succeed without sending anything.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domainerrors.Validation("Email is required.")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Info("password reset for unknown email", "email", email)
			return nil
		}
		return domainerrors.Store(err)
	}

	token := uuid.NewString()
	reset := &domain.PasswordReset{UserID: user.ID, Email: user.Email, CreatedAt: s.now()}
	if err := s.tokens.SaveReset(ctx, token, reset, s.opts.ResetTokenTTL); err != nil {
		return domainerrors.Store(err)
	}

	link := strings.TrimRight(s.opts.PublicURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		if errors.Is(err, mail.ErrNotConfigured) {
			return domainerrors.Unavailable("Resend API key not configured.")
		}
		s.logger.Error("failed to send password reset", "user_id", user.ID, "error", err)
		return domainerrors.Upstream("Failed to send email: " + err.Error())
	}

	s.logger.Info("password reset requested", "user_id", user.ID)
	return nil
}

// ConfirmPasswordReset consumes the token and replaces the password.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, req ResetConfirmRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if err := auth.CheckPassword(req.Password); err != nil {
		return passwordErr(err)
	}

	reset, err := s.tokens.ConsumeReset(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.InvalidCredentials("Reset link is invalid or has expired.")
		}
		return domainerrors.Store(err)
	}

	user, err := s.store.GetUser(ctx, reset.UserID)
	if err != nil {
		return storeErr(err, "Account not found.")
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return domainerrors.Store(err)
	}

	s.logger.Info("password reset", "user_id", user.ID)
	return nil
}

// Me returns the account behind an authenticated request.
func (s *AccountService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "Account not found.")
	}
	return user, nil
}

// Authenticate verifies an access token and returns its claims.
func (s *AccountService) Authenticate(token string) (*auth.AccessClaims, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, domainerrors.TokenExpired("Session expired. Please log in again.")
		}
		return nil, domainerrors.Unauthorized("Invalid access token.")
	}
	return claims, nil
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mycellarapp/cellar-server/internal/domain"
	"github.com/mycellarapp/cellar-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	register(s.api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/register",
		Summary:     "Register new user",
		Description: "Starts registration by emailing a six digit verification code",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimitByIP},
	}, s.handleRegister)

	register(s.api, huma.Operation{
		OperationID: "verifyRegistration",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/register/verify",
		Summary:     "Verify registration",
		Description: "Completes registration with the emailed code and returns an access token",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimitByIP},
	}, s.handleVerifyRegistration)

	register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "User login",
		Description: "Authenticates a user and returns an access token",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimitByIP},
	}, s.handleLogin)

	register(s.api, huma.Operation{
		OperationID: "requestPasswordReset",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/password-reset",
		Summary:     "Request password reset",
		Description: "Emails a single-use reset link. Succeeds whether or not the address is known.",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimitByIP},
	}, s.handleRequestPasswordReset)

	register(s.api, huma.Operation{
		OperationID: "confirmPasswordReset",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/password-reset/confirm",
		Summary:     "Confirm password reset",
		Description: "Sets a new password using a reset token",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimitByIP},
	}, s.handleConfirmPasswordReset)

	register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/me",
		Summary:     "Current user",
		Description: "Returns the authenticated account",
		Tags:        []string{"Authentication"},
		Security:    bearerSecurity,
	}, s.handleMe)
}

// === DTOs ===

// RegisterInput wraps the register request for Huma.
type RegisterInput struct {
	Body service.RegisterRequest
}

// VerifyInput wraps the verification request for Huma.
type VerifyInput struct {
	Body service.VerifyRequest
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body service.LoginRequest
}

// PasswordResetRequest is the request body for a reset link.
type PasswordResetRequest struct {
	Email string `json:"email" doc:"Account email address"`
}

// PasswordResetInput wraps the reset request for Huma.
type PasswordResetInput struct {
	Body PasswordResetRequest
}

// ResetConfirmInput wraps the reset confirmation for Huma.
type ResetConfirmInput struct {
	Body service.ResetConfirmRequest
}

// AuthOutput wraps a successful login for Huma.
type AuthOutput struct {
	Body *service.AuthResult
}

// UserOutput wraps the current user for Huma.
type UserOutput struct {
	Body *domain.User
}

// MessageResponse is a generic success message.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

func message(text string) *MessageOutput {
	return &MessageOutput{Body: MessageResponse{Message: text}}
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*MessageOutput, error) {
	if err := s.services.Accounts.Register(ctx, input.Body); err != nil {
		return nil, err
	}
	return message("Verification code sent."), nil
}

func (s *Server) handleVerifyRegistration(ctx context.Context, input *VerifyInput) (*AuthOutput, error) {
	result, err := s.services.Accounts.VerifyRegistration(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: result}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	result, err := s.services.Accounts.Login(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: result}, nil
}

func (s *Server) handleRequestPasswordReset(ctx context.Context, input *PasswordResetInput) (*MessageOutput, error) {
	if err := s.services.Accounts.RequestPasswordReset(ctx, input.Body.Email); err != nil {
		return nil, err
	}
	return message("If the address is registered, a reset link is on its way."), nil
}

func (s *Server) handleConfirmPasswordReset(ctx context.Context, input *ResetConfirmInput) (*MessageOutput, error) {
	if err := s.services.Accounts.ConfirmPasswordReset(ctx, input.Body); err != nil {
		return nil, err
	}
	return message("Password updated."), nil
}

func (s *Server) handleMe(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.Accounts.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: user}, nil
}

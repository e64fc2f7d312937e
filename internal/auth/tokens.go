package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

const (
	tokenIssuer   = "cellar-server"
	tokenAudience = "cellar-client"
)

// ErrTokenExpired is returned for a well-formed token past its expiry.
var ErrTokenExpired = errors.New("token expired")

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	UserID    string
	Email     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and verifies PASETO v4.local access tokens.
type TokenService struct {
	key      paseto.V4SymmetricKey
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenService builds a token service from a 64 character hex key.
func NewTokenService(keyHex string, lifetime time.Duration) (*TokenService, error) {
	if len(keyHex) != keyHexLength {
		return nil, fmt.Errorf("PASETO v4 key must be %d hex characters, got %d", keyHexLength, len(keyHex))
	}
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string for PASETO key: %w", err)
	}
	key, err := paseto.V4SymmetricKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("create PASETO symmetric key: %w", err)
	}
	if lifetime <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}
	return &TokenService{key: key, lifetime: lifetime, now: time.Now}, nil
}

// Lifetime is how long issued tokens stay valid.
func (s *TokenService) Lifetime() time.Duration { return s.lifetime }

// Issue creates an encrypted access token for user.
func (s *TokenService) Issue(user *domain.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.lifetime)

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetSubject(user.ID)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expires)
	token.SetJti(uuid.NewString())
	token.SetString("email", user.Email)

	return token.V4Encrypt(s.key, nil), expires, nil
}

// Verify decrypts tokenString and checks issuer, audience and validity window.
func (s *TokenService) Verify(tokenString string) (*AccessClaims, error) {
	now := s.now()

	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	exp, err := token.GetExpiration()
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !now.Before(exp) {
		return nil, ErrTokenExpired
	}
	if nbf, err := token.GetNotBefore(); err == nil && now.Before(nbf) {
		return nil, errors.New("invalid token: not yet valid")
	}

	claims := &AccessClaims{ExpiresAt: exp}
	if claims.UserID, err = token.GetSubject(); err != nil || claims.UserID == "" {
		return nil, errors.New("invalid token: missing subject")
	}
	// Optional claims; absence leaves the zero value.
	claims.Email, _ = token.GetString("email")
	claims.TokenID, _ = token.GetJti()
	claims.IssuedAt, _ = token.GetIssuedAt()
	return claims, nil
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/pairing"
)

// Generator produces text for a prompt. *pairing.Client implements it.
type Generator interface {
	Generate(ctx context.Context, key, prompt string) (string, error)
}

// DrinkingWindow is a suggested drinking window. Start and End are zero when
// the model's answer held no year range.
type DrinkingWindow struct {
	Text  string `json:"text"`
	Start int    `json:"start,omitempty"`
	End   int    `json:"end,omitempty"`
}

// PairingService asks the language model for pairings and drinking windows.
type PairingService struct {
	ai     Generator
	wines  *WineService
	logger *slog.Logger
}

// NewPairingService creates a PairingService.
func NewPairingService(ai Generator, wines *WineService, logger *slog.Logger) *PairingService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PairingService{ai: ai, wines: wines, logger: logger}
}

// Generate passes a raw prompt through.
func (s *PairingService) Generate(ctx context.Context, sess Session, prompt string) (string, error) {
	if err := sess.check(); err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", domainerrors.Validation("Prompt is required.")
	}
	return s.generate(ctx, sess.UserID, prompt)
}

// FoodPairing suggests dishes for one of the user's wines.
func (s *PairingService) FoodPairing(ctx context.Context, sess Session, wineID string) (string, error) {
	w, err := s.wines.Get(ctx, sess, wineID)
	if err != nil {
		return "", err
	}
	return s.generate(ctx, sess.UserID, pairing.FoodPairingPrompt(w))
}

// WinePairing picks wines for a dish from the scoped cellar. With shopping
// set the cellar is ignored and the model suggests wines to buy.
func (s *PairingService) WinePairing(ctx context.Context, sess Session, food string, shopping bool, opts ListOptions) (string, error) {
	if err := sess.check(); err != nil {
		return "", err
	}
	food = strings.TrimSpace(food)
	if food == "" {
		return "", domainerrors.Validation("Describe the food to pair.")
	}
	if shopping {
		return s.generate(ctx, sess.UserID, pairing.ShoppingPrompt(food))
	}

	wines, err := s.wines.List(ctx, sess, opts)
	if err != nil {
		return "", err
	}
	if len(wines) == 0 {
		return s.generate(ctx, sess.UserID, pairing.ShoppingPrompt(food))
	}
	return s.generate(ctx, sess.UserID, pairing.WinePairingPrompt(food, wines))
}

// DrinkingWindow asks for a conservative window for a wine.
func (s *PairingService) DrinkingWindow(ctx context.Context, sess Session, wineID string) (*DrinkingWindow, error) {
	w, err := s.wines.Get(ctx, sess, wineID)
	if err != nil {
		return nil, err
	}
	return s.drinkingWindow(ctx, sess.UserID, w)
}

// DrinkingWindowFor suggests a window for a wine that is not stored yet.
func (s *PairingService) DrinkingWindowFor(ctx context.Context, sess Session, input domain.WineInput) (*DrinkingWindow, error) {
	if err := sess.check(); err != nil {
		return nil, err
	}
	return s.drinkingWindow(ctx, sess.UserID, wineFromInput(input, input.CellarID))
}

func (s *PairingService) drinkingWindow(ctx context.Context, userID string, w *domain.Wine) (*DrinkingWindow, error) {
	text, err := s.generate(ctx, userID, pairing.DrinkingWindowPrompt(w))
	if err != nil {
		return nil, err
	}
	out := &DrinkingWindow{Text: text}
	if start, end, ok := pairing.ExtractYearRange(text); ok {
		out.Start, out.End = start, end
	}
	return out, nil
}

func (s *PairingService) generate(ctx context.Context, userID, prompt string) (string, error) {
	text, err := s.ai.Generate(ctx, userID, prompt)
	if err != nil {
		s.logger.Warn("pairing request failed", "user_id", userID, "error", err)
		return "", pairingErr(err)
	}
	if strings.TrimSpace(text) == "" {
		return pairing.NoSuggestion, nil
	}
	return strings.TrimSpace(text), nil
}

func pairingErr(err error) error {
	switch {
	case errors.Is(err, pairing.ErrNotConfigured):
		return domainerrors.Unavailable("AI suggestions are not configured.")
	case errors.Is(err, pairing.ErrRateLimited):
		return domainerrors.RateLimited("Too many AI requests. Try again shortly.")
	case errors.Is(err, context.DeadlineExceeded):
		return domainerrors.Upstream("The AI service timed out.")
	}
	return domainerrors.Wrap(err, domainerrors.CodeUpstream, "The AI service returned an error.")
}

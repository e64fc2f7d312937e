package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mycellarapp/cellar-server/internal/service"
)

func (s *Server) registerAIRoutes() {
	register(s.api, huma.Operation{
		OperationID: "generate",
		Method:      http.MethodPost,
		Path:        "/api/v1/ai/generate",
		Summary:     "Generate text",
		Description: "Sends a free-form prompt to the language model",
		Tags:        []string{"AI"},
		Security:    bearerSecurity,
	}, s.handleGenerate)

	register(s.api, huma.Operation{
		OperationID: "foodPairing",
		Method:      http.MethodPost,
		Path:        "/api/v1/ai/food-pairing",
		Summary:     "Food pairing",
		Description: "Suggests dishes for one of the user's wines",
		Tags:        []string{"AI"},
		Security:    bearerSecurity,
	}, s.handleFoodPairing)

	register(s.api, huma.Operation{
		OperationID: "winePairing",
		Method:      http.MethodPost,
		Path:        "/api/v1/ai/wine-pairing",
		Summary:     "Wine pairing",
		Description: "Picks wines from the cellar for a dish, or suggests what to buy",
		Tags:        []string{"AI"},
		Security:    bearerSecurity,
	}, s.handleWinePairing)

	register(s.api, huma.Operation{
		OperationID: "drinkingWindow",
		Method:      http.MethodPost,
		Path:        "/api/v1/ai/drinking-window",
		Summary:     "Drinking window",
		Description: "Suggests when to drink a stored wine, or a wine being entered",
		Tags:        []string{"AI"},
		Security:    bearerSecurity,
	}, s.handleDrinkingWindow)
}

// === DTOs ===

// GenerateRequest is a free-form prompt.
type GenerateRequest struct {
	Prompt string `json:"prompt" maxLength:"8000" doc:"Prompt text"`
}

// GenerateInput wraps the prompt for Huma.
type GenerateInput struct {
	Body GenerateRequest
}

// FoodPairingRequest names the wine to pair.
type FoodPairingRequest struct {
	WineID string `json:"wineId" doc:"Wine ID"`
}

// FoodPairingInput wraps the food pairing request for Huma.
type FoodPairingInput struct {
	Body FoodPairingRequest
}

// WinePairingRequest describes the dish.
type WinePairingRequest struct {
	Food     string `json:"food" maxLength:"500" doc:"Dish to pair"`
	Shopping bool   `json:"shopping,omitempty" doc:"Suggest wines to buy instead of picking from the cellar"`
	CellarID string `json:"cellarId,omitempty" doc:"Cellar to pick from, defaults to the active one"`
	All      bool   `json:"all,omitempty" doc:"Pick from every cellar"`
}

// WinePairingInput wraps the wine pairing request for Huma.
type WinePairingInput struct {
	Body WinePairingRequest
}

// DrinkingWindowRequest names a stored wine or carries one being entered.
type DrinkingWindowRequest struct {
	WineID string       `json:"wineId,omitempty" doc:"Stored wine ID"`
	Wine   *WineRequest `json:"wine,omitempty" doc:"Unsaved wine fields"`
}

// DrinkingWindowInput wraps the drinking window request for Huma.
type DrinkingWindowInput struct {
	Body DrinkingWindowRequest
}

// TextResponse is a model answer.
type TextResponse struct {
	Text string `json:"text" doc:"Model answer"`
}

// TextOutput wraps a model answer for Huma.
type TextOutput struct {
	Body TextResponse
}

// DrinkingWindowOutput wraps the suggested window for Huma.
type DrinkingWindowOutput struct {
	Body *service.DrinkingWindow
}

// === Handlers ===

func (s *Server) handleGenerate(ctx context.Context, input *GenerateInput) (*TextOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	text, err := s.services.Pairing.Generate(ctx, sess, input.Body.Prompt)
	if err != nil {
		return nil, err
	}
	return &TextOutput{Body: TextResponse{Text: text}}, nil
}

func (s *Server) handleFoodPairing(ctx context.Context, input *FoodPairingInput) (*TextOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	text, err := s.services.Pairing.FoodPairing(ctx, sess, input.Body.WineID)
	if err != nil {
		return nil, err
	}
	return &TextOutput{Body: TextResponse{Text: text}}, nil
}

func (s *Server) handleWinePairing(ctx context.Context, input *WinePairingInput) (*TextOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	body := input.Body
	opts := service.ListOptions{CellarID: body.CellarID, AllCellars: body.All}
	text, err := s.services.Pairing.WinePairing(ctx, sess, body.Food, body.Shopping, opts)
	if err != nil {
		return nil, err
	}
	return &TextOutput{Body: TextResponse{Text: text}}, nil
}

func (s *Server) handleDrinkingWindow(ctx context.Context, input *DrinkingWindowInput) (*DrinkingWindowOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	var window *service.DrinkingWindow
	if input.Body.Wine != nil {
		window, err = s.services.Pairing.DrinkingWindowFor(ctx, sess, input.Body.Wine.input())
	} else {
		window, err = s.services.Pairing.DrinkingWindow(ctx, sess, input.Body.WineID)
	}
	if err != nil {
		return nil, err
	}
	return &DrinkingWindowOutput{Body: window}, nil
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mycellarapp/cellar-server/internal/label"
)

func (s *Server) registerLabelRoutes() {
	register(s.api, huma.Operation{
		OperationID: "parseLabel",
		Method:      http.MethodPost,
		Path:        "/api/v1/labels/parse",
		Summary:     "Parse label text",
		Description: "Extracts producer, name, vintage, region and color from OCR text of a label",
		Tags:        []string{"Labels"},
		Security:    bearerSecurity,
	}, s.handleParseLabel)
}

// ParseLabelRequest carries the recognized label text.
type ParseLabelRequest struct {
	Text string `json:"text" maxLength:"10000" doc:"Label text, one line per printed line"`
}

// ParseLabelInput wraps the label text for Huma.
type ParseLabelInput struct {
	Body ParseLabelRequest
}

// ParseLabelOutput wraps the recognized fields for Huma.
type ParseLabelOutput struct {
	Body label.Result
}

func (s *Server) handleParseLabel(ctx context.Context, input *ParseLabelInput) (*ParseLabelOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	return &ParseLabelOutput{Body: label.Parse(input.Body.Text)}, nil
}

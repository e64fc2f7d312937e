package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

func (s *Server) registerExperiencedRoutes() {
	register(s.api, huma.Operation{
		OperationID: "listExperienced",
		Method:      http.MethodGet,
		Path:        "/api/v1/experienced",
		Summary:     "List experienced wines",
		Description: "Returns consumed wines, most recently consumed first",
		Tags:        []string{"Experienced"},
		Security:    bearerSecurity,
	}, s.handleListExperienced)

	register(s.api, huma.Operation{
		OperationID: "getExperienced",
		Method:      http.MethodGet,
		Path:        "/api/v1/experienced/{id}",
		Summary:     "Get experienced wine",
		Tags:        []string{"Experienced"},
		Security:    bearerSecurity,
	}, s.handleGetExperienced)

	register(s.api, huma.Operation{
		OperationID: "updateExperienced",
		Method:      http.MethodPut,
		Path:        "/api/v1/experienced/{id}",
		Summary:     "Update experienced wine",
		Description: "Edits the wine fields, tasting notes, rating and consumed date",
		Tags:        []string{"Experienced"},
		Security:    bearerSecurity,
	}, s.handleUpdateExperienced)

	register(s.api, huma.Operation{
		OperationID: "deleteExperienced",
		Method:      http.MethodDelete,
		Path:        "/api/v1/experienced/{id}",
		Summary:     "Delete experienced wine",
		Tags:        []string{"Experienced"},
		Security:    bearerSecurity,
	}, s.handleDeleteExperienced)

	register(s.api, huma.Operation{
		OperationID: "restoreExperienced",
		Method:      http.MethodPost,
		Path:        "/api/v1/experienced/{id}/restore",
		Summary:     "Restore wine",
		Description: "Moves an experienced wine back to the active collection under the same id",
		Tags:        []string{"Experienced"},
		Security:    bearerSecurity,
	}, s.handleRestoreExperienced)
}

// === DTOs ===

// ExperiencedRequest edits an experienced record.
type ExperiencedRequest struct {
	WineRequest
	TastingNotes *string `json:"tastingNotes,omitempty" doc:"Tasting notes"`
	Rating       *int    `json:"rating,omitempty" doc:"Rating from 0 to 5"`
	ConsumedDate string  `json:"consumedDate,omitempty" doc:"YYYY-MM-DD or RFC 3339, defaults to now"`
}

// UpdateExperiencedInput wraps an experienced edit for Huma.
type UpdateExperiencedInput struct {
	ID   string `path:"id" doc:"Wine ID"`
	Body ExperiencedRequest
}

// WinePatch carries the wine fields a client sent. Nil fields are left as
// they are; an empty string clears a field.
type WinePatch struct {
	Name                    *string   `json:"name,omitempty" maxLength:"200" doc:"Wine name"`
	Producer                *string   `json:"producer,omitempty" maxLength:"200" doc:"Producer"`
	Year                    *FlexYear `json:"year,omitempty" doc:"Vintage"`
	Region                  *string   `json:"region,omitempty" maxLength:"200" doc:"Region"`
	Color                   *string   `json:"color,omitempty" maxLength:"40" doc:"red, white, rose, sparkling or other"`
	Location                *string   `json:"location,omitempty" maxLength:"100" doc:"Slot in the cellar, unique per cellar"`
	DrinkingWindowStartYear *FlexYear `json:"drinkingWindowStartYear,omitempty" doc:"First year to drink"`
	DrinkingWindowEndYear   *FlexYear `json:"drinkingWindowEndYear,omitempty" doc:"Last year to drink"`
	CellarID                *string   `json:"cellarId,omitempty" maxLength:"64" doc:"Target cellar"`
	Notes                   *string   `json:"notes,omitempty" doc:"Free-form notes"`
}

// apply overlays the sent fields on in.
func (p *WinePatch) apply(in domain.WineInput) domain.WineInput {
	if p == nil {
		return in
	}
	overlay(&in.Name, p.Name)
	overlay(&in.Producer, p.Producer)
	overlay(&in.Region, p.Region)
	overlay(&in.Color, p.Color)
	overlay(&in.Location, p.Location)
	overlay(&in.CellarID, p.CellarID)
	if p.Year != nil {
		in.Year = p.Year.String()
	}
	if p.DrinkingWindowStartYear != nil {
		in.DrinkingWindowStartYear = p.DrinkingWindowStartYear.String()
	}
	if p.DrinkingWindowEndYear != nil {
		in.DrinkingWindowEndYear = p.DrinkingWindowEndYear.String()
	}
	if p.Notes != nil {
		in.Notes = p.Notes
	}
	return in
}

func overlay(dst, src *string) {
	if src != nil {
		*dst = *src
	}
}

// RestoreInput wraps the restored wine for Huma. Omitted fields keep the
// experienced record's values.
type RestoreInput struct {
	ID   string     `path:"id" doc:"Wine ID"`
	Body *WinePatch `required:"false"`
}

// ExperiencedOutput wraps an experienced wine for Huma.
type ExperiencedOutput struct {
	Body *domain.ExperiencedWine
}

// ExperiencedListOutput wraps an experienced list for Huma.
type ExperiencedListOutput struct {
	Body []domain.ExperiencedWine
}

// === Handlers ===

func (s *Server) handleListExperienced(ctx context.Context, input *ListWinesInput) (*ExperiencedListOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	wines, err := s.services.Experiences.ListExperienced(ctx, sess, input.options())
	if err != nil {
		return nil, err
	}
	if wines == nil {
		wines = []domain.ExperiencedWine{}
	}
	return &ExperiencedListOutput{Body: wines}, nil
}

func (s *Server) handleGetExperienced(ctx context.Context, input *WineIDInput) (*ExperiencedOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	exp, err := s.services.Experiences.GetExperienced(ctx, sess, input.ID)
	if err != nil {
		return nil, err
	}
	return &ExperiencedOutput{Body: exp}, nil
}

func (s *Server) handleUpdateExperienced(ctx context.Context, input *UpdateExperiencedInput) (*ExperiencedOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	body := input.Body
	edit := domain.ExperiencedInput{
		WineInput:    body.input(),
		TastingNotes: body.TastingNotes,
		Rating:       body.Rating,
		ConsumedDate: body.ConsumedDate,
	}
	if err := s.services.Experiences.UpdateExperienced(ctx, sess, input.ID, edit); err != nil {
		return nil, err
	}

	exp, err := s.services.Experiences.GetExperienced(ctx, sess, input.ID)
	if err != nil {
		return nil, err
	}
	return &ExperiencedOutput{Body: exp}, nil
}

func (s *Server) handleDeleteExperienced(ctx context.Context, input *WineIDInput) (*MessageOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Experiences.DeleteExperienced(ctx, sess, input.ID); err != nil {
		return nil, err
	}
	return message("Experienced wine deleted"), nil
}

func (s *Server) handleRestoreExperienced(ctx context.Context, input *RestoreInput) (*WineOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	exp, err := s.services.Experiences.GetExperienced(ctx, sess, input.ID)
	if err != nil {
		return nil, err
	}
	restored := input.Body.apply(domain.FromWine(&exp.Wine))

	if err := s.services.Experiences.Restore(ctx, sess, input.ID, restored, nil); err != nil {
		return nil, err
	}

	wine, err := s.services.Wines.Get(ctx, sess, input.ID)
	if err != nil {
		return nil, err
	}
	return &WineOutput{Body: wine}, nil
}

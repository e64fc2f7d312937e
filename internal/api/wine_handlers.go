package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mycellarapp/cellar-server/internal/domain"
	"github.com/mycellarapp/cellar-server/internal/service"
)

func (s *Server) registerWineRoutes() {
	register(s.api, huma.Operation{
		OperationID: "listWines",
		Method:      http.MethodGet,
		Path:        "/api/v1/wines",
		Summary:     "List wines",
		Description: "Returns active wines in the active cellar, or the given cellar, sorted by producer then vintage",
		Tags:        []string{"Wines"},
		Security:    bearerSecurity,
	}, s.handleListWines)

	register(s.api, huma.Operation{
		OperationID: "drinkSoon",
		Method:      http.MethodGet,
		Path:        "/api/v1/wines/drink-soon",
		Summary:     "Drink soon",
		Description: "Returns wines in every cellar whose drinking window ends this year or earlier",
		Tags:        []string{"Wines"},
		Security:    bearerSecurity,
	}, s.handleDrinkSoon)

	register(s.api, huma.Operation{
		OperationID: "getWine",
		Method:      http.MethodGet,
		Path:        "/api/v1/wines/{id}",
		Summary:     "Get wine",
		Tags:        []string{"Wines"},
		Security:    bearerSecurity,
	}, s.handleGetWine)

	register(s.api, huma.Operation{
		OperationID:   "createWine",
		Method:        http.MethodPost,
		Path:          "/api/v1/wines",
		Summary:       "Add wine",
		Description:   "Adds a wine to the given or active cellar. The location must be free in that cellar.",
		Tags:          []string{"Wines"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateWine)

	register(s.api, huma.Operation{
		OperationID: "updateWine",
		Method:      http.MethodPut,
		Path:        "/api/v1/wines/{id}",
		Summary:     "Update wine",
		Description: "Replaces a wine's fields. The cellar and added date are kept.",
		Tags:        []string{"Wines"},
		Security:    bearerSecurity,
	}, s.handleUpdateWine)

	register(s.api, huma.Operation{
		OperationID: "deleteWine",
		Method:      http.MethodDelete,
		Path:        "/api/v1/wines/{id}",
		Summary:     "Delete wine",
		Tags:        []string{"Wines"},
		Security:    bearerSecurity,
	}, s.handleDeleteWine)

	register(s.api, huma.Operation{
		OperationID: "eraseWines",
		Method:      http.MethodPost,
		Path:        "/api/v1/wines/erase",
		Summary:     "Erase wines",
		Description: "Deletes every active wine in a cellar, or in every cellar when none is given",
		Tags:        []string{"Wines"},
		Security:    bearerSecurity,
	}, s.handleEraseWines)

	register(s.api, huma.Operation{
		OperationID: "experienceWine",
		Method:      http.MethodPost,
		Path:        "/api/v1/wines/{id}/experience",
		Summary:     "Experience wine",
		Description: "Moves a wine to the experienced collection with tasting notes and a rating",
		Tags:        []string{"Wines"},
		Security:    bearerSecurity,
	}, s.handleExperienceWine)
}

// === DTOs ===

// WineRequest is the editable form of a wine. Year fields take numbers or text.
type WineRequest struct {
	Name                    string   `json:"name,omitempty" maxLength:"200" doc:"Wine name"`
	Producer                string   `json:"producer,omitempty" maxLength:"200" doc:"Producer"`
	Year                    FlexYear `json:"year,omitempty" doc:"Vintage"`
	Region                  string   `json:"region,omitempty" maxLength:"200" doc:"Region"`
	Color                   string   `json:"color,omitempty" maxLength:"40" doc:"red, white, rose, sparkling or other"`
	Location                string   `json:"location,omitempty" maxLength:"100" doc:"Slot in the cellar, unique per cellar"`
	DrinkingWindowStartYear FlexYear `json:"drinkingWindowStartYear,omitempty" doc:"First year to drink"`
	DrinkingWindowEndYear   FlexYear `json:"drinkingWindowEndYear,omitempty" doc:"Last year to drink"`
	CellarID                string   `json:"cellarId,omitempty" maxLength:"64" doc:"Target cellar, defaults to the active one"`
	Notes                   *string  `json:"notes,omitempty" doc:"Free-form notes"`
}

func (r WineRequest) input() domain.WineInput {
	return domain.WineInput{
		Name:                    r.Name,
		Producer:                r.Producer,
		Year:                    r.Year.String(),
		Region:                  r.Region,
		Color:                   r.Color,
		Location:                r.Location,
		DrinkingWindowStartYear: r.DrinkingWindowStartYear.String(),
		DrinkingWindowEndYear:   r.DrinkingWindowEndYear.String(),
		CellarID:                r.CellarID,
		Notes:                   r.Notes,
	}
}

// ListWinesInput narrows a wine listing.
type ListWinesInput struct {
	Cellar string `query:"cellar" doc:"Cellar ID, defaults to the active cellar"`
	All    bool   `query:"all" doc:"List every cellar"`
	Search string `query:"search" doc:"Case-insensitive text match"`
	Where  string `query:"where" doc:"Filter expression, e.g. year < 2015 && color == \"red\""`
}

func (in *ListWinesInput) options() service.ListOptions {
	return service.ListOptions{
		CellarID:   in.Cellar,
		AllCellars: in.All,
		Search:     in.Search,
		Where:      in.Where,
	}
}

// WineIDInput names a wine.
type WineIDInput struct {
	ID string `path:"id" doc:"Wine ID"`
}

// CreateWineInput wraps a new wine for Huma.
type CreateWineInput struct {
	Body WineRequest
}

// UpdateWineInput wraps a wine edit for Huma.
type UpdateWineInput struct {
	ID   string `path:"id" doc:"Wine ID"`
	Body WineRequest
}

// EraseRequest picks the cellar to empty.
type EraseRequest struct {
	CellarID string `json:"cellarId,omitempty" doc:"Cellar to empty; omit for every cellar"`
}

// EraseInput wraps the erase request for Huma.
type EraseInput struct {
	Body EraseRequest
}

// EraseResponse reports how many wines were removed.
type EraseResponse struct {
	Erased int `json:"erased" doc:"Number of wines deleted"`
}

// EraseOutput wraps the erase result for Huma.
type EraseOutput struct {
	Body EraseResponse
}

// ExperienceRequest is the tasting record for a consumed wine.
type ExperienceRequest struct {
	TastingNotes string `json:"tastingNotes,omitempty" doc:"Tasting notes"`
	Rating       int    `json:"rating,omitempty" doc:"Rating from 0 to 5"`
	ConsumedDate string `json:"consumedDate,omitempty" doc:"YYYY-MM-DD or RFC 3339, defaults to now"`
}

// ExperienceInput wraps the experience request for Huma.
type ExperienceInput struct {
	ID   string `path:"id" doc:"Wine ID"`
	Body ExperienceRequest
}

// WineOutput wraps a wine for Huma.
type WineOutput struct {
	Body *domain.Wine
}

// WinesOutput wraps a wine list for Huma.
type WinesOutput struct {
	Body []domain.Wine
}

func winesOutput(wines []domain.Wine) *WinesOutput {
	if wines == nil {
		wines = []domain.Wine{}
	}
	return &WinesOutput{Body: wines}
}

// === Handlers ===

func (s *Server) handleListWines(ctx context.Context, input *ListWinesInput) (*WinesOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	wines, err := s.services.Wines.List(ctx, sess, input.options())
	if err != nil {
		return nil, err
	}
	return winesOutput(wines), nil
}

func (s *Server) handleDrinkSoon(ctx context.Context, _ *struct{}) (*WinesOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	wines, err := s.services.Wines.DrinkSoon(ctx, sess)
	if err != nil {
		return nil, err
	}
	return winesOutput(wines), nil
}

func (s *Server) handleGetWine(ctx context.Context, input *WineIDInput) (*WineOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	wine, err := s.services.Wines.Get(ctx, sess, input.ID)
	if err != nil {
		return nil, err
	}
	return &WineOutput{Body: wine}, nil
}

func (s *Server) handleCreateWine(ctx context.Context, input *CreateWineInput) (*WineOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	id, err := s.services.Wines.Add(ctx, sess, input.Body.input(), nil)
	if err != nil {
		return nil, err
	}

	wine, err := s.services.Wines.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	return &WineOutput{Body: wine}, nil
}

func (s *Server) handleUpdateWine(ctx context.Context, input *UpdateWineInput) (*WineOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Wines.Update(ctx, sess, input.ID, input.Body.input(), nil); err != nil {
		return nil, err
	}

	wine, err := s.services.Wines.Get(ctx, sess, input.ID)
	if err != nil {
		return nil, err
	}
	return &WineOutput{Body: wine}, nil
}

func (s *Server) handleDeleteWine(ctx context.Context, input *WineIDInput) (*MessageOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Wines.Delete(ctx, sess, input.ID); err != nil {
		return nil, err
	}
	return message("Wine deleted"), nil
}

func (s *Server) handleEraseWines(ctx context.Context, input *EraseInput) (*EraseOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	n, err := s.services.Wines.EraseAll(ctx, sess, input.Body.CellarID)
	if err != nil {
		return nil, err
	}
	return &EraseOutput{Body: EraseResponse{Erased: n}}, nil
}

func (s *Server) handleExperienceWine(ctx context.Context, input *ExperienceInput) (*MessageOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	wine, err := s.services.Wines.Get(ctx, sess, input.ID)
	if err != nil {
		return nil, err
	}

	body := input.Body
	if err := s.services.Experiences.Experience(ctx, sess, wine, body.TastingNotes, body.Rating, body.ConsumedDate); err != nil {
		return nil, err
	}
	return message("Wine experienced"), nil
}

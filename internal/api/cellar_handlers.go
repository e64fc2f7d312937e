package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

func (s *Server) registerCellarRoutes() {
	register(s.api, huma.Operation{
		OperationID: "listCellars",
		Method:      http.MethodGet,
		Path:        "/api/v1/cellars",
		Summary:     "List cellars",
		Description: "Returns the user's cellars, oldest first. The virtual default cellar is not listed.",
		Tags:        []string{"Cellars"},
		Security:    bearerSecurity,
	}, s.handleListCellars)

	register(s.api, huma.Operation{
		OperationID:   "createCellar",
		Method:        http.MethodPost,
		Path:          "/api/v1/cellars",
		Summary:       "Create cellar",
		Description:   "Creates or renames a cellar and makes it the active one",
		Tags:          []string{"Cellars"},
		Security:      bearerSecurity,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateCellar)

	register(s.api, huma.Operation{
		OperationID: "deleteCellar",
		Method:      http.MethodDelete,
		Path:        "/api/v1/cellars/{id}",
		Summary:     "Delete cellar",
		Description: "Deletes a cellar. A cellar that still holds wines needs reassignTo.",
		Tags:        []string{"Cellars"},
		Security:    bearerSecurity,
	}, s.handleDeleteCellar)

	register(s.api, huma.Operation{
		OperationID: "reassignCellar",
		Method:      http.MethodPost,
		Path:        "/api/v1/cellars/reassign",
		Summary:     "Reassign wines",
		Description: "Moves every active and experienced wine from one cellar to another",
		Tags:        []string{"Cellars"},
		Security:    bearerSecurity,
	}, s.handleReassignCellar)

	register(s.api, huma.Operation{
		OperationID: "getActiveCellar",
		Method:      http.MethodGet,
		Path:        "/api/v1/cellars/active",
		Summary:     "Active cellar",
		Description: "Returns the cellar new wines go into",
		Tags:        []string{"Cellars"},
		Security:    bearerSecurity,
	}, s.handleGetActiveCellar)

	register(s.api, huma.Operation{
		OperationID: "setActiveCellar",
		Method:      http.MethodPut,
		Path:        "/api/v1/cellars/active",
		Summary:     "Select cellar",
		Description: "Sets the active cellar",
		Tags:        []string{"Cellars"},
		Security:    bearerSecurity,
	}, s.handleSetActiveCellar)
}

// === DTOs ===

// CreateCellarRequest is the request body for creating a cellar.
type CreateCellarRequest struct {
	ID   string `json:"id" maxLength:"64" doc:"Cellar slug, lowercased on save"`
	Name string `json:"name,omitempty" maxLength:"200" doc:"Display name, defaults to the slug"`
}

// CreateCellarInput wraps the create request for Huma.
type CreateCellarInput struct {
	Body CreateCellarRequest
}

// CellarOutput wraps a cellar for Huma.
type CellarOutput struct {
	Body *domain.Cellar
}

// CellarsOutput wraps a cellar list for Huma.
type CellarsOutput struct {
	Body []domain.Cellar
}

// DeleteCellarInput contains parameters for deleting a cellar.
type DeleteCellarInput struct {
	ID         string `path:"id" doc:"Cellar ID"`
	ReassignTo string `query:"reassignTo" doc:"Cellar that receives the wines"`
}

// ReassignRequest is the request body for a bulk move.
type ReassignRequest struct {
	From string `json:"from" doc:"Source cellar, \"default\" includes wines with no cellar"`
	To   string `json:"to" doc:"Target cellar"`
}

// ReassignInput wraps the reassign request for Huma.
type ReassignInput struct {
	Body ReassignRequest
}

// ReassignOutput wraps the move counts for Huma.
type ReassignOutput struct {
	Body domain.ReassignResult
}

// ActiveCellarResponse names the active cellar.
type ActiveCellarResponse struct {
	ID string `json:"id" doc:"Active cellar ID"`
}

// ActiveCellarOutput wraps the active cellar for Huma.
type ActiveCellarOutput struct {
	Body ActiveCellarResponse
}

// SetActiveCellarInput wraps the selection for Huma.
type SetActiveCellarInput struct {
	Body ActiveCellarResponse
}

// === Handlers ===

func (s *Server) handleListCellars(ctx context.Context, _ *struct{}) (*CellarsOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	cellars, err := s.services.Cellars.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	if cellars == nil {
		cellars = []domain.Cellar{}
	}
	return &CellarsOutput{Body: cellars}, nil
}

func (s *Server) handleCreateCellar(ctx context.Context, input *CreateCellarInput) (*CellarOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	cellar, err := s.services.Cellars.Create(ctx, sess, input.Body.ID, input.Body.Name)
	if err != nil {
		return nil, err
	}
	return &CellarOutput{Body: cellar}, nil
}

func (s *Server) handleDeleteCellar(ctx context.Context, input *DeleteCellarInput) (*MessageOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Cellars.Delete(ctx, sess, input.ID, input.ReassignTo); err != nil {
		return nil, err
	}
	return message("Cellar deleted"), nil
}

func (s *Server) handleReassignCellar(ctx context.Context, input *ReassignInput) (*ReassignOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	moved, err := s.services.Cellars.ReassignBulk(ctx, sess, input.Body.From, input.Body.To)
	if err != nil {
		return nil, err
	}
	return &ReassignOutput{Body: moved}, nil
}

func (s *Server) handleGetActiveCellar(ctx context.Context, _ *struct{}) (*ActiveCellarOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return &ActiveCellarOutput{Body: ActiveCellarResponse{ID: sess.ActiveCellar()}}, nil
}

func (s *Server) handleSetActiveCellar(ctx context.Context, input *SetActiveCellarInput) (*ActiveCellarOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Cellars.SetActiveCellar(ctx, sess, input.Body.ID); err != nil {
		return nil, err
	}

	active, err := s.services.Cellars.ActiveCellar(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return &ActiveCellarOutput{Body: ActiveCellarResponse{ID: active}}, nil
}

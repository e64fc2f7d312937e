package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mycellarapp/cellar-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search wines",
		Description: "Full-text search over active wines by producer, name, region, location and notes",
		Tags:        []string{"Search"},
		Security:    bearerSecurity,
	}, s.handleSearch)
}

// === DTOs ===

// SearchInput contains parameters for searching wines.
type SearchInput struct {
	Query   string `query:"q" maxLength:"200" doc:"Search query"`
	Cellar  string `query:"cellar" doc:"Restrict to one cellar"`
	Colors  string `query:"colors" maxLength:"100" doc:"Comma-separated colors (red,white,rose,sparkling,other)"`
	MinYear int    `query:"minYear" doc:"Earliest vintage"`
	MaxYear int    `query:"maxYear" doc:"Latest vintage"`
	Limit   int    `query:"limit" maximum:"100" doc:"Max results (default 20)"`
	Offset  int    `query:"offset" minimum:"0" doc:"Pagination offset (default 0)"`
	Sort    string `query:"sort" enum:"relevance,producer,year,recent," doc:"Sort field"`
	Order   string `query:"order" enum:"asc,desc," doc:"Sort order"`
	Facets  bool   `query:"facets" doc:"Include facets in response"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body *search.SearchResult
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	params := search.DefaultSearchParams()
	params.Query = strings.TrimSpace(input.Query)
	params.CellarID = strings.TrimSpace(input.Cellar)
	params.MinYear = input.MinYear
	params.MaxYear = input.MaxYear
	params.Offset = input.Offset
	params.IncludeFacets = input.Facets
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	if input.Sort != "" {
		params.SortBy = input.Sort
	}
	if input.Order != "" {
		params.SortOrder = input.Order
	}
	if input.Colors != "" {
		for c := range strings.SplitSeq(input.Colors, ",") {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				params.Colors = append(params.Colors, c)
			}
		}
	}

	s.logger.Debug("Search request received",
		"user_id", sess.UserID,
		"query", params.Query,
		"limit", params.Limit,
	)

	result, err := s.services.Search.Search(ctx, sess, params)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: result}, nil
}

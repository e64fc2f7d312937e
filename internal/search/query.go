package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query. UserID is required.
type SearchParams struct {
	UserID string
	Query  string

	// Filters
	CellarID string   // Exact cellar; empty searches every cellar
	Colors   []string // Any of these colors
	MinYear  int
	MaxYear  int

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "producer", "year", "recent"
	SortOrder string // "asc", "desc"

	IncludeFacets bool
	Highlight     bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"tookMs"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets"`
}

// SearchHit represents a single matching wine.
type SearchHit struct {
	WineID     string            `json:"wineId"`
	Score      float64           `json:"score"`
	Producer   string            `json:"producer"`
	Name       string            `json:"name,omitempty"`
	Region     string            `json:"region,omitempty"`
	Location   string            `json:"location,omitempty"`
	CellarID   string            `json:"cellarId"`
	Color      string            `json:"color,omitempty"`
	Year       int               `json:"year,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Colors  []FacetCount `json:"colors,omitempty"`
	Cellars []FacetCount `json:"cellars,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a query scoped to params.UserID.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.UserID == "" {
		return nil, fmt.Errorf("search requires a user id")
	}
	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.IncludeFacets {
		searchRequest.AddFacet("color", bleve.NewFacetRequest("color", 10))
		searchRequest.AddFacet("cellar_id", bleve.NewFacetRequest("cellar_id", 20))
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("producer")
	}

	searchRequest.Fields = []string{
		"wine_id", "producer", "name", "region", "location", "cellar_id", "color", "year",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := SearchHit{Score: hit.Score}
		h.WineID, _ = hit.Fields["wine_id"].(string)
		h.Producer, _ = hit.Fields["producer"].(string)
		h.Name, _ = hit.Fields["name"].(string)
		h.Region, _ = hit.Fields["region"].(string)
		h.Location, _ = hit.Fields["location"].(string)
		h.CellarID, _ = hit.Fields["cellar_id"].(string)
		h.Color, _ = hit.Fields["color"].(string)
		if y, ok := hit.Fields["year"].(float64); ok {
			h.Year = int(y)
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params. The user filter
// is always present.
func buildSearchQuery(params SearchParams) query.Query {
	userQuery := bleve.NewTermQuery(params.UserID)
	userQuery.SetField("user_id")
	queries := []query.Query{userQuery}

	if q := strings.TrimSpace(params.Query); q != "" {
		var textQueries []query.Query

		producerMatch := bleve.NewMatchQuery(q)
		producerMatch.SetField("producer")
		producerMatch.SetBoost(3.0)
		textQueries = append(textQueries, producerMatch)

		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(2.5)
		textQueries = append(textQueries, nameMatch)

		regionMatch := bleve.NewMatchQuery(q)
		regionMatch.SetField("region")
		regionMatch.SetBoost(1.5)
		textQueries = append(textQueries, regionMatch)

		notesMatch := bleve.NewMatchQuery(q)
		notesMatch.SetField("notes")
		notesMatch.SetBoost(0.5)
		textQueries = append(textQueries, notesMatch)

		locationTerm := bleve.NewTermQuery(strings.ToLower(q))
		locationTerm.SetField("location")
		locationTerm.SetBoost(2.0)
		textQueries = append(textQueries, locationTerm)

		colorTerm := bleve.NewTermQuery(strings.ToLower(q))
		colorTerm.SetField("color")
		textQueries = append(textQueries, colorTerm)

		// Typo tolerance on the producer.
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("producer")
		fuzzy.SetBoost(0.8)
		textQueries = append(textQueries, fuzzy)

		if len(q) >= 2 {
			for _, field := range []string{"producer", "name"} {
				prefix := bleve.NewPrefixQuery(strings.ToLower(q))
				prefix.SetField(field)
				prefix.SetBoost(0.5)
				textQueries = append(textQueries, prefix)
			}
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.CellarID != "" {
		cq := bleve.NewTermQuery(params.CellarID)
		cq.SetField("cellar_id")
		queries = append(queries, cq)
	}

	if len(params.Colors) > 0 {
		colorQueries := make([]query.Query, len(params.Colors))
		for i, c := range params.Colors {
			tq := bleve.NewTermQuery(strings.ToLower(c))
			tq.SetField("color")
			colorQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(colorQueries...))
	}

	if params.MinYear > 0 || params.MaxYear > 0 {
		lo := float64(params.MinYear)
		hi := float64(params.MaxYear)
		if params.MaxYear == 0 {
			hi = 3000
		}
		inclusive := true
		rangeQuery := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		rangeQuery.SetField("year")
		queries = append(queries, rangeQuery)
	}

	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	desc := params.SortOrder == "desc"
	switch params.SortBy {
	case "producer":
		if desc {
			req.SortBy([]string{"-producer", "-year"})
		} else {
			req.SortBy([]string{"producer", "year"})
		}
	case "year":
		if desc {
			req.SortBy([]string{"-year"})
		} else {
			req.SortBy([]string{"year"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"added_at"})
		} else {
			req.SortBy([]string{"-added_at"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}

func extractFacets(result *bleve.SearchResult) SearchFacets {
	var facets SearchFacets
	if f, ok := result.Facets["color"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			facets.Colors = append(facets.Colors, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	if f, ok := result.Facets["cellar_id"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			facets.Cellars = append(facets.Cellars, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	return facets
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/search"
	"github.com/mycellarapp/cellar-server/internal/store"
)

// SearchService answers full-text queries over the user's active wines.
type SearchService struct {
	index  *search.SearchIndex
	store  store.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, store store.Store, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SearchService{
		index:  index,
		store:  store,
		logger: logger,
	}
}

// Search runs params against the session user's documents only.
func (s *SearchService) Search(ctx context.Context, sess Session, params search.SearchParams) (*search.SearchResult, error) {
	if err := sess.check(); err != nil {
		return nil, err
	}
	params.UserID = sess.UserID
	params.CellarID = domain.NormalizeCellarSlug(params.CellarID)

	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Search failed.")
	}
	return res, nil
}

// DocumentCount returns the number of indexed wines.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// ReindexAll replaces every user's documents with the stored active wines.
// This is a heavy operation - run it at startup or after a migration.
func (s *SearchService) ReindexAll(ctx context.Context) error {
	s.logger.Info("starting full reindex")

	users, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	total := 0
	for _, userID := range users {
		wines, err := s.store.ListWines(ctx, userID, store.WineFilter{})
		if err != nil {
			return fmt.Errorf("list wines for %s: %w", userID, err)
		}
		if err := s.index.ReplaceUser(ctx, userID, wines); err != nil {
			return fmt.Errorf("index wines for %s: %w", userID, err)
		}
		total += len(wines)
	}

	s.logger.Info("reindex complete", "users", len(users), "wines", total)
	return nil
}

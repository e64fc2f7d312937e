package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mycellarapp/cellar-server/internal/domain"
	"github.com/mycellarapp/cellar-server/internal/store"
)

// MoveCount is the per-user outcome of a data migration.
type MoveCount struct {
	UserID      string `json:"userId"`
	Wines       int    `json:"wines"`
	Experienced int    `json:"experienced"`
}

// MigrationService runs one-off data fixes across every user.
type MigrationService struct {
	store  store.Store
	index  indexHook
	logger *slog.Logger
}

// NewMigrationService creates a MigrationService. index may be nil.
func NewMigrationService(st store.Store, index WineIndexer, logger *slog.Logger) *MigrationService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MigrationService{store: st, index: indexHook{index: index, logger: logger}, logger: logger}
}

// AddCellarID tags every untagged record with "default". Users with nothing
// to tag are left out of the result.
func (s *MigrationService) AddCellarID(ctx context.Context) ([]MoveCount, error) {
	counts, err := s.store.BackfillCellarID(ctx)
	if err != nil {
		return nil, fmt.Errorf("backfill cellar id: %w", err)
	}
	out := make([]MoveCount, 0, len(counts))
	for _, c := range counts {
		s.logger.Info("cellar id backfilled", "user_id", c.UserID, "wines", c.Wines, "experienced", c.Experienced)
		out = append(out, MoveCount{UserID: c.UserID, Wines: c.Wines, Experienced: c.Experienced})
	}
	return out, nil
}

// ReassignByLocation moves records whose normalized location is a key of
// mapping into the mapped cellar. Each user's moves commit as one batch.
func (s *MigrationService) ReassignByLocation(ctx context.Context, mapping map[string]string) ([]MoveCount, error) {
	if len(mapping) == 0 {
		return nil, nil
	}
	users, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var out []MoveCount
	for _, userID := range users {
		count, err := s.reassignUser(ctx, userID, mapping)
		if err != nil {
			return out, fmt.Errorf("reassign user %s: %w", userID, err)
		}
		if count.Wines+count.Experienced == 0 {
			continue
		}
		s.logger.Info("records reassigned by location", "user_id", userID,
			"wines", count.Wines, "experienced", count.Experienced)
		out = append(out, count)
	}
	return out, nil
}

func (s *MigrationService) reassignUser(ctx context.Context, userID string, mapping map[string]string) (MoveCount, error) {
	count := MoveCount{UserID: userID}

	wines, err := s.store.ListWines(ctx, userID, store.WineFilter{})
	if err != nil {
		return count, err
	}
	exps, err := s.store.ListExperienced(ctx, userID, store.WineFilter{})
	if err != nil {
		return count, err
	}

	batch := s.store.NewBatch(userID)
	var moved []*domain.Wine
	for i := range wines {
		w := &wines[i]
		if to, ok := mapping[domain.NormalizeLocation(w.Location)]; ok && w.CellarID != to {
			batch.MoveWine(w.ID, to)
			w.CellarID = to
			moved = append(moved, w)
			count.Wines++
		}
	}
	for _, e := range exps {
		if to, ok := mapping[domain.NormalizeLocation(e.Location)]; ok && e.CellarID != to {
			batch.MoveExperienced(e.ID, to)
			count.Experienced++
		}
	}
	if batch.Len() == 0 {
		return count, nil
	}
	if err := batch.Commit(ctx); err != nil {
		return MoveCount{UserID: userID}, err
	}
	s.index.put(userID, moved...)
	return count, nil
}

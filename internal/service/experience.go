package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/filter"
	"github.com/mycellarapp/cellar-server/internal/sse"
	"github.com/mycellarapp/cellar-server/internal/store"
)

// ExperienceService moves wines between the active and experienced
// collections. Each move is one batch.
type ExperienceService struct {
	wines  *WineService
	store  store.Store
	notify *Notifier
	logger *slog.Logger
}

// NewExperienceService creates an ExperienceService sharing the wine
// service's store, index and write lock.
func NewExperienceService(wines *WineService, logger *slog.Logger) *ExperienceService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExperienceService{
		wines:  wines,
		store:  wines.store,
		notify: wines.notify,
		logger: logger,
	}
}

func ratingError() error {
	return domainerrors.Validationf("Rating must be between 0 and %d.", domain.MaxRating)
}

// Experience records wine as consumed. wine names the active record; the
// stored copy is re-read under the write lock, written to the experienced
// collection under the same id and removed from the active one in a single
// batch. A wine that is no longer active is NotFound.
func (s *ExperienceService) Experience(ctx context.Context, sess Session, wine *domain.Wine, notes string, rating int, consumedDate string) error {
	if err := sess.check(); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	if wine == nil || strings.TrimSpace(wine.ID) == "" {
		return s.notify.Fail(sess.UserID, domainerrors.NotFound("Wine not found."))
	}
	if !domain.ValidRating(rating) {
		return s.notify.Fail(sess.UserID, ratingError())
	}

	now := s.wines.now()
	consumedAt, err := domain.ParseConsumedDate(consumedDate, now)
	if err != nil {
		return s.notify.Fail(sess.UserID, domainerrors.Validationf("Invalid consumed date %q.", consumedDate))
	}

	unlock := s.wines.locks.lock(sess.UserID)
	defer unlock()

	current, err := s.store.GetWine(ctx, sess.UserID, wine.ID)
	if err != nil {
		return s.notify.Fail(sess.UserID, storeErr(err, "Wine not found."))
	}

	exp := &domain.ExperiencedWine{
		Wine:          *current,
		TastingNotes:  notes,
		Rating:        rating,
		ConsumedAt:    consumedAt,
		ExperiencedAt: now,
	}
	exp.CellarID = domain.ResolveCellar(current.CellarID, sess.ActiveCellarID)
	if exp.AddedAt.IsZero() {
		exp.AddedAt = now
	}

	batch := s.store.NewBatch(sess.UserID)
	batch.PutExperienced(exp)
	batch.DeleteWine(wine.ID)
	if err := batch.Commit(ctx); err != nil {
		return s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}

	s.wines.index.remove(sess.UserID, wine.ID)
	s.notify.Emit(sse.NewWineDeletedEvent(sess.UserID, wine.ID))
	s.notify.Emit(sse.NewExperiencedCreatedEvent(sess.UserID, exp))
	s.logger.Info("wine experienced", "user_id", sess.UserID, "wine_id", wine.ID, "rating", rating)
	return nil
}

// Restore moves an experienced record back into the active collection under
// the same id. The location must be free in the target cellar.
func (s *ExperienceService) Restore(ctx context.Context, sess Session, experiencedID string, input domain.WineInput, active domain.WineSet) error {
	if err := sess.check(); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	if strings.TrimSpace(experiencedID) == "" {
		return s.notify.Fail(sess.UserID, domainerrors.InvalidID("Missing wine id."))
	}

	unlock := s.wines.locks.lock(sess.UserID)
	defer unlock()

	existing, err := s.store.GetExperienced(ctx, sess.UserID, experiencedID)
	if err != nil {
		return s.notify.Fail(sess.UserID, storeErr(err, "Experienced wine not found."))
	}

	cellarID := domain.ResolveCellar(input.CellarID, sess.ActiveCellarID)
	w := wineFromInput(input, cellarID)
	w.ID = experiencedID
	if w.Color == "" {
		w.Color = domain.ColorRed
	}
	if err := s.wines.validate(w); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}

	set, err := s.wines.snapshotFor(ctx, sess, active, cellarID)
	if err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	if set.LocationTaken(w.Location, cellarID, "") {
		return s.notify.Fail(sess.UserID, domainerrors.DuplicateLocationf("Location %q is already in use.", w.Location))
	}

	if input.Notes == nil {
		w.Notes = existing.Notes
	}
	w.AddedAt = existing.AddedAt
	if w.AddedAt.IsZero() {
		w.AddedAt = s.wines.now()
	}

	batch := s.store.NewBatch(sess.UserID)
	batch.PutWine(w)
	batch.DeleteExperienced(experiencedID)
	if err := batch.Commit(ctx); err != nil {
		return s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}

	s.wines.index.put(sess.UserID, w)
	s.notify.Emit(sse.NewExperiencedDeletedEvent(sess.UserID, experiencedID, true))
	s.notify.Emit(sse.NewWineCreatedEvent(sess.UserID, w))
	s.logger.Info("wine restored", "user_id", sess.UserID, "wine_id", experiencedID, "cellar_id", cellarID)
	return nil
}

// DeleteExperienced removes an experienced record. Missing records succeed.
func (s *ExperienceService) DeleteExperienced(ctx context.Context, sess Session, experiencedID string) error {
	if err := sess.check(); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	if strings.TrimSpace(experiencedID) == "" {
		return s.notify.Fail(sess.UserID, domainerrors.InvalidID("Missing wine id."))
	}

	if err := s.store.DeleteExperienced(ctx, sess.UserID, experiencedID); err != nil {
		return s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}

	s.notify.Emit(sse.NewExperiencedDeletedEvent(sess.UserID, experiencedID, false))
	s.logger.Info("experienced wine deleted", "user_id", sess.UserID, "wine_id", experiencedID)
	return nil
}

// UpdateExperienced edits an experienced record. consumedAt is taken from the
// input date, or now when the date is blank.
func (s *ExperienceService) UpdateExperienced(ctx context.Context, sess Session, experiencedID string, input domain.ExperiencedInput) error {
	if err := sess.check(); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	if input.Rating != nil && !domain.ValidRating(*input.Rating) {
		return s.notify.Fail(sess.UserID, ratingError())
	}

	existing, err := s.store.GetExperienced(ctx, sess.UserID, experiencedID)
	if err != nil {
		return s.notify.Fail(sess.UserID, storeErr(err, "Experienced wine not found."))
	}

	consumedAt, err := domain.ParseConsumedDate(input.ConsumedDate, s.wines.now())
	if err != nil {
		return s.notify.Fail(sess.UserID, domainerrors.Validationf("Invalid consumed date %q.", input.ConsumedDate))
	}

	cellarID := domain.ResolveCellar(input.CellarID, existing.Cellar())

	updated := &domain.ExperiencedWine{
		Wine:          *wineFromInput(input.WineInput, cellarID),
		TastingNotes:  existing.TastingNotes,
		Rating:        existing.Rating,
		ConsumedAt:    consumedAt,
		ExperiencedAt: existing.ExperiencedAt,
	}
	updated.ID = existing.ID
	updated.AddedAt = existing.AddedAt
	if err := s.wines.validate(&updated.Wine); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	if input.Notes == nil {
		updated.Notes = existing.Notes
	}
	if input.TastingNotes != nil {
		updated.TastingNotes = *input.TastingNotes
	}
	if input.Rating != nil {
		updated.Rating = *input.Rating
	}

	if err := s.store.UpdateExperienced(ctx, sess.UserID, updated); err != nil {
		return s.notify.Fail(sess.UserID, storeErr(err, "Experienced wine not found."))
	}

	s.notify.Emit(sse.NewExperiencedUpdatedEvent(sess.UserID, updated))
	s.logger.Info("experienced wine updated", "user_id", sess.UserID, "wine_id", experiencedID)
	return nil
}

// GetExperienced returns one experienced record.
func (s *ExperienceService) GetExperienced(ctx context.Context, sess Session, experiencedID string) (*domain.ExperiencedWine, error) {
	if err := sess.check(); err != nil {
		return nil, err
	}
	e, err := s.store.GetExperienced(ctx, sess.UserID, experiencedID)
	if err != nil {
		return nil, storeErr(err, "Experienced wine not found.")
	}
	return e, nil
}

// ListExperienced returns experienced records matching opts, most recently
// consumed first. Where expressions see the wine attributes only.
func (s *ExperienceService) ListExperienced(ctx context.Context, sess Session, opts ListOptions) ([]domain.ExperiencedWine, error) {
	if err := sess.check(); err != nil {
		return nil, err
	}
	var where *filter.Filter
	if strings.TrimSpace(opts.Where) != "" {
		f, err := filter.Compile(opts.Where)
		if err != nil {
			return nil, err
		}
		where = f
	}

	all, err := s.store.ListExperienced(ctx, sess.UserID, store.WineFilter{CellarID: opts.scope(sess)})
	if err != nil {
		return nil, domainerrors.Store(err)
	}

	term := strings.TrimSpace(opts.Search)
	out := make([]domain.ExperiencedWine, 0, len(all))
	for _, e := range all {
		if !domain.MatchesSearch(&e.Wine, term) {
			continue
		}
		if where != nil {
			ok, err := where.Match(&e.Wine)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, e)
	}
	domain.SortExperienced(out)
	return out, nil
}

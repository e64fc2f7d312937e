package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/sse"
	"github.com/mycellarapp/cellar-server/internal/store"
)

// Preferences holds the per-user active cellar selection. *kv.Store
// implements it.
type Preferences interface {
	ActiveCellar(ctx context.Context, userID string) (string, error)
	SetActiveCellar(ctx context.Context, userID, cellarID string) error
}

// CellarService manages a user's named cellars and the records tagged with them.
type CellarService struct {
	store  store.Store
	prefs  Preferences
	index  indexHook
	notify *Notifier
	now    func() time.Time
	logger *slog.Logger
}

// NewCellarService creates a CellarService. index may be nil.
func NewCellarService(st store.Store, prefs Preferences, index WineIndexer, notify *Notifier, logger *slog.Logger) *CellarService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CellarService{
		store:  st,
		prefs:  prefs,
		index:  indexHook{index: index, logger: logger},
		notify: notify,
		now:    time.Now,
		logger: logger,
	}
}

// Create upserts a cellar by slug and makes it the active selection. An
// existing cellar keeps its creation time and takes the new name.
func (s *CellarService) Create(ctx context.Context, sess Session, cellarID, name string) (*domain.Cellar, error) {
	if err := sess.check(); err != nil {
		return nil, s.notify.Fail(sess.UserID, err)
	}
	slug := domain.NormalizeCellarSlug(cellarID)
	if slug == "" {
		return nil, s.notify.Fail(sess.UserID, domainerrors.InvalidID("Missing cellar id"))
	}
	if slug == domain.DefaultCellarID {
		return nil, s.notify.Fail(sess.UserID, domainerrors.InvalidID(`"default" is reserved for wines without a cellar.`))
	}
	if name = strings.TrimSpace(name); name == "" {
		name = slug
	}

	c, err := s.store.UpsertCellar(ctx, sess.UserID, &domain.Cellar{ID: slug, Name: name, CreatedAt: s.now()})
	if err != nil {
		return nil, s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}
	if err := s.prefs.SetActiveCellar(ctx, sess.UserID, slug); err != nil {
		return nil, s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}

	s.notify.Emit(sse.NewCellarCreatedEvent(sess.UserID, c))
	s.notify.Emit(sse.NewCellarActivatedEvent(sess.UserID, slug))
	s.logger.Info("cellar saved", "user_id", sess.UserID, "cellar_id", slug)
	return c, nil
}

// List returns the user's cellars, oldest first.
func (s *CellarService) List(ctx context.Context, sess Session) ([]domain.Cellar, error) {
	if err := sess.check(); err != nil {
		return nil, err
	}
	cellars, err := s.store.ListCellars(ctx, sess.UserID)
	if err != nil {
		return nil, domainerrors.Store(err)
	}
	domain.SortCellars(cellars)
	return cellars, nil
}

// tagged returns the ids of active and experienced records in cellarID.
// sweepLegacy includes untagged records when cellarID is "default".
func (s *CellarService) tagged(ctx context.Context, userID, cellarID string, sweepLegacy bool) (wineIDs, expIDs []string, err error) {
	f := store.WineFilter{CellarID: cellarID, ExplicitOnly: !sweepLegacy}

	wines, err := s.store.ListWines(ctx, userID, f)
	if err != nil {
		return nil, nil, err
	}
	exps, err := s.store.ListExperienced(ctx, userID, f)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range wines {
		wineIDs = append(wineIDs, w.ID)
	}
	for _, e := range exps {
		expIDs = append(expIDs, e.ID)
	}
	return wineIDs, expIDs, nil
}

// reindexMoved refreshes the cellar field of moved wines in the search index.
func (s *CellarService) reindexMoved(ctx context.Context, userID string, wineIDs []string) {
	if s.index.index == nil {
		return
	}
	for _, id := range wineIDs {
		w, err := s.store.GetWine(ctx, userID, id)
		if err != nil {
			s.logger.Warn("failed to reload moved wine", "user_id", userID, "wine_id", id, "error", err)
			continue
		}
		s.index.put(userID, w)
	}
}

// Delete removes a cellar. Records still tagged with it block the delete
// unless reassignTo names a destination, in which case the moves and the
// delete commit together.
func (s *CellarService) Delete(ctx context.Context, sess Session, cellarID, reassignTo string) error {
	if err := sess.check(); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	target := domain.NormalizeCellarSlug(cellarID)
	reassignTo = domain.NormalizeCellarSlug(reassignTo)
	if target == "" {
		return s.notify.Fail(sess.UserID, domainerrors.InvalidID("Missing cellar id"))
	}
	if target == domain.DefaultCellarID {
		return s.notify.Fail(sess.UserID, domainerrors.InvalidID("The default cellar cannot be deleted."))
	}
	if reassignTo != "" && reassignTo == target {
		return s.notify.Fail(sess.UserID, domainerrors.CannotReassignToSelf("Cannot reassign to the same cellar."))
	}

	wineIDs, expIDs, err := s.tagged(ctx, sess.UserID, target, false)
	if err != nil {
		return s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}
	if reassignTo == "" && len(wineIDs)+len(expIDs) > 0 {
		return s.notify.Fail(sess.UserID, domainerrors.CellarNotEmpty("Cellar has wines. Reassign them before deletion."))
	}

	batch := s.store.NewBatch(sess.UserID)
	for _, id := range wineIDs {
		batch.MoveWine(id, reassignTo)
	}
	for _, id := range expIDs {
		batch.MoveExperienced(id, reassignTo)
	}
	batch.DeleteCellar(target)
	if err := batch.Commit(ctx); err != nil {
		return s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}

	moved := domain.ReassignResult{MovedWines: len(wineIDs), MovedExperienced: len(expIDs)}
	s.reindexMoved(ctx, sess.UserID, wineIDs)

	active, err := s.prefs.ActiveCellar(ctx, sess.UserID)
	if err == nil && active == target {
		err = s.prefs.SetActiveCellar(ctx, sess.UserID, "")
	}
	if err != nil {
		s.logger.Warn("failed to clear active cellar", "user_id", sess.UserID, "cellar_id", target, "error", err)
	}

	s.notify.Emit(sse.NewCellarDeletedEvent(sess.UserID, target, reassignTo, moved))
	s.logger.Info("cellar deleted", "user_id", sess.UserID, "cellar_id", target,
		"reassigned_to", reassignTo, "moved", moved.Total())
	return nil
}

// ReassignBulk moves every record in from to to as one batch. Moving out of
// "default" also sweeps records that were never tagged.
func (s *CellarService) ReassignBulk(ctx context.Context, sess Session, from, to string) (domain.ReassignResult, error) {
	var moved domain.ReassignResult
	if err := sess.check(); err != nil {
		return moved, s.notify.Fail(sess.UserID, err)
	}
	from = domain.NormalizeCellarSlug(from)
	to = domain.NormalizeCellarSlug(to)
	if from == "" || to == "" {
		return moved, s.notify.Fail(sess.UserID, domainerrors.InvalidID("Missing cellar id"))
	}
	if from == to {
		return moved, nil
	}

	wineIDs, expIDs, err := s.tagged(ctx, sess.UserID, from, from == domain.DefaultCellarID)
	if err != nil {
		return moved, s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}
	if len(wineIDs)+len(expIDs) == 0 {
		return moved, nil
	}

	batch := s.store.NewBatch(sess.UserID)
	for _, id := range wineIDs {
		batch.MoveWine(id, to)
	}
	for _, id := range expIDs {
		batch.MoveExperienced(id, to)
	}
	if err := batch.Commit(ctx); err != nil {
		return moved, s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}

	moved = domain.ReassignResult{MovedWines: len(wineIDs), MovedExperienced: len(expIDs)}
	s.reindexMoved(ctx, sess.UserID, wineIDs)
	s.notify.Emit(sse.NewCellarReassignedEvent(sess.UserID, from, to, moved))
	s.notify.Info(sess.UserID, fmt.Sprintf("Moved %d cellar wines and %d experienced wines from %q to %q.",
		moved.MovedWines, moved.MovedExperienced, from, to))
	s.logger.Info("cellar reassigned", "user_id", sess.UserID, "from", from, "to", to,
		"wines", moved.MovedWines, "experienced", moved.MovedExperienced)
	return moved, nil
}

// ActiveCellar resolves the user's selection. A stale selection falls back to
// the oldest cellar; no cellars at all means "default".
func (s *CellarService) ActiveCellar(ctx context.Context, userID string) (string, error) {
	selected, err := s.prefs.ActiveCellar(ctx, userID)
	if err != nil {
		return "", domainerrors.Store(err)
	}
	if selected == domain.DefaultCellarID {
		return selected, nil
	}

	cellars, err := s.store.ListCellars(ctx, userID)
	if err != nil {
		return "", domainerrors.Store(err)
	}
	domain.SortCellars(cellars)
	for _, c := range cellars {
		if c.ID == selected {
			return selected, nil
		}
	}
	if len(cellars) > 0 {
		return cellars[0].ID, nil
	}
	return domain.DefaultCellarID, nil
}

// SetActiveCellar stores the selection. "default" is always allowed; any
// other id must exist.
func (s *CellarService) SetActiveCellar(ctx context.Context, sess Session, cellarID string) error {
	if err := sess.check(); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	slug := domain.NormalizeCellarID(domain.NormalizeCellarSlug(cellarID))
	if slug != domain.DefaultCellarID {
		if _, err := s.store.GetCellar(ctx, sess.UserID, slug); err != nil {
			return s.notify.Fail(sess.UserID, storeErr(err, fmt.Sprintf("Cellar %q not found.", slug)))
		}
	}
	if err := s.prefs.SetActiveCellar(ctx, sess.UserID, slug); err != nil {
		return s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}
	s.notify.Emit(sse.NewCellarActivatedEvent(sess.UserID, slug))
	return nil
}

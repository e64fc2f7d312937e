package service

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/filter"
	"github.com/mycellarapp/cellar-server/internal/sse"
	"github.com/mycellarapp/cellar-server/internal/store"
	"github.com/mycellarapp/cellar-server/internal/validation"
)

// WineService owns writes to the active wine collection.
type WineService struct {
	store  store.Store
	index  indexHook
	notify *Notifier
	locks  *userLocks
	valid  *validation.Validator
	now    func() time.Time
	logger *slog.Logger
}

// NewWineService creates a WineService. index may be nil.
func NewWineService(st store.Store, index WineIndexer, notify *Notifier, logger *slog.Logger) *WineService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WineService{
		store:  st,
		index:  indexHook{index: index, logger: logger},
		notify: notify,
		locks:  newUserLocks(),
		valid:  validation.New(),
		now:    time.Now,
		logger: logger,
	}
}

// ListOptions narrows a wine or experienced listing.
type ListOptions struct {
	// CellarID scopes the listing; empty means the session's active cellar.
	CellarID string
	// AllCellars ignores CellarID and the active cellar.
	AllCellars bool
	// Search is a case-insensitive substring over the visible fields.
	Search string
	// Where is an expression evaluated per wine, see package filter.
	Where string
}

func (o ListOptions) scope(sess Session) string {
	if o.AllCellars {
		return ""
	}
	if c := domain.NormalizeCellarSlug(o.CellarID); c != "" {
		return c
	}
	return sess.ActiveCellar()
}

// colorFrom parses the user's color, keeping unknown text lowercased.
func colorFrom(raw string) domain.Color {
	if c, ok := domain.ParseColor(raw); ok {
		return c
	}
	return domain.Color(strings.ToLower(strings.TrimSpace(raw)))
}

// wineForm is the validated view of a wine about to be written.
type wineForm struct {
	Producer    string `json:"producer" validate:"required,max=200"`
	Region      string `json:"region" validate:"required,max=200"`
	Color       string `json:"color" validate:"required,wine_color"`
	Location    string `json:"location" validate:"required,max=100"`
	Year        *int   `json:"year" validate:"omitempty,vintage"`
	WindowStart *int   `json:"drinkingWindowStartYear" validate:"omitempty,window_start"`
	WindowEnd   *int   `json:"drinkingWindowEndYear" validate:"omitempty,window_end"`
}

// validate checks the required fields, the color list and the year bounds of
// w, and that its drinking window does not end before it starts.
func (s *WineService) validate(w *domain.Wine) error {
	err := s.valid.Validate(wineForm{
		Producer:    w.Producer,
		Region:      w.Region,
		Color:       string(w.Color),
		Location:    w.Location,
		Year:        w.Year,
		WindowStart: w.DrinkingWindowStartYear,
		WindowEnd:   w.DrinkingWindowEndYear,
	})
	if err != nil {
		return invalidWine(err)
	}
	if start, end := w.DrinkingWindowStartYear, w.DrinkingWindowEndYear; start != nil && end != nil && *start > *end {
		return invalidWine(domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"drinkingWindowEndYear": "must not be earlier than drinkingWindowStartYear",
		}))
	}
	return nil
}

// invalidWine spells the field errors out in the message, which is all an
// import line or a notice shows.
func invalidWine(err error) error {
	de, ok := domainerrors.AsError(err)
	if !ok {
		return err
	}
	fields, ok := de.Details.(map[string]string)
	if !ok || len(fields) == 0 {
		return err
	}
	parts := make([]string, 0, len(fields))
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		parts = append(parts, name+" "+fields[name])
	}
	return domainerrors.ValidationWithDetails("Invalid wine: "+strings.Join(parts, "; ")+".", fields)
}

// wineFromInput builds the stored form of input. Notes absent become "".
func wineFromInput(in domain.WineInput, cellarID string) *domain.Wine {
	w := &domain.Wine{
		Name:                    strings.TrimSpace(in.Name),
		Producer:                strings.TrimSpace(in.Producer),
		Year:                    domain.CoerceYear(in.Year),
		Region:                  strings.TrimSpace(in.Region),
		Color:                   colorFrom(in.Color),
		Location:                strings.TrimSpace(in.Location),
		DrinkingWindowStartYear: domain.CoerceYear(in.DrinkingWindowStartYear),
		DrinkingWindowEndYear:   domain.CoerceYear(in.DrinkingWindowEndYear),
		CellarID:                cellarID,
	}
	if in.Notes != nil {
		w.Notes = *in.Notes
	}
	return w
}

// Snapshot returns the user's active wines in cellarID, or in every cellar
// when cellarID is empty.
func (s *WineService) Snapshot(ctx context.Context, sess Session, cellarID string) (domain.WineSet, error) {
	if err := sess.check(); err != nil {
		return nil, err
	}
	wines, err := s.store.ListWines(ctx, sess.UserID, store.WineFilter{CellarID: cellarID})
	if err != nil {
		return nil, domainerrors.Store(err)
	}
	return domain.WineSet(wines), nil
}

// snapshotFor returns active when the caller supplied one, otherwise a fresh
// read of the target cellar.
func (s *WineService) snapshotFor(ctx context.Context, sess Session, active domain.WineSet, cellarID string) (domain.WineSet, error) {
	if active != nil {
		return active, nil
	}
	return s.Snapshot(ctx, sess, cellarID)
}

// Add stores a new wine and returns its id. The location must be free within
// the target cellar of active; a nil active is read from the store.
func (s *WineService) Add(ctx context.Context, sess Session, input domain.WineInput, active domain.WineSet) (string, error) {
	if err := sess.check(); err != nil {
		return "", s.notify.Fail(sess.UserID, err)
	}
	unlock := s.locks.lock(sess.UserID)
	defer unlock()

	w, err := s.add(ctx, sess, input, active)
	if err != nil {
		return "", s.notify.Fail(sess.UserID, err)
	}
	return w.ID, nil
}

// add runs with the user's write lock held.
func (s *WineService) add(ctx context.Context, sess Session, input domain.WineInput, active domain.WineSet) (*domain.Wine, error) {
	cellarID := domain.ResolveCellar(input.CellarID, sess.ActiveCellarID)
	w := wineFromInput(input, cellarID)
	if err := s.validate(w); err != nil {
		return nil, err
	}

	set, err := s.snapshotFor(ctx, sess, active, cellarID)
	if err != nil {
		return nil, err
	}
	if set.LocationTaken(w.Location, cellarID, "") {
		return nil, domainerrors.DuplicateLocationf("Location %q is already in use.", w.Location)
	}

	w.AddedAt = s.now()
	if err := s.store.CreateWine(ctx, sess.UserID, w); err != nil {
		return nil, domainerrors.Store(err)
	}

	s.index.put(sess.UserID, w)
	s.notify.Emit(sse.NewWineCreatedEvent(sess.UserID, w))
	s.logger.Info("wine added", "user_id", sess.UserID, "wine_id", w.ID, "cellar_id", cellarID)
	return w, nil
}

// Update replaces a wine's attributes. The cellar is never dropped: an empty
// input cellar keeps the stored one.
func (s *WineService) Update(ctx context.Context, sess Session, wineID string, input domain.WineInput, active domain.WineSet) error {
	if err := sess.check(); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	if strings.TrimSpace(wineID) == "" {
		return s.notify.Fail(sess.UserID, domainerrors.InvalidID("Missing wine id."))
	}
	unlock := s.locks.lock(sess.UserID)
	defer unlock()

	existing, err := s.store.GetWine(ctx, sess.UserID, wineID)
	if err != nil {
		return s.notify.Fail(sess.UserID, storeErr(err, "Wine not found."))
	}

	cellarID := domain.ResolveCellar(input.CellarID, domain.ResolveCellar(existing.CellarID, sess.ActiveCellarID))
	w := wineFromInput(input, cellarID)
	if err := s.validate(w); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}

	set, err := s.snapshotFor(ctx, sess, active, cellarID)
	if err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	if set.LocationTaken(w.Location, cellarID, wineID) {
		return s.notify.Fail(sess.UserID,
			domainerrors.DuplicateLocationf("Location %q is already in use by another wine.", w.Location))
	}

	w.ID = wineID
	w.AddedAt = existing.AddedAt
	if err := s.store.UpdateWine(ctx, sess.UserID, w); err != nil {
		return s.notify.Fail(sess.UserID, storeErr(err, "Wine not found."))
	}

	s.index.put(sess.UserID, w)
	s.notify.Emit(sse.NewWineUpdatedEvent(sess.UserID, w))
	s.logger.Info("wine updated", "user_id", sess.UserID, "wine_id", wineID)
	return nil
}

// Delete removes a wine. Deleting a missing wine succeeds.
func (s *WineService) Delete(ctx context.Context, sess Session, wineID string) error {
	if err := sess.check(); err != nil {
		return s.notify.Fail(sess.UserID, err)
	}
	if strings.TrimSpace(wineID) == "" {
		return s.notify.Fail(sess.UserID, domainerrors.InvalidID("Missing wine id."))
	}
	unlock := s.locks.lock(sess.UserID)
	defer unlock()

	if err := s.store.DeleteWine(ctx, sess.UserID, wineID); err != nil {
		return s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}

	s.index.remove(sess.UserID, wineID)
	s.notify.Emit(sse.NewWineDeletedEvent(sess.UserID, wineID))
	s.logger.Info("wine deleted", "user_id", sess.UserID, "wine_id", wineID)
	return nil
}

// EraseAll deletes every active wine in target, or in every cellar when target
// is empty, as one batch. An empty set is a success with count 0.
func (s *WineService) EraseAll(ctx context.Context, sess Session, target string) (int, error) {
	if err := sess.check(); err != nil {
		return 0, s.notify.Fail(sess.UserID, err)
	}
	unlock := s.locks.lock(sess.UserID)
	defer unlock()

	target = domain.NormalizeCellarSlug(target)
	wines, err := s.store.ListWines(ctx, sess.UserID, store.WineFilter{CellarID: target})
	if err != nil {
		return 0, s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}
	if len(wines) == 0 {
		s.notify.Info(sess.UserID, "Cellar already empty.")
		return 0, nil
	}

	batch := s.store.NewBatch(sess.UserID)
	ids := make([]string, 0, len(wines))
	for _, w := range wines {
		batch.DeleteWine(w.ID)
		ids = append(ids, w.ID)
	}
	if err := batch.Commit(ctx); err != nil {
		return 0, s.notify.Fail(sess.UserID, domainerrors.Store(err))
	}

	s.index.remove(sess.UserID, ids...)
	s.notify.Emit(sse.NewWinesErasedEvent(sess.UserID, target, len(ids)))
	s.logger.Info("wines erased", "user_id", sess.UserID, "cellar_id", target, "count", len(ids))
	return len(ids), nil
}

// Get returns one active wine.
func (s *WineService) Get(ctx context.Context, sess Session, wineID string) (*domain.Wine, error) {
	if err := sess.check(); err != nil {
		return nil, err
	}
	w, err := s.store.GetWine(ctx, sess.UserID, wineID)
	if err != nil {
		return nil, storeErr(err, "Wine not found.")
	}
	return w, nil
}

// List returns the active wines matching opts, sorted by producer then vintage.
func (s *WineService) List(ctx context.Context, sess Session, opts ListOptions) ([]domain.Wine, error) {
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

	wines, err := s.store.ListWines(ctx, sess.UserID, store.WineFilter{CellarID: opts.scope(sess)})
	if err != nil {
		return nil, domainerrors.Store(err)
	}

	out := domain.WineSet(wines).Matching(strings.TrimSpace(opts.Search))
	if where != nil {
		if out, err = where.Apply(out); err != nil {
			return nil, err
		}
	}
	domain.SortWines(out)
	return out, nil
}

// DrinkSoon returns wines in every cellar whose drinking window ends this
// year or earlier.
func (s *WineService) DrinkSoon(ctx context.Context, sess Session) ([]domain.Wine, error) {
	if err := sess.check(); err != nil {
		return nil, err
	}
	year := s.now().Year()
	wines, err := s.store.ListWines(ctx, sess.UserID, store.WineFilter{MaxEndYear: &year})
	if err != nil {
		return nil, domainerrors.Store(err)
	}
	wines = domain.DrinkSoon(wines, year)
	domain.SortWines(wines)
	return wines, nil
}

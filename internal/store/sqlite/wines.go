package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mycellarapp/cellar-server/internal/domain"
	"github.com/mycellarapp/cellar-server/internal/id"
	"github.com/mycellarapp/cellar-server/internal/store"
)

// wineColumns is the ordered list of columns selected in wine queries.
// Must match the scan order in scanWineInto.
const wineColumns = `id, name, producer, year, region, color, location,
	drinking_window_start_year, drinking_window_end_year, cellar_id, notes, added_at`

// experiencedColumns extends wineColumns; must match scanExperienced.
const experiencedColumns = wineColumns + `, tasting_notes, rating, consumed_at, experienced_at`

type scanner interface{ Scan(dest ...any) error }

// wineDest returns scan destinations for the wine columns plus a finisher
// that converts nullable and text columns once Scan has run.
func wineDest(w *domain.Wine) ([]any, func() error) {
	var (
		year, start, end sql.NullInt64
		color            string
		cellarID         sql.NullString
		addedAt          string
	)
	dest := []any{
		&w.ID, &w.Name, &w.Producer, &year, &w.Region, &color, &w.Location,
		&start, &end, &cellarID, &w.Notes, &addedAt,
	}
	finish := func() error {
		w.Year = yearFromNull(year)
		w.DrinkingWindowStartYear = yearFromNull(start)
		w.DrinkingWindowEndYear = yearFromNull(end)
		w.Color = domain.Color(color)
		w.CellarID = domain.NormalizeCellarID(cellarID.String)
		t, err := parseTime(addedAt)
		if err != nil {
			return fmt.Errorf("parse added_at: %w", err)
		}
		w.AddedAt = t
		return nil
	}
	return dest, finish
}

func scanWine(s scanner) (*domain.Wine, error) {
	var w domain.Wine
	dest, finish := wineDest(&w)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return &w, nil
}

func scanExperienced(s scanner) (*domain.ExperiencedWine, error) {
	var (
		e             domain.ExperiencedWine
		consumedAt    string
		experiencedAt string
	)
	dest, finish := wineDest(&e.Wine)
	dest = append(dest, &e.TastingNotes, &e.Rating, &consumedAt, &experiencedAt)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	var err error
	if e.ConsumedAt, err = parseTime(consumedAt); err != nil {
		return nil, fmt.Errorf("parse consumed_at: %w", err)
	}
	if e.ExperiencedAt, err = parseTime(experiencedAt); err != nil {
		return nil, fmt.Errorf("parse experienced_at: %w", err)
	}
	return &e, nil
}

// wineValues returns the insert values for the wine columns, user first.
func wineValues(userID string, w *domain.Wine) []any {
	return []any{
		userID, w.ID, w.Name, w.Producer, nullYear(w.Year), w.Region, string(w.Color), w.Location,
		nullYear(w.DrinkingWindowStartYear), nullYear(w.DrinkingWindowEndYear),
		nullString(w.CellarID), w.Notes, formatTime(w.AddedAt),
	}
}

var wineInsertColumns = []string{
	"user_id", "id", "name", "producer", "year", "region", "color", "location",
	"drinking_window_start_year", "drinking_window_end_year", "cellar_id", "notes", "added_at",
}

func wineInsert(table string, userID string, w *domain.Wine) sq.InsertBuilder {
	return builder.Insert(table).Columns(wineInsertColumns...).Values(wineValues(userID, w)...)
}

func experiencedInsert(userID string, e *domain.ExperiencedWine) sq.InsertBuilder {
	values := append(wineValues(userID, &e.Wine),
		e.TastingNotes, e.Rating, formatTime(e.ConsumedAt), formatTime(e.ExperiencedAt))
	columns := append(append([]string{}, wineInsertColumns...),
		"tasting_notes", "rating", "consumed_at", "experienced_at")
	return builder.Insert("experienced_wines").Columns(columns...).Values(values...)
}

// applyFilter adds the WineFilter predicates to a select on either wine table.
func applyFilter(sb sq.SelectBuilder, f store.WineFilter) sq.SelectBuilder {
	if f.CellarID != "" {
		if domain.IsDefault(f.CellarID) && !f.ExplicitOnly {
			sb = sb.Where(sq.Or{
				sq.Eq{"cellar_id": domain.DefaultCellarID},
				sq.Eq{"cellar_id": nil},
			})
		} else {
			sb = sb.Where(sq.Eq{"cellar_id": f.CellarID})
		}
	}
	if f.MaxEndYear != nil {
		sb = sb.Where(sq.And{
			sq.Gt{"drinking_window_end_year": 0},
			sq.LtOrEq{"drinking_window_end_year": *f.MaxEndYear},
		})
	}
	if len(f.Locations) > 0 {
		sb = sb.Where(sq.Eq{"lower(trim(location))": f.Locations})
	}
	return sb
}

// CreateWine inserts a wine, assigning an id when it has none.
func (s *Store) CreateWine(ctx context.Context, userID string, wine *domain.Wine) error {
	if wine.ID == "" {
		wineID, err := id.Generate(id.PrefixWine)
		if err != nil {
			return err
		}
		wine.ID = wineID
	}
	if wine.AddedAt.IsZero() {
		wine.AddedAt = s.now()
	}

	if _, err := execBuilder(ctx, s.db, wineInsert("wines", userID, wine)); err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert wine: %w", err)
	}
	return nil
}

// GetWine returns store.ErrNotFound when the wine does not exist.
func (s *Store) GetWine(ctx context.Context, userID, wineID string) (*domain.Wine, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+wineColumns+` FROM wines WHERE user_id = ? AND id = ?`, userID, wineID)

	w, err := scanWine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wine: %w", err)
	}
	return w, nil
}

// UpdateWine replaces every attribute except added_at.
// Returns store.ErrNotFound if the wine does not exist.
func (s *Store) UpdateWine(ctx context.Context, userID string, wine *domain.Wine) error {
	res, err := execBuilder(ctx, s.db, builder.Update("wines").SetMap(map[string]any{
		"name":                       wine.Name,
		"producer":                   wine.Producer,
		"year":                       nullYear(wine.Year),
		"region":                     wine.Region,
		"color":                      string(wine.Color),
		"location":                   wine.Location,
		"drinking_window_start_year": nullYear(wine.DrinkingWindowStartYear),
		"drinking_window_end_year":   nullYear(wine.DrinkingWindowEndYear),
		"cellar_id":                  nullString(wine.CellarID),
		"notes":                      wine.Notes,
	}).Where(sq.Eq{"user_id": userID, "id": wine.ID}))
	if err != nil {
		return fmt.Errorf("update wine: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteWine removes a wine. Deleting a missing wine is not an error.
func (s *Store) DeleteWine(ctx context.Context, userID, wineID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM wines WHERE user_id = ? AND id = ?`, userID, wineID)
	if err != nil {
		return fmt.Errorf("delete wine: %w", err)
	}
	return nil
}

// ListWines returns the user's wines matching filter.
func (s *Store) ListWines(ctx context.Context, userID string, filter store.WineFilter) ([]domain.Wine, error) {
	sb := applyFilter(builder.Select(wineColumns).From("wines").Where(sq.Eq{"user_id": userID}), filter).
		OrderBy("producer COLLATE NOCASE", "year")

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build wine query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wines: %w", err)
	}
	defer rows.Close()

	wines := make([]domain.Wine, 0)
	for rows.Next() {
		w, err := scanWine(rows)
		if err != nil {
			return nil, err
		}
		wines = append(wines, *w)
	}
	return wines, rows.Err()
}

// GetExperienced returns store.ErrNotFound when the record does not exist.
func (s *Store) GetExperienced(ctx context.Context, userID, wineID string) (*domain.ExperiencedWine, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+experiencedColumns+` FROM experienced_wines WHERE user_id = ? AND id = ?`, userID, wineID)

	e, err := scanExperienced(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get experienced wine: %w", err)
	}
	return e, nil
}

// UpdateExperienced replaces an experienced record's attributes, keeping
// added_at and experienced_at.
func (s *Store) UpdateExperienced(ctx context.Context, userID string, e *domain.ExperiencedWine) error {
	res, err := execBuilder(ctx, s.db, builder.Update("experienced_wines").SetMap(map[string]any{
		"name":                       e.Name,
		"producer":                   e.Producer,
		"year":                       nullYear(e.Year),
		"region":                     e.Region,
		"color":                      string(e.Color),
		"location":                   e.Location,
		"drinking_window_start_year": nullYear(e.DrinkingWindowStartYear),
		"drinking_window_end_year":   nullYear(e.DrinkingWindowEndYear),
		"cellar_id":                  nullString(e.CellarID),
		"notes":                      e.Notes,
		"tasting_notes":              e.TastingNotes,
		"rating":                     e.Rating,
		"consumed_at":                formatTime(e.ConsumedAt),
	}).Where(sq.Eq{"user_id": userID, "id": e.ID}))
	if err != nil {
		return fmt.Errorf("update experienced wine: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteExperienced removes an experienced record. Missing records are not an error.
func (s *Store) DeleteExperienced(ctx context.Context, userID, wineID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM experienced_wines WHERE user_id = ? AND id = ?`, userID, wineID)
	if err != nil {
		return fmt.Errorf("delete experienced wine: %w", err)
	}
	return nil
}

// ListExperienced returns experienced records, most recently consumed first.
func (s *Store) ListExperienced(ctx context.Context, userID string, filter store.WineFilter) ([]domain.ExperiencedWine, error) {
	sb := applyFilter(builder.Select(experiencedColumns).From("experienced_wines").Where(sq.Eq{"user_id": userID}), filter).
		OrderBy("consumed_at DESC")

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build experienced query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list experienced wines: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ExperiencedWine, 0)
	for rows.Next() {
		e, err := scanExperienced(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mycellarapp/cellar-server/internal/domain"
	"github.com/mycellarapp/cellar-server/internal/store"
)

const cellarColumns = `id, name, created_at`

func scanCellar(s scanner) (*domain.Cellar, error) {
	var (
		c         domain.Cellar
		createdAt string
	)
	if err := s.Scan(&c.ID, &c.Name, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	c.CreatedAt = t
	return &c, nil
}

// UpsertCellar creates the cellar or renames an existing one. The original
// created_at is kept on conflict.
func (s *Store) UpsertCellar(ctx context.Context, userID string, cellar *domain.Cellar) (*domain.Cellar, error) {
	createdAt := cellar.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO cellars (user_id, id, name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO UPDATE SET name = excluded.name
		RETURNING `+cellarColumns,
		userID, cellar.ID, cellar.Name, formatTime(createdAt))

	c, err := scanCellar(row)
	if err != nil {
		return nil, fmt.Errorf("upsert cellar: %w", err)
	}
	return c, nil
}

// GetCellar returns store.ErrNotFound when the cellar does not exist.
func (s *Store) GetCellar(ctx context.Context, userID, cellarID string) (*domain.Cellar, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cellarColumns+` FROM cellars WHERE user_id = ? AND id = ?`, userID, cellarID)

	c, err := scanCellar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cellar: %w", err)
	}
	return c, nil
}

// ListCellars returns the user's cellars, oldest first.
func (s *Store) ListCellars(ctx context.Context, userID string) ([]domain.Cellar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cellarColumns+` FROM cellars WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cellars: %w", err)
	}
	defer rows.Close()

	cellars := make([]domain.Cellar, 0)
	for rows.Next() {
		c, err := scanCellar(rows)
		if err != nil {
			return nil, err
		}
		cellars = append(cellars, *c)
	}
	return cellars, rows.Err()
}

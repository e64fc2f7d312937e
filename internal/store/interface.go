// Package store defines the persistence interface for cellar data.
package store

import (
	"context"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

// Store defines every persistence operation. All wine, experienced wine and
// cellar methods are scoped to one user.
type Store interface {
	Close() error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	ListUserIDs(ctx context.Context) ([]string, error)

	// Wines
	CreateWine(ctx context.Context, userID string, wine *domain.Wine) error
	GetWine(ctx context.Context, userID, id string) (*domain.Wine, error)
	UpdateWine(ctx context.Context, userID string, wine *domain.Wine) error
	DeleteWine(ctx context.Context, userID, id string) error
	ListWines(ctx context.Context, userID string, filter WineFilter) ([]domain.Wine, error)

	// Experienced wines
	GetExperienced(ctx context.Context, userID, id string) (*domain.ExperiencedWine, error)
	UpdateExperienced(ctx context.Context, userID string, wine *domain.ExperiencedWine) error
	DeleteExperienced(ctx context.Context, userID, id string) error
	ListExperienced(ctx context.Context, userID string, filter WineFilter) ([]domain.ExperiencedWine, error)

	// Cellars
	UpsertCellar(ctx context.Context, userID string, cellar *domain.Cellar) (*domain.Cellar, error)
	GetCellar(ctx context.Context, userID, id string) (*domain.Cellar, error)
	ListCellars(ctx context.Context, userID string) ([]domain.Cellar, error)

	// NewBatch starts an all-or-nothing group of writes for one user.
	NewBatch(userID string) Batch

	// BackfillCellarID tags every record without a cellar as "default".
	BackfillCellarID(ctx context.Context) ([]BackfillCount, error)
}

// WineFilter narrows wine listings. The zero value lists everything.
type WineFilter struct {
	// CellarID limits results to one cellar. For "default" the legacy
	// untagged records are included unless ExplicitOnly is set.
	CellarID     string
	ExplicitOnly bool
	// MaxEndYear keeps wines whose drinking window closes on or before it.
	MaxEndYear *int
	// Locations keeps records whose lowercased, trimmed location is listed.
	Locations []string
}

// Batch queues writes and commits them in one transaction. Nothing is visible
// before Commit; a failed Commit leaves the store unchanged.
type Batch interface {
	PutWine(wine *domain.Wine)
	DeleteWine(id string)
	PutExperienced(wine *domain.ExperiencedWine)
	DeleteExperienced(id string)
	MoveWine(id, cellarID string)
	MoveExperienced(id, cellarID string)
	DeleteCellar(id string)
	Len() int
	Commit(ctx context.Context) error
}

// BackfillCount reports how many records were tagged for one user.
type BackfillCount struct {
	UserID      string `json:"userId"`
	Wines       int    `json:"wines"`
	Experienced int    `json:"experienced"`
}

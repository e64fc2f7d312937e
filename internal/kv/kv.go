// Package kv holds short-lived and per-user state in badger: pending
// registrations, password reset tokens and the active cellar preference.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mycellarapp/cellar-server/internal/domain"
	"github.com/mycellarapp/cellar-server/internal/store"
)

const (
	pendingPrefix      = "pending:"
	resetPrefix        = "reset:"
	activeCellarPrefix = "active_cellar:"
)

// ErrNotFound is returned when a key is missing or has expired.
var ErrNotFound = store.ErrNotFound

// Store wraps a badger database.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens the badger database at path. An empty path opens an in-memory
// database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts.SyncWrites = true
		opts.CompactL0OnClose = true
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil && path != "" {
		logger.Info("Badger database opened successfully", "path", path)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getJSON(key string, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// setJSON stores v at key. A zero ttl keeps the entry until it is deleted.
func (s *Store) setJSON(key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

func (s *Store) delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// SavePending stores a registration awaiting its emailed code, replacing any
// earlier attempt for the same address.
func (s *Store) SavePending(ctx context.Context, p *domain.PendingRegistration, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.setJSON(pendingPrefix+domain.NormalizeEmail(p.Email), p, ttl)
}

// GetPending loads the pending registration for email.
func (s *Store) GetPending(ctx context.Context, email string) (*domain.PendingRegistration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var p domain.PendingRegistration
	if err := s.getJSON(pendingPrefix+domain.NormalizeEmail(email), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordFailedAttempt increments the attempt counter without extending the
// entry's lifetime.
func (s *Store) RecordFailedAttempt(ctx context.Context, email string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key := []byte(pendingPrefix + domain.NormalizeEmail(email))
	var attempts int
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var p domain.PendingRegistration
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &p) }); err != nil {
			return err
		}
		p.Attempts++
		attempts = p.Attempts
		data, err := json.Marshal(&p)
		if err != nil {
			return err
		}
		e := badger.NewEntry(key, data)
		if exp := item.ExpiresAt(); exp > 0 {
			remaining := time.Until(time.Unix(int64(exp), 0))
			if remaining <= 0 {
				return ErrNotFound
			}
			e = e.WithTTL(remaining)
		}
		return txn.SetEntry(e)
	})
	return attempts, err
}

// DeletePending removes the pending registration for email.
func (s *Store) DeletePending(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.delete(pendingPrefix + domain.NormalizeEmail(email))
}

// SaveReset stores a password reset under its opaque token.
func (s *Store) SaveReset(ctx context.Context, token string, r *domain.PasswordReset, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.setJSON(resetPrefix+token, r, ttl)
}

// ConsumeReset loads and deletes the reset for token in one transaction, so
// a token can be used once.
func (s *Store) ConsumeReset(ctx context.Context, token string) (*domain.PasswordReset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := []byte(resetPrefix + token)
	var r domain.PasswordReset
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &r) }); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ActiveCellar returns the stored selection for userID, or "" when none.
func (s *Store) ActiveCellar(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var cellarID string
	err := s.getJSON(activeCellarPrefix+userID, &cellarID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return cellarID, err
}

// SetActiveCellar stores the selection for userID. An empty id clears it.
func (s *Store) SetActiveCellar(ctx context.Context, userID, cellarID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cellarID == "" {
		return s.delete(activeCellarPrefix + userID)
	}
	return s.setJSON(activeCellarPrefix+userID, cellarID, 0)
}

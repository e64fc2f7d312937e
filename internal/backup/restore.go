package backup

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mycellarapp/cellar-server/internal/store"
)

// ReadManifest opens an archive and returns its manifest.
func ReadManifest(path string) (*Manifest, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer zr.Close()
	return readManifest(&zr.Reader)
}

func readManifest(zr *zip.Reader) (*Manifest, error) {
	rc, err := openEntry(zr, manifestFile)
	if err != nil {
		return nil, ErrInvalidManifest
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil || m.Version == "" {
		return nil, ErrInvalidManifest
	}
	if !m.compatible() {
		return nil, fmt.Errorf("%w: %s", ErrVersionMismatch, m.Version)
	}
	return &m, nil
}

// Restore merges an archive into the store. Users that already exist are
// kept as they are; their records from the archive are added, replacing any
// with the same id. Each user's wines and experienced wines commit as one
// batch. The search index is not touched; callers reindex afterwards.
func (s *Service) Restore(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	start := time.Now()

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer zr.Close()

	manifest, err := readManifest(&zr.Reader)
	if err != nil {
		return nil, err
	}
	s.logger.Info("restoring backup",
		"path", path,
		"version", manifest.Version,
		"created_at", manifest.CreatedAt,
		"dry_run", opts.DryRun)

	r := &restorer{svc: s, dryRun: opts.DryRun, result: &RestoreResult{}, users: make(map[string]bool)}
	if err := r.restoreUsers(ctx, &zr.Reader); err != nil {
		return nil, err
	}
	if err := r.restoreCellars(ctx, &zr.Reader); err != nil {
		return nil, err
	}
	if err := r.restoreRecords(ctx, &zr.Reader); err != nil {
		return nil, err
	}

	r.result.Duration = time.Since(start)
	s.logger.Info("restore complete",
		"users", r.result.Imported.Users,
		"cellars", r.result.Imported.Cellars,
		"wines", r.result.Imported.Wines,
		"experienced", r.result.Imported.Experienced,
		"errors", len(r.result.Errors),
		"duration", r.result.Duration)
	return r.result, nil
}

type restorer struct {
	svc    *Service
	dryRun bool
	result *RestoreResult
	// users holds the ids whose records may be written.
	users map[string]bool
}

func (r *restorer) fail(entity, id string, err error) {
	r.result.Errors = append(r.result.Errors, RestoreError{EntityType: entity, EntityID: id, Error: err.Error()})
}

func (r *restorer) restoreUsers(ctx context.Context, zr *zip.Reader) error {
	for rec, err := range readJSONL[userRecord](zr, usersFile) {
		if err != nil {
			r.fail("user", "", err)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := r.svc.store.GetUser(ctx, rec.ID)
		switch {
		case err == nil:
			r.users[rec.ID] = true
			r.result.Skipped.Users++
			continue
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("look up user %s: %w", rec.ID, err)
		}

		if !r.dryRun {
			if err := r.svc.store.CreateUser(ctx, rec.user()); err != nil {
				r.fail("user", rec.ID, err)
				continue
			}
		}
		r.users[rec.ID] = true
		r.result.Imported.Users++
	}
	return nil
}

func (r *restorer) restoreCellars(ctx context.Context, zr *zip.Reader) error {
	for rec, err := range readJSONL[cellarRecord](zr, cellarsFile) {
		if err != nil {
			r.fail("cellar", "", err)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !r.users[rec.UserID] {
			r.result.Skipped.Cellars++
			continue
		}
		if !r.dryRun {
			if _, err := r.svc.store.UpsertCellar(ctx, rec.UserID, &rec.Cellar); err != nil {
				r.fail("cellar", rec.Cellar.ID, err)
				continue
			}
		}
		r.result.Imported.Cellars++
	}
	return nil
}

// userBatch collects one user's record writes.
type userBatch struct {
	batch       store.Batch
	wines       int
	experienced int
}

func (r *restorer) restoreRecords(ctx context.Context, zr *zip.Reader) error {
	batches := make(map[string]*userBatch)
	var order []string
	batchFor := func(userID string) *userBatch {
		b, ok := batches[userID]
		if !ok {
			b = &userBatch{batch: r.svc.store.NewBatch(userID)}
			batches[userID] = b
			order = append(order, userID)
		}
		return b
	}

	for rec, err := range readJSONL[wineRecord](zr, winesFile) {
		if err != nil {
			r.fail("wine", "", err)
			continue
		}
		if !r.users[rec.UserID] {
			r.result.Skipped.Wines++
			continue
		}
		b := batchFor(rec.UserID)
		b.batch.PutWine(&rec.Wine)
		b.wines++
	}
	for rec, err := range readJSONL[experiencedRecord](zr, experiencedFile) {
		if err != nil {
			r.fail("experienced", "", err)
			continue
		}
		if !r.users[rec.UserID] {
			r.result.Skipped.Experienced++
			continue
		}
		b := batchFor(rec.UserID)
		b.batch.PutExperienced(&rec.Experienced)
		b.experienced++
	}

	for _, userID := range order {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := batches[userID]
		if !r.dryRun {
			if err := b.batch.Commit(ctx); err != nil {
				r.fail("user_records", userID, err)
				r.result.Skipped.Wines += b.wines
				r.result.Skipped.Experienced += b.experienced
				continue
			}
		}
		r.result.Imported.Wines += b.wines
		r.result.Imported.Experienced += b.experienced
	}
	return nil
}

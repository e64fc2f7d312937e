package backup

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mycellarapp/cellar-server/internal/store"
)

// Service manages backup creation, listing and restore.
type Service struct {
	store     store.Store
	backupDir string
	version   string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a Service writing archives to backupDir.
func NewService(s store.Store, backupDir, version string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:     s,
		backupDir: backupDir,
		version:   version,
		logger:    logger,
		now:       time.Now,
	}
}

// Create writes a backup archive. The file appears under its final name
// only once complete.
func (s *Service) Create(ctx context.Context, opts BackupOptions) (*BackupResult, error) {
	start := time.Now()

	outputPath := opts.OutputPath
	if outputPath == "" {
		if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
			return nil, fmt.Errorf("create backup dir: %w", err)
		}
		timestamp := s.now().Format("2006-01-02-150405")
		outputPath = filepath.Join(s.backupDir, "backup-"+timestamp+fileExt)
	}

	s.logger.Info("creating backup", "output", outputPath)

	tmpPath := outputPath + ".tmp"
	f, err := os.Create(tmpPath) //#nosec G304 -- path comes from config or operator
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	hash := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(f, hash))

	manifest := &Manifest{
		Version:       FormatVersion,
		CreatedAt:     s.now().UTC(),
		ServerVersion: s.version,
	}
	if err := s.export(ctx, zw, &manifest.Counts); err != nil {
		return nil, err
	}

	// Manifest goes last so it carries the final counts.
	w, err := zw.Create(manifestFile)
	if err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return nil, fmt.Errorf("rename backup: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, err
	}
	result := &BackupResult{
		Path:     outputPath,
		Size:     info.Size(),
		Counts:   manifest.Counts,
		Duration: time.Since(start),
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}

	s.logger.Info("backup complete",
		"path", result.Path,
		"size", result.Size,
		"users", result.Counts.Users,
		"wines", result.Counts.Wines,
		"duration", result.Duration,
		"checksum", result.Checksum)

	return result, nil
}

// export streams every user's records into the archive.
func (s *Service) export(ctx context.Context, zw *zip.Writer, counts *EntityCounts) error {
	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	users, err := newJSONLWriter(zw, usersFile)
	if err != nil {
		return err
	}
	for _, id := range userIDs {
		u, err := s.store.GetUser(ctx, id)
		if err != nil {
			return fmt.Errorf("export user %s: %w", id, err)
		}
		if err := users.Write(newUserRecord(u)); err != nil {
			return fmt.Errorf("export user %s: %w", id, err)
		}
	}
	counts.Users = users.count

	// zip.Writer allows one open entry at a time, so each collection is a
	// separate pass over the users.
	steps := []struct {
		name string
		file string
		fn   func(ctx context.Context, userID string, w *jsonlWriter) error
		dest *int
	}{
		{"cellars", cellarsFile, s.exportCellars, &counts.Cellars},
		{"wines", winesFile, s.exportWines, &counts.Wines},
		{"experienced", experiencedFile, s.exportExperienced, &counts.Experienced},
	}
	for _, step := range steps {
		w, err := newJSONLWriter(zw, step.file)
		if err != nil {
			return err
		}
		for _, id := range userIDs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := step.fn(ctx, id, w); err != nil {
				return fmt.Errorf("export %s for %s: %w", step.name, id, err)
			}
		}
		*step.dest = w.count
	}
	return nil
}

func (s *Service) exportCellars(ctx context.Context, userID string, w *jsonlWriter) error {
	cellars, err := s.store.ListCellars(ctx, userID)
	if err != nil {
		return err
	}
	for _, c := range cellars {
		if err := w.Write(cellarRecord{UserID: userID, Cellar: c}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) exportWines(ctx context.Context, userID string, w *jsonlWriter) error {
	wines, err := s.store.ListWines(ctx, userID, store.WineFilter{})
	if err != nil {
		return err
	}
	for _, wine := range wines {
		if err := w.Write(wineRecord{UserID: userID, Wine: wine}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) exportExperienced(ctx context.Context, userID string, w *jsonlWriter) error {
	exps, err := s.store.ListExperienced(ctx, userID, store.WineFilter{})
	if err != nil {
		return err
	}
	for _, e := range exps {
		if err := w.Write(experiencedRecord{UserID: userID, Experienced: e}); err != nil {
			return err
		}
	}
	return nil
}

// List returns all available backups, newest first.
func (s *Service) List(_ context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			ID:        strings.TrimSuffix(entry.Name(), fileExt),
			Path:      filepath.Join(s.backupDir, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Path resolves a backup ID or a file path to an existing archive.
func (s *Service) Path(idOrPath string) (string, error) {
	candidates := []string{idOrPath}
	if !strings.ContainsRune(idOrPath, filepath.Separator) {
		candidates = append(candidates, filepath.Join(s.backupDir, idOrPath+fileExt))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", ErrBackupNotFound
}

// Delete removes a backup by ID.
func (s *Service) Delete(_ context.Context, id string) error {
	path := filepath.Join(s.backupDir, id+fileExt)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrBackupNotFound
		}
		return err
	}
	return nil
}

// Prune deletes all but the keep newest backups and returns the removed IDs.
func (s *Service) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}
	backups, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var removed []string
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", b.ID, err)
		}
		removed = append(removed, b.ID)
	}
	s.logger.Info("pruned backups", "removed", len(removed), "kept", keep)
	return removed, nil
}

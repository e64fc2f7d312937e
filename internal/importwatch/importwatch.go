// Package importwatch imports CSV files dropped into a watched folder.
//
// A file written to <root>/<userId>/<cellarId>.csv is imported into that
// user's cellar once it has settled, then moved to <root>/processed/.
package importwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mycellarapp/cellar-server/internal/service"
)

// Importer adds the rows of a CSV to a user's cellar.
// *service.TransferService implements it.
type Importer interface {
	Import(ctx context.Context, sess service.Session, r io.Reader, cellarID string) (*service.ImportResult, error)
}

// Notices reports import outcomes to the user. *service.Notifier implements it.
type Notices interface {
	Info(userID, message string)
}

// Service watches the drop folder and imports settled files.
type Service struct {
	opts     Options
	importer Importer
	notices  Notices
	logger   *slog.Logger
	now      func() time.Time

	w *watcher
}

// New creates the drop folder root and a watcher over it.
func New(importer Importer, notices Notices, logger *slog.Logger, opts Options) (*Service, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("import folder path is required")
	}
	opts.Root = filepath.Clean(opts.Root)
	opts.setDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Join(opts.Root, ProcessedDir), 0o755); err != nil {
		return nil, fmt.Errorf("create import folder: %w", err)
	}

	w, err := newWatcher(logger, opts)
	if err != nil {
		return nil, err
	}
	return &Service{
		opts:     opts,
		importer: importer,
		notices:  notices,
		logger:   logger,
		now:      time.Now,
		w:        w,
	}, nil
}

// Start watches the folder until ctx is cancelled or Stop is called. Files
// already present are imported first.
func (s *Service) Start(ctx context.Context) error {
	if err := s.w.watchDir(s.opts.Root); err != nil {
		return fmt.Errorf("watch import folder: %w", err)
	}
	s.w.wg.Add(1)
	go s.w.run(ctx)
	s.w.settleExisting(s.opts.Root)

	s.logger.Info("import folder watcher started", "path", s.opts.Root, "settle_delay", s.opts.SettleDelay)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.w.done:
			return nil
		case path := <-s.w.ready:
			s.process(ctx, path)
		}
	}
}

// Stop stops watching. It is safe to call more than once.
func (s *Service) Stop() error {
	s.w.stop()
	return nil
}

// process imports one settled file and moves it out of the drop folder.
func (s *Service) process(ctx context.Context, path string) {
	userID, cellarID, ok := s.opts.target(path)
	if !ok {
		s.logger.Debug("ignoring file outside <user>/<cellar>.csv layout", "path", path)
		return
	}
	logger := s.logger.With("user_id", userID, "cellar_id", cellarID, "path", path)

	f, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to open dropped file", "error", err)
		return
	}
	sess := service.Session{UserID: userID, ActiveCellarID: cellarID}
	res, err := s.importer.Import(ctx, sess, f, cellarID)
	f.Close()

	dest, moveErr := s.moveProcessed(path, userID)
	if moveErr != nil {
		logger.Error("failed to move imported file", "error", moveErr)
	}
	if err != nil {
		logger.Warn("dropped file import failed", "error", err)
		return
	}

	logger.Info("dropped file imported", "imported", res.Imported, "failed", len(res.Errors), "moved_to", dest)
	if len(res.Errors) > 0 {
		s.notices.Info(userID, fmt.Sprintf("%s: %d rows skipped. First: %s",
			filepath.Base(path), len(res.Errors), res.Errors[0]))
	}
}

// moveProcessed renames path into processed/<userId>/ with a timestamp so
// repeated drops of the same name do not collide.
func (s *Service) moveProcessed(path, userID string) (string, error) {
	dir := filepath.Join(s.opts.Root, ProcessedDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dest := filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, s.now().UTC().Format("20060102T150405.000"), filepath.Ext(path)))
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mycellarapp/cellar-server/internal/csvio"
	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/store"
)

// Export file base names.
const (
	WinesExportBase       = "my_cellar"
	ExperiencedExportBase = "experienced_wines"
)

// ImportResult reports a CSV import. Rows that fail are listed in Errors and
// do not stop the import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// TransferService moves collections in and out as semicolon CSV.
type TransferService struct {
	wines  *WineService
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewTransferService creates a TransferService.
func NewTransferService(wines *WineService, logger *slog.Logger) *TransferService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TransferService{
		wines:  wines,
		store:  wines.store,
		now:    time.Now,
		logger: logger,
	}
}

// ExportWines writes the active wines in scope to out and returns the
// download file name.
func (s *TransferService) ExportWines(ctx context.Context, sess Session, opts ListOptions, out io.Writer) (string, error) {
	wines, err := s.wines.List(ctx, sess, opts)
	if err != nil {
		return "", err
	}
	if err := csvio.WriteWines(out, wines); err != nil {
		return "", fmt.Errorf("write wines csv: %w", err)
	}
	s.logger.Info("wines exported", "user_id", sess.UserID, "count", len(wines))
	return csvio.FileName(WinesExportBase, s.now()), nil
}

// ExportExperienced writes experienced wines in scope to out.
func (s *TransferService) ExportExperienced(ctx context.Context, sess Session, opts ListOptions, out io.Writer) (string, error) {
	if err := sess.check(); err != nil {
		return "", err
	}
	exps, err := s.store.ListExperienced(ctx, sess.UserID, store.WineFilter{CellarID: opts.scope(sess)})
	if err != nil {
		return "", domainerrors.Store(err)
	}
	domain.SortExperienced(exps)
	if err := csvio.WriteExperienced(out, exps); err != nil {
		return "", fmt.Errorf("write experienced csv: %w", err)
	}
	s.logger.Info("experienced exported", "user_id", sess.UserID, "count", len(exps))
	return csvio.FileName(ExperiencedExportBase, s.now()), nil
}

// Import adds every data row of r as a new wine. Rows without a cellar go to
// cellarID, or the active cellar when cellarID is empty. Each accepted row
// joins the snapshot so later rows see its location.
func (s *TransferService) Import(ctx context.Context, sess Session, r io.Reader, cellarID string) (*ImportResult, error) {
	if err := sess.check(); err != nil {
		return nil, s.wines.notify.Fail(sess.UserID, err)
	}
	_, rows, err := csvio.Parse(r)
	if err != nil {
		return nil, s.wines.notify.Fail(sess.UserID, domainerrors.Validationf("Could not read CSV: %v", err))
	}

	unlock := s.wines.locks.lock(sess.UserID)
	defer unlock()

	set, err := s.wines.Snapshot(ctx, sess, "")
	if err != nil {
		return nil, s.wines.notify.Fail(sess.UserID, err)
	}
	if set == nil {
		set = domain.WineSet{}
	}

	res := &ImportResult{Errors: []string{}}
	target := domain.NormalizeCellarSlug(cellarID)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		w, err := s.wines.add(ctx, sess, row.WineInput(target), set)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Line %d: %s", row.Line, message(err)))
			continue
		}
		set = append(set, *w)
		res.Imported++
	}

	if len(rows) > 0 {
		s.wines.notify.Info(sess.UserID, fmt.Sprintf("Imported %d of %d wines.", res.Imported, len(rows)))
	}
	s.logger.Info("wines imported", "user_id", sess.UserID,
		"imported", res.Imported, "failed", len(res.Errors))
	return res, nil
}

// message is the user-facing text of err.
func message(err error) string {
	if de, ok := domainerrors.AsError(err); ok {
		return de.Message
	}
	return err.Error()
}

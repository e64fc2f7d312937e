// Package service holds the cellar business logic: wine and experience
// writes, cellar management, accounts, CSV transfer, AI pairing and search.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/sse"
	"github.com/mycellarapp/cellar-server/internal/store"
)

const notReadyMessage = "Database not ready or user not logged in."

// Session is the per-request application state: who is acting and which
// cellar they have selected.
type Session struct {
	UserID         string
	ActiveCellarID string
}

// Ready reports whether an authenticated user is attached.
func (s Session) Ready() bool {
	return strings.TrimSpace(s.UserID) != ""
}

// ActiveCellar is the selected cellar, "default" when none is selected.
func (s Session) ActiveCellar() string {
	return domain.NormalizeCellarID(s.ActiveCellarID)
}

func (s Session) check() error {
	if !s.Ready() {
		return domainerrors.NotReady(notReadyMessage)
	}
	return nil
}

// Emitter receives realtime events. *sse.Manager implements it.
type Emitter interface {
	Emit(event sse.Event)
}

// Notifier publishes change events and mirrors failures to the user's
// notice stream. A nil Notifier or nil Emitter drops everything.
type Notifier struct {
	events Emitter
	logger *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(events Emitter, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{events: events, logger: logger}
}

// Emit publishes event.
func (n *Notifier) Emit(event sse.Event) {
	if n == nil || n.events == nil {
		return
	}
	n.events.Emit(event)
}

// Info sends an informational notice.
func (n *Notifier) Info(userID, message string) {
	if userID == "" {
		return
	}
	n.Emit(sse.NewNoticeEvent(userID, sse.NoticeInfo, "", message))
}

// Fail sends err as an error notice and returns it unchanged.
func (n *Notifier) Fail(userID string, err error) error {
	if err == nil {
		return nil
	}

	code := domainerrors.CodeOf(err)
	message := err.Error()
	var de *domainerrors.Error
	if domainerrors.As(err, &de) {
		message = de.Message
	}

	if n != nil {
		level := slog.LevelWarn
		if code == domainerrors.CodeInternal || code == domainerrors.CodeStore {
			level = slog.LevelError
		}
		n.logger.Log(context.Background(), level, "operation failed",
			"user_id", userID, "code", string(code), "error", err)
	}

	if userID != "" {
		n.Emit(sse.NewNoticeEvent(userID, sse.NoticeError, string(code), message))
	}
	return err
}

// userLocks serializes writes per user so the location check and the write
// it guards see the same data.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) lock(userID string) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// WineIndexer keeps a derived search index in step with wine writes.
// *search.SearchIndex implements it.
type WineIndexer interface {
	IndexWine(userID string, w *domain.Wine) error
	DeleteWine(userID, wineID string) error
	DeleteWines(userID string, wineIDs []string) error
}

// indexHook applies index updates, logging failures. The store stays the
// source of truth; the index is rebuilt at startup.
type indexHook struct {
	index  WineIndexer
	logger *slog.Logger
}

func (h indexHook) put(userID string, wines ...*domain.Wine) {
	if h.index == nil {
		return
	}
	for _, w := range wines {
		if err := h.index.IndexWine(userID, w); err != nil {
			h.logger.Warn("failed to index wine", "user_id", userID, "wine_id", w.ID, "error", err)
		}
	}
}

func (h indexHook) remove(userID string, wineIDs ...string) {
	if h.index == nil || len(wineIDs) == 0 {
		return
	}
	var err error
	if len(wineIDs) == 1 {
		err = h.index.DeleteWine(userID, wineIDs[0])
	} else {
		err = h.index.DeleteWines(userID, wineIDs)
	}
	if err != nil {
		h.logger.Warn("failed to remove wines from index", "user_id", userID, "count", len(wineIDs), "error", err)
	}
}

// storeErr maps a store failure to a domain error, keeping not-found distinct.
func storeErr(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var de *domainerrors.Error
	if domainerrors.As(err, &de) {
		return err
	}
	if notFound != "" && isNotFound(err) {
		return domainerrors.NotFound(notFound)
	}
	return domainerrors.Store(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mycellarapp/cellar-server/internal/domain"
	"github.com/mycellarapp/cellar-server/internal/kv"
	"github.com/mycellarapp/cellar-server/internal/sse"
	"github.com/mycellarapp/cellar-server/internal/store/sqlite"
)

// recorder captures emitted events.
type recorder struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recorder) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t sse.EventType) []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sse.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) notices(level sse.NoticeLevel) []sse.NoticeEventData {
	var out []sse.NoticeEventData
	for _, e := range r.ofType(sse.EventNotice) {
		if n, ok := e.Data.(sse.NoticeEventData); ok && n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

// fakeIndex records the last indexed state of each wine.
type fakeIndex struct {
	mu   sync.Mutex
	docs map[string]domain.Wine
}

func newFakeIndex() *fakeIndex { return &fakeIndex{docs: make(map[string]domain.Wine)} }

func (f *fakeIndex) IndexWine(userID string, w *domain.Wine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[userID+"/"+w.ID] = *w
	return nil
}

func (f *fakeIndex) DeleteWine(userID, wineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, userID+"/"+wineID)
	return nil
}

func (f *fakeIndex) DeleteWines(userID string, wineIDs []string) error {
	for _, id := range wineIDs {
		_ = f.DeleteWine(userID, id)
	}
	return nil
}

func (f *fakeIndex) get(userID, wineID string) (domain.Wine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.docs[userID+"/"+wineID]
	return w, ok
}

type testEnv struct {
	ctx       context.Context
	store     *sqlite.Store
	kv        *kv.Store
	events    *recorder
	index     *fakeIndex
	wines     *WineService
	exps      *ExperienceService
	cellars   *CellarService
	transfer  *TransferService
	migration *MigrationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "cellar.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	prefs, err := kv.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { prefs.Close() })

	events := &recorder{}
	index := newFakeIndex()
	notify := NewNotifier(events, logger)
	wines := NewWineService(st, index, notify, logger)

	return &testEnv{
		ctx:       ctx,
		store:     st,
		kv:        prefs,
		events:    events,
		index:     index,
		wines:     wines,
		exps:      NewExperienceService(wines, logger),
		cellars:   NewCellarService(st, prefs, index, notify, logger),
		transfer:  NewTransferService(wines, logger),
		migration: NewMigrationService(st, index, logger),
	}
}

// session creates the user row and returns a session on cellarID.
func (e *testEnv) session(t *testing.T, userID, cellarID string) Session {
	t.Helper()
	now := time.Now()
	err := e.store.CreateUser(e.ctx, &domain.User{
		ID:           userID,
		Email:        userID + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return Session{UserID: userID, ActiveCellarID: cellarID}
}

// wineIn is a complete wine input at location.
func wineIn(producer, location string) domain.WineInput {
	return domain.WineInput{
		Name:     "Cuvée",
		Producer: producer,
		Year:     "2015",
		Region:   "Burgundy",
		Color:    "red",
		Location: location,
	}
}

func (e *testEnv) add(t *testing.T, sess Session, producer, location string) string {
	t.Helper()
	id, err := e.wines.Add(e.ctx, sess, wineIn(producer, location), nil)
	require.NoError(t, err)
	return id
}

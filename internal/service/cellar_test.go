package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/sse"
	"github.com/mycellarapp/cellar-server/internal/store"
)

func TestCellar_CreateActivates(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "")

	c, err := env.cellars.Create(env.ctx, sess, "  Belgium ", "")
	require.NoError(t, err)
	assert.Equal(t, "belgium", c.ID)
	assert.Equal(t, "belgium", c.Name)

	active, err := env.cellars.ActiveCellar(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "belgium", active)
	assert.Len(t, env.events.ofType(sse.EventCellarActivated), 1)

	_, err = env.cellars.Create(env.ctx, sess, "   ", "x")
	assert.Equal(t, domainerrors.CodeInvalidID, domainerrors.CodeOf(err))

	_, err = env.cellars.Create(env.ctx, sess, "default", "x")
	assert.Equal(t, domainerrors.CodeInvalidID, domainerrors.CodeOf(err))
}

func TestCellar_ActiveFallback(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "")

	active, err := env.cellars.ActiveCellar(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCellarID, active)

	_, err = env.cellars.Create(env.ctx, sess, "first", "")
	require.NoError(t, err)
	_, err = env.cellars.Create(env.ctx, sess, "second", "")
	require.NoError(t, err)

	// A stale selection falls back to the oldest cellar.
	require.NoError(t, env.kv.SetActiveCellar(env.ctx, "u1", "gone"))
	active, err = env.cellars.ActiveCellar(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "first", active)

	require.NoError(t, env.cellars.SetActiveCellar(env.ctx, sess, "default"))
	active, err = env.cellars.ActiveCellar(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCellarID, active)

	err = env.cellars.SetActiveCellar(env.ctx, sess, "nowhere")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestCellar_DeleteRules(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "")
	_, err := env.cellars.Create(env.ctx, sess, "garage", "")
	require.NoError(t, err)

	err = env.cellars.Delete(env.ctx, sess, "default", "")
	assert.Equal(t, domainerrors.CodeInvalidID, domainerrors.CodeOf(err))

	err = env.cellars.Delete(env.ctx, sess, "garage", "garage")
	assert.Equal(t, domainerrors.CodeCannotReassignToSelf, domainerrors.CodeOf(err))

	garage := Session{UserID: "u1", ActiveCellarID: "garage"}
	env.add(t, garage, "A", "R1")

	err = env.cellars.Delete(env.ctx, sess, "garage", "")
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeCellarNotEmpty, domainerrors.CodeOf(err))
	de, ok := domainerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "Cellar has wines. Reassign them before deletion.", de.Message)

	_, err = env.store.GetCellar(env.ctx, "u1", "garage")
	assert.NoError(t, err)
}

func TestCellar_DeleteWithReassign(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "")
	_, err := env.cellars.Create(env.ctx, sess, "garage", "")
	require.NoError(t, err)

	garage := Session{UserID: "u1", ActiveCellarID: "garage"}
	id := env.add(t, garage, "A", "R1")
	w, err := env.wines.Get(env.ctx, garage, env.add(t, garage, "B", "R2"))
	require.NoError(t, err)
	require.NoError(t, env.exps.Experience(env.ctx, garage, w, "", 3, ""))

	require.NoError(t, env.cellars.Delete(env.ctx, sess, "garage", "kitchen"))

	moved, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "kitchen", moved.CellarID)

	e, err := env.exps.GetExperienced(env.ctx, sess, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "kitchen", e.CellarID)

	_, err = env.store.GetCellar(env.ctx, "u1", "garage")
	assert.ErrorIs(t, err, store.ErrNotFound)

	doc, ok := env.index.get("u1", id)
	require.True(t, ok)
	assert.Equal(t, "kitchen", doc.CellarID)

	// The deleted cellar was active; the selection falls back.
	active, err := env.cellars.ActiveCellar(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCellarID, active)
}

func TestCellar_DeleteIgnoresLegacyRecords(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "")
	_, err := env.cellars.Create(env.ctx, sess, "garage", "")
	require.NoError(t, err)

	// An untagged wine belongs to "default", not to the cellar being deleted.
	require.NoError(t, env.store.CreateWine(env.ctx, "u1", &domain.Wine{Producer: "Old", Location: "L1"}))

	assert.NoError(t, env.cellars.Delete(env.ctx, sess, "garage", ""))
}

func TestCellar_ReassignBulkFromDefaultSweepsLegacy(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")

	legacy := &domain.Wine{Producer: "Old", Location: "L1"}
	require.NoError(t, env.store.CreateWine(env.ctx, "u1", legacy))
	tagged := env.add(t, sess, "New", "L2")
	other := env.add(t, Session{UserID: "u1", ActiveCellarID: "garage"}, "Other", "L3")

	res, err := env.cellars.ReassignBulk(env.ctx, sess, "default", "belgium")
	require.NoError(t, err)
	assert.Equal(t, 2, res.MovedWines)
	assert.Equal(t, 0, res.MovedExperienced)

	for _, id := range []string{legacy.ID, tagged} {
		w, err := env.wines.Get(env.ctx, sess, id)
		require.NoError(t, err)
		assert.Equal(t, "belgium", w.CellarID)
	}
	w, err := env.wines.Get(env.ctx, sess, other)
	require.NoError(t, err)
	assert.Equal(t, "garage", w.CellarID)

	infos := env.events.notices(sse.NoticeInfo)
	require.NotEmpty(t, infos)
	assert.Equal(t, `Moved 2 cellar wines and 0 experienced wines from "default" to "belgium".`, infos[len(infos)-1].Message)

	res, err = env.cellars.ReassignBulk(env.ctx, sess, "belgium", "belgium")
	require.NoError(t, err)
	assert.Zero(t, res.Total())
}

func TestCellar_IDsMatchCaseInsensitively(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "")
	_, err := env.cellars.Create(env.ctx, sess, "Garage", "")
	require.NoError(t, err)
	_, err = env.cellars.Create(env.ctx, sess, "cave", "")
	require.NoError(t, err)

	garage := Session{UserID: "u1", ActiveCellarID: "garage"}
	id := env.add(t, garage, "A", "R1")

	res, err := env.cellars.ReassignBulk(env.ctx, sess, " GARAGE ", "Kitchen")
	require.NoError(t, err)
	assert.Equal(t, 1, res.MovedWines)

	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "kitchen", w.CellarID)

	err = env.cellars.Delete(env.ctx, sess, "Garage", "garage")
	assert.Equal(t, domainerrors.CodeCannotReassignToSelf, domainerrors.CodeOf(err))

	require.NoError(t, env.cellars.Delete(env.ctx, sess, "Garage", ""))
	_, err = env.store.GetCellar(env.ctx, "u1", "garage")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = env.cellars.Delete(env.ctx, sess, "DEFAULT", "")
	assert.Equal(t, domainerrors.CodeInvalidID, domainerrors.CodeOf(err))
}

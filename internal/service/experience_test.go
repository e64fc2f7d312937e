package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/sse"
)

func TestExperience_MovesRecordKeepingID(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "garage")
	id := env.add(t, sess, "Domaine A", "R1")

	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)

	err = env.exps.Experience(env.ctx, sess, w, "silky", 4, "2024-05-01")
	require.NoError(t, err)

	_, err = env.wines.Get(env.ctx, sess, id)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	e, err := env.exps.GetExperienced(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "silky", e.TastingNotes)
	assert.Equal(t, 4, e.Rating)
	assert.Equal(t, "garage", e.CellarID)
	assert.Equal(t, "2024-05-01", e.ConsumedAt.Format("2006-01-02"))

	_, indexed := env.index.get("u1", id)
	assert.False(t, indexed)
	assert.Len(t, env.events.ofType(sse.EventExperiencedCreated), 1)

	// The location is free again.
	env.add(t, sess, "Domaine B", "R1")
}

func TestExperience_Rejects(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	id := env.add(t, sess, "A", "R1")
	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)

	err = env.exps.Experience(env.ctx, sess, nil, "", 3, "")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	err = env.exps.Experience(env.ctx, sess, w, "", domain.MaxRating+1, "")
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	err = env.exps.Experience(env.ctx, sess, w, "", 3, "yesterday")
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	// Nothing moved.
	_, err = env.wines.Get(env.ctx, sess, id)
	assert.NoError(t, err)
}

func TestRestore_ChecksLocation(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	id := env.add(t, sess, "A", "R1")
	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	require.NoError(t, env.exps.Experience(env.ctx, sess, w, "notes", 3, ""))

	env.add(t, sess, "B", "R1")

	in := domain.FromWine(w)
	err = env.exps.Restore(env.ctx, sess, id, in, nil)
	assert.Equal(t, domainerrors.CodeDuplicateLocation, domainerrors.CodeOf(err))

	in.Location = "R2"
	require.NoError(t, env.exps.Restore(env.ctx, sess, id, in, nil))

	restored, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "R2", restored.Location)
	assert.True(t, restored.AddedAt.Equal(w.AddedAt))

	_, err = env.exps.GetExperienced(env.ctx, sess, id)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, indexed := env.index.get("u1", id)
	assert.True(t, indexed)

	err = env.exps.Restore(env.ctx, sess, "wine-missing", in, nil)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestUpdateExperienced(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "garage")
	id := env.add(t, sess, "A", "R1")
	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	require.NoError(t, env.exps.Experience(env.ctx, sess, w, "first", 2, ""))

	notes := "second"
	rating := 5
	in := domain.ExperiencedInput{
		WineInput:    domain.FromWine(w),
		TastingNotes: &notes,
		Rating:       &rating,
		ConsumedDate: "2023-12-31",
	}
	in.CellarID = ""
	require.NoError(t, env.exps.UpdateExperienced(env.ctx, sess, id, in))

	e, err := env.exps.GetExperienced(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "second", e.TastingNotes)
	assert.Equal(t, 5, e.Rating)
	assert.Equal(t, "garage", e.CellarID)

	list, err := env.exps.ListExperienced(env.ctx, sess, ListOptions{Where: "producer == \"A\""})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, env.exps.DeleteExperienced(env.ctx, sess, id))
	list, err = env.exps.ListExperienced(env.ctx, sess, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestExperience_StaleReference(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	id := env.add(t, sess, "A", "R1")
	stale, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)

	require.NoError(t, env.wines.Delete(env.ctx, sess, id))

	err = env.exps.Experience(env.ctx, sess, stale, "gone", 3, "")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = env.exps.GetExperienced(env.ctx, sess, id)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = env.wines.Get(env.ctx, sess, id)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestExperience_UsesStoredFields(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	id := env.add(t, sess, "A", "R1")
	stale, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)

	edit := wineIn("A", "R1")
	edit.Region = "Loire"
	require.NoError(t, env.wines.Update(env.ctx, sess, id, edit, nil))

	require.NoError(t, env.exps.Experience(env.ctx, sess, stale, "", 3, ""))

	e, err := env.exps.GetExperienced(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "Loire", e.Region)
}

func TestRestore_RoundTripAndValidation(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	in := wineIn("Domaine A", "R1")
	in.Color = "white"
	in.DrinkingWindowStartYear = "2020"
	in.DrinkingWindowEndYear = "2030"
	id, err := env.wines.Add(env.ctx, sess, in, nil)
	require.NoError(t, err)
	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	require.NoError(t, env.exps.Experience(env.ctx, sess, w, "", 4, ""))

	e, err := env.exps.GetExperienced(env.ctx, sess, id)
	require.NoError(t, err)

	broken := domain.FromWine(&e.Wine)
	broken.Producer = ""
	err = env.exps.Restore(env.ctx, sess, id, broken, nil)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
	_, err = env.exps.GetExperienced(env.ctx, sess, id)
	require.NoError(t, err, "a rejected restore leaves the record experienced")

	require.NoError(t, env.exps.Restore(env.ctx, sess, id, domain.FromWine(&e.Wine), nil))

	restored, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, w.Producer, restored.Producer)
	assert.Equal(t, w.Region, restored.Region)
	assert.Equal(t, w.Color, restored.Color)
	assert.Equal(t, w.Location, restored.Location)
	assert.Equal(t, w.Year, restored.Year)
	assert.Equal(t, w.DrinkingWindowStartYear, restored.DrinkingWindowStartYear)
	assert.Equal(t, w.DrinkingWindowEndYear, restored.DrinkingWindowEndYear)
	assert.True(t, restored.AddedAt.Equal(w.AddedAt))
}

func TestRestore_BlankColorDefaultsToRed(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	id := env.add(t, sess, "A", "R1")
	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	require.NoError(t, env.exps.Experience(env.ctx, sess, w, "", 3, ""))

	in := domain.FromWine(w)
	in.Color = ""
	require.NoError(t, env.exps.Restore(env.ctx, sess, id, in, nil))

	restored, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ColorRed, restored.Color)
}

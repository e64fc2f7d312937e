package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
	"github.com/mycellarapp/cellar-server/internal/sse"
)

func TestWineService_NotReady(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.wines.Add(env.ctx, Session{}, wineIn("A", "R1"), nil)
	assert.ErrorIs(t, err, domainerrors.ErrNotReady)

	_, err = env.wines.List(env.ctx, Session{}, ListOptions{})
	assert.ErrorIs(t, err, domainerrors.ErrNotReady)
}

func TestWineService_AddAssignsActiveCellar(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "belgium")

	id := env.add(t, sess, "Domaine A", "R1")

	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "belgium", w.CellarID)
	assert.False(t, w.AddedAt.IsZero())

	_, indexed := env.index.get("u1", id)
	assert.True(t, indexed)
	assert.Len(t, env.events.ofType(sse.EventWineCreated), 1)
}

func TestWineService_DuplicateLocation(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	env.add(t, sess, "Domaine A", "Rack1-A")

	_, err := env.wines.Add(env.ctx, sess, wineIn("B", " rack1-a "), nil)
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeDuplicateLocation, domainerrors.CodeOf(err))

	notices := env.events.notices(sse.NoticeError)
	require.Len(t, notices, 1)
	assert.Equal(t, string(domainerrors.CodeDuplicateLocation), notices[0].Code)

	// Same location in another cellar is fine.
	elsewhere := wineIn("B", "Rack1-A")
	elsewhere.CellarID = "garage"
	_, err = env.wines.Add(env.ctx, sess, elsewhere, nil)
	assert.NoError(t, err)
}

func TestWineService_AddValidates(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")

	tests := []struct {
		name  string
		edit  func(in *domain.WineInput)
		field string
	}{
		{"missing producer", func(in *domain.WineInput) { in.Producer = " " }, "producer"},
		{"missing region", func(in *domain.WineInput) { in.Region = "" }, "region"},
		{"missing color", func(in *domain.WineInput) { in.Color = "" }, "color"},
		{"unknown color", func(in *domain.WineInput) { in.Color = "purple" }, "color"},
		{"missing location", func(in *domain.WineInput) { in.Location = "  " }, "location"},
		{"vintage too old", func(in *domain.WineInput) { in.Year = "999" }, "year"},
		{"window ends before it starts", func(in *domain.WineInput) {
			in.DrinkingWindowStartYear = "2030"
			in.DrinkingWindowEndYear = "2025"
		}, "drinkingWindowEndYear"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := wineIn("A", "R1")
			tt.edit(&in)

			_, err := env.wines.Add(env.ctx, sess, in, nil)
			require.Error(t, err)
			assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

			de, ok := domainerrors.AsError(err)
			require.True(t, ok)
			fields, ok := de.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, fields, tt.field)
			assert.Contains(t, de.Message, tt.field)
		})
	}

	wines, err := env.wines.List(env.ctx, sess, ListOptions{AllCellars: true})
	require.NoError(t, err)
	assert.Empty(t, wines)

	// Accented and mixed-case colors are stored in canonical form.
	in := wineIn("A", "R1")
	in.Color = "Rosé"
	id, err := env.wines.Add(env.ctx, sess, in, nil)
	require.NoError(t, err)
	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ColorRose, w.Color)
}

func TestWineService_UpdateValidates(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	id := env.add(t, sess, "A", "R1")

	in := wineIn("A", "R1")
	in.Color = "purple"
	err := env.wines.Update(env.ctx, sess, id, in, nil)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	in = wineIn("", "R1")
	err = env.wines.Update(env.ctx, sess, id, in, nil)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "A", w.Producer)
	assert.Equal(t, domain.ColorRed, w.Color)
}

func TestWineService_CellarIDsAreSlugs(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	_, err := env.cellars.Create(env.ctx, sess, "garage", "Garage")
	require.NoError(t, err)

	in := wineIn("A", "R1")
	in.CellarID = " Garage "
	id, err := env.wines.Add(env.ctx, sess, in, nil)
	require.NoError(t, err)

	w, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "garage", w.CellarID)

	listed, err := env.wines.List(env.ctx, sess, ListOptions{CellarID: "GARAGE"})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	n, err := env.wines.EraseAll(env.ctx, sess, "Garage")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWineService_UpdateKeepsCellarAndAddedAt(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "garage")
	id := env.add(t, sess, "A", "R1")
	other := env.add(t, sess, "B", "R2")

	before, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)

	// The session switched cellars; the wine stays where it was.
	moved := Session{UserID: "u1", ActiveCellarID: "kitchen"}
	err = env.wines.Update(env.ctx, moved, id, wineIn("A2", "R3"), nil)
	require.NoError(t, err)

	after, err := env.wines.Get(env.ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "A2", after.Producer)
	assert.Equal(t, "garage", after.CellarID)
	assert.True(t, before.AddedAt.Equal(after.AddedAt))

	err = env.wines.Update(env.ctx, sess, other, wineIn("B", "r3"), nil)
	assert.Equal(t, domainerrors.CodeDuplicateLocation, domainerrors.CodeOf(err))

	// Keeping its own location is not a conflict.
	err = env.wines.Update(env.ctx, sess, id, wineIn("A3", "R3"), nil)
	assert.NoError(t, err)

	err = env.wines.Update(env.ctx, sess, "wine-missing", wineIn("X", "R9"), nil)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	err = env.wines.Update(env.ctx, sess, " ", wineIn("X", "R9"), nil)
	assert.Equal(t, domainerrors.CodeInvalidID, domainerrors.CodeOf(err))
}

func TestWineService_StaleSnapshotIsHonored(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")

	stale, err := env.wines.Snapshot(env.ctx, sess, "default")
	require.NoError(t, err)
	stale = append(stale, domain.Wine{ID: "wine-ghost", Location: "R1", CellarID: "default"})

	_, err = env.wines.Add(env.ctx, sess, wineIn("A", "R1"), stale)
	assert.Equal(t, domainerrors.CodeDuplicateLocation, domainerrors.CodeOf(err))
}

func TestWineService_ConcurrentAddsSameLocation(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.wines.Add(env.ctx, sess, wineIn("A", "R1"), nil)
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
}

func TestWineService_EraseAll(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "garage")

	n, err := env.wines.EraseAll(env.ctx, sess, "garage")
	require.NoError(t, err)
	assert.Zero(t, n)
	infos := env.events.notices(sse.NoticeInfo)
	require.Len(t, infos, 1)
	assert.Equal(t, "Cellar already empty.", infos[0].Message)

	a := env.add(t, sess, "A", "R1")
	env.add(t, sess, "B", "R2")
	kitchen := wineIn("C", "R1")
	kitchen.CellarID = "kitchen"
	_, err = env.wines.Add(env.ctx, sess, kitchen, nil)
	require.NoError(t, err)

	n, err = env.wines.EraseAll(env.ctx, sess, "garage")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, indexed := env.index.get("u1", a)
	assert.False(t, indexed)

	rest, err := env.wines.List(env.ctx, sess, ListOptions{AllCellars: true})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "kitchen", rest[0].CellarID)
}

func TestWineService_ListSearchAndWhere(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")

	_, err := env.wines.Add(env.ctx, sess, domain.WineInput{Producer: "Zind", Region: "Alsace", Year: "2018", Color: "white", Location: "R1"}, nil)
	require.NoError(t, err)
	_, err = env.wines.Add(env.ctx, sess, domain.WineInput{Producer: "Armand", Region: "Burgundy", Year: "2010", Color: "red", Location: "R2"}, nil)
	require.NoError(t, err)

	all, err := env.wines.List(env.ctx, sess, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Armand", all[0].Producer)

	found, err := env.wines.List(env.ctx, sess, ListOptions{Search: "alsace"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Zind", found[0].Producer)

	old, err := env.wines.List(env.ctx, sess, ListOptions{Where: `year < 2015 && color == "red"`})
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, "Armand", old[0].Producer)

	_, err = env.wines.List(env.ctx, sess, ListOptions{Where: "year <"})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestWineService_DrinkSoonSpansCellars(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")

	past := wineIn("Past", "R1")
	past.DrinkingWindowEndYear = "2001"
	past.CellarID = "garage"
	_, err := env.wines.Add(env.ctx, sess, past, nil)
	require.NoError(t, err)
	future := wineIn("Future", "R2")
	future.DrinkingWindowEndYear = "2090"
	_, err = env.wines.Add(env.ctx, sess, future, nil)
	require.NoError(t, err)
	env.add(t, sess, "Open", "R3")

	soon, err := env.wines.DrinkSoon(env.ctx, sess)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, "Past", soon[0].Producer)
}

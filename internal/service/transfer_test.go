package service

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImport_RollingSnapshot(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	env.add(t, sess, "Existing", "R9")

	csv := "\uFEFFName;Producer;Year;Region;Color;Location\n" +
		"Cuvée;A;2015;Rhône;red;R1\n" +
		"\n" +
		"Cuvée;B;2016;Rhône;white;r1\n" +
		"Cuvée;C;2017;Rhône;rose;R9\n" +
		"Cuvée;D;;Loire;white;R2\n"

	res, err := env.transfer.Import(env.ctx, sess, strings.NewReader(csv), "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], `"r1"`)
	assert.Contains(t, res.Errors[1], `"R9"`)

	wines, err := env.wines.List(env.ctx, sess, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, wines, 3)
}

func TestImport_TargetCellar(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")

	csv := "name;producer;region;color;location\nX;A;Loire;white;R1\n"
	res, err := env.transfer.Import(env.ctx, sess, strings.NewReader(csv), "garage")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	wines, err := env.wines.List(env.ctx, sess, ListOptions{CellarID: "garage"})
	require.NoError(t, err)
	require.Len(t, wines, 1)
	assert.Equal(t, "garage", wines[0].CellarID)
}

func TestImport_ReportsInvalidRows(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")

	csv := "Name;Producer;Region;Color;Location\n" +
		"Cuvée;A;Loire;purple;R1\n" +
		"Cuvée;B;;red;R2\n" +
		"Cuvée;C;Loire;red;R3\n"

	res, err := env.transfer.Import(env.ctx, sess, strings.NewReader(csv), "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "Line 2")
	assert.Contains(t, res.Errors[0], "color")
	assert.Contains(t, res.Errors[1], "Line 3")
	assert.Contains(t, res.Errors[1], "region")
}

func TestExport_Wines(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	env.add(t, sess, "Producer; Inc", "R1")

	var buf bytes.Buffer
	name, err := env.transfer.ExportWines(env.ctx, sess, ListOptions{}, &buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "my_cellar_"))
	assert.True(t, strings.HasSuffix(name, ".csv"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Name;Producer;Year"))
	assert.Contains(t, lines[1], `"Producer; Inc"`)
}

func TestExport_Experienced(t *testing.T) {
	env := newTestEnv(t)
	sess := env.session(t, "u1", "default")
	w, err := env.wines.Get(env.ctx, sess, env.add(t, sess, "A", "R1"))
	require.NoError(t, err)
	require.NoError(t, env.exps.Experience(env.ctx, sess, w, "lovely", 5, "2024-02-03"))

	var buf bytes.Buffer
	name, err := env.transfer.ExportExperienced(env.ctx, sess, ListOptions{}, &buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "experienced_wines_"))
	assert.Contains(t, buf.String(), "2024-02-03;5;lovely")
}

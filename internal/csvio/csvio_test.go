package csvio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

func TestParse(t *testing.T) {
	input := "\ufeffName;PRODUCER;Year;Region;Color;Location\r\n" +
		"Grand Cru; Domaine A ;2015;Burgundy;red;Rack1-A\r\n" +
		"\r\n" +
		"\"Brut; Réserve\";\"Maison \"\"B\"\"\";;Champagne;sparkling\n"

	headers, rows, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "producer", "year", "region", "color", "location"}, headers)
	require.Len(t, rows, 2)

	assert.Equal(t, "Domaine A", rows[0].Get("Producer"))
	assert.Equal(t, "2015", rows[0].Get("year"))

	assert.Equal(t, "Brut; Réserve", rows[1].Get("name"))
	assert.Equal(t, `Maison "B"`, rows[1].Get("producer"))
	assert.Equal(t, "", rows[1].Get("location"))
}

func TestParse_HeaderOnly(t *testing.T) {
	headers, rows, err := Parse(strings.NewReader("Name;Producer\n"))
	require.NoError(t, err)
	assert.Len(t, headers, 2)
	assert.Empty(t, rows)
}

func TestRow_WineInput(t *testing.T) {
	row := Row{Fields: map[string]string{"producer": "A", "year": "2019", "location": "B2"}}

	in := row.WineInput("garage")
	assert.Equal(t, "A", in.Producer)
	assert.Equal(t, "2019", in.Year)
	assert.Equal(t, "garage", in.CellarID)
	assert.Nil(t, in.Notes)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "plain", Escape("plain"))
	assert.Equal(t, `"a;b"`, Escape("a;b"))
	assert.Equal(t, `"a,b"`, Escape("a,b"))
	assert.Equal(t, `"say ""hi"""`, Escape(`say "hi"`))
	assert.Equal(t, "\"two\nlines\"", Escape("two\nlines"))
}

func TestWriteWines_RoundTrip(t *testing.T) {
	wines := []domain.Wine{
		{Name: "Cuvée; Spéciale", Producer: "Domaine A", Year: domain.IntPtr(2015), Region: "Burgundy",
			Color: domain.ColorRed, Location: "Rack1-A", DrinkingWindowEndYear: domain.IntPtr(2030)},
		{Producer: "B", Region: "Loire", Color: domain.ColorWhite, Location: "R2"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWines(&buf, wines))

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name;Producer;Year;Region;Color;Location;DrinkingWindowStartYear;DrinkingWindowEndYear", lines[0])
	assert.Equal(t, `"Cuvée; Spéciale";Domaine A;2015;Burgundy;red;Rack1-A;;2030`, lines[1])
	assert.Equal(t, ";B;;Loire;white;R2;;", lines[2])

	_, rows, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Cuvée; Spéciale", rows[0].Get("name"))
	assert.Equal(t, "2030", rows[0].Get("DrinkingWindowEndYear"))
}

func TestWriteExperienced(t *testing.T) {
	wines := []domain.ExperiencedWine{{
		Wine:         domain.Wine{Producer: "A", Color: domain.ColorRose, Location: "L"},
		TastingNotes: "fresh, bright",
		Rating:       4,
		ConsumedAt:   time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteExperienced(&buf, wines))

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], ";ConsumedAt;Rating;TastingNotes"))
	assert.Equal(t, `;A;;;rose;L;;;2024-03-09;4;"fresh, bright"`, lines[1])
}

func TestReadLocationMapping(t *testing.T) {
	input := "Rack1-A, Belgium\n\nbad-line\n r2 ,GARAGE\n,nowhere\n"

	m, err := ReadLocationMapping(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"rack1-a": "belgium", "r2": "garage"}, m)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "my_cellar_2025-01-31.csv", FileName("my_cellar", time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)))
}

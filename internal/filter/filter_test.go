package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycellarapp/cellar-server/internal/domain"
	domainerrors "github.com/mycellarapp/cellar-server/internal/errors"
)

func testWines() []domain.Wine {
	return []domain.Wine{
		{ID: "1", Producer: "Domaine A", Region: "Burgundy", Color: domain.ColorRed, Year: domain.IntPtr(2012), DrinkingWindowEndYear: domain.IntPtr(2024)},
		{ID: "2", Producer: "Maison B", Region: "Champagne", Color: domain.ColorSparkling, CellarID: "garage"},
		{ID: "3", Producer: "Domaine C", Region: "Loire", Color: domain.ColorWhite, Year: domain.IntPtr(2020)},
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"empty", "  "},
		{"syntax", "color ==="},
		{"not bool", "year + 1"},
		{"unknown variable", "grape == 'pinot'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.source)
			require.Error(t, err)
			assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	tests := []struct {
		source string
		want   []string
	}{
		{`color == "red"`, []string{"1"}},
		{`year > 0 && year < 2015`, []string{"1"}},
		{`cellarId == "default"`, []string{"1", "3"}},
		{`producer startsWith "Domaine" && region != "Loire"`, []string{"1"}},
		{`end > 0 && end <= now.Year()`, []string{"1"}},
		{`year == 0`, []string{"2"}},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			f, err := Compile(tt.source)
			require.NoError(t, err)

			got, err := f.Apply(testWines())
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, w := range got {
				ids = append(ids, w.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

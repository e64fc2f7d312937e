package domain

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// WineSet is a caller-held snapshot of active wines. Write operations check
// invariants against it rather than against a store-side constraint, so two
// writers holding stale snapshots can both pass the location check.
type WineSet []Wine

// LocationTaken reports whether another wine in cellarID already uses location.
// Both sides are compared trimmed and lowercased; excludeID skips the wine
// being edited. A blank location never collides.
func (s WineSet) LocationTaken(location, cellarID, excludeID string) bool {
	loc := NormalizeLocation(location)
	if loc == "" {
		return false
	}
	cellar := NormalizeCellarID(cellarID)
	for i := range s {
		w := &s[i]
		if excludeID != "" && w.ID == excludeID {
			continue
		}
		if w.Cellar() == cellar && NormalizeLocation(w.Location) == loc {
			return true
		}
	}
	return false
}

// Find returns the wine with id, or nil.
func (s WineSet) Find(id string) *Wine {
	for i := range s {
		if s[i].ID == id {
			return &s[i]
		}
	}
	return nil
}

// InCellar keeps the wines whose normalized cellar equals cellarID. An empty
// cellarID means no scoping.
func (s WineSet) InCellar(cellarID string) WineSet {
	if strings.TrimSpace(cellarID) == "" {
		return s
	}
	out := make(WineSet, 0, len(s))
	for _, w := range s {
		if w.Cellar() == cellarID {
			out = append(out, w)
		}
	}
	return out
}

// Matching keeps the wines for which MatchesSearch holds.
func (s WineSet) Matching(term string) WineSet {
	if term == "" {
		return s
	}
	out := make(WineSet, 0, len(s))
	for _, w := range s {
		if MatchesSearch(&w, term) {
			out = append(out, w)
		}
	}
	return out
}

// MatchesSearch is a case-insensitive substring match over the fields a user
// sees in the cellar list.
func MatchesSearch(w *Wine, term string) bool {
	term = strings.ToLower(term)
	if term == "" {
		return true
	}
	fields := []string{w.Name, w.Producer, w.Region, string(w.Color), w.Location}
	if w.Year != nil && *w.Year != 0 {
		fields = append(fields, strconv.Itoa(*w.Year))
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// DrinkSoon returns the wines whose drinking window closes on or before year.
func DrinkSoon(wines []Wine, year int) []Wine {
	out := make([]Wine, 0)
	for _, w := range wines {
		if end := w.DrinkingWindowEndYear; end != nil && *end != 0 && *end <= year {
			out = append(out, w)
		}
	}
	return out
}

// SortWines orders by producer using locale collation, then by vintage with
// missing vintages first.
func SortWines(wines []Wine) {
	c := collate.New(language.Und)
	slices.SortStableFunc(wines, func(a, b Wine) int {
		if r := c.CompareString(a.Producer, b.Producer); r != 0 {
			return r
		}
		return cmp.Compare(yearOrZero(a.Year), yearOrZero(b.Year))
	})
}

// SortExperienced orders most recently consumed first.
func SortExperienced(wines []ExperiencedWine) {
	slices.SortStableFunc(wines, func(a, b ExperiencedWine) int {
		return b.ConsumedAt.Compare(a.ConsumedAt)
	})
}

// SortCellars orders by creation time, oldest first.
func SortCellars(cellars []Cellar) {
	slices.SortStableFunc(cellars, func(a, b Cellar) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func yearOrZero(y *int) int {
	if y == nil {
		return 0
	}
	return *y
}

package domain

import (
	"strconv"
	"strings"
	"time"
)

// DefaultCellarID is the implicit bucket for wines with no cellar. It is never
// stored as a Cellar row.
const DefaultCellarID = "default"

// Color is the wine style.
type Color string

const (
	ColorRed       Color = "red"
	ColorWhite     Color = "white"
	ColorRose      Color = "rose"
	ColorSparkling Color = "sparkling"
	ColorOther     Color = "other"
)

// Colors lists every valid color in display order.
var Colors = []Color{ColorRed, ColorWhite, ColorRose, ColorSparkling, ColorOther}

// ParseColor accepts any casing plus the accented "rosé".
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return ColorRed, true
	case "white":
		return ColorWhite, true
	case "rose", "rosé":
		return ColorRose, true
	case "sparkling":
		return ColorSparkling, true
	case "other":
		return ColorOther, true
	default:
		return "", false
	}
}

// Wine is a bottle currently in a cellar.
type Wine struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Producer                string    `json:"producer"`
	Year                    *int      `json:"year"`
	Region                  string    `json:"region"`
	Color                   Color     `json:"color"`
	Location                string    `json:"location"`
	DrinkingWindowStartYear *int      `json:"drinkingWindowStartYear"`
	DrinkingWindowEndYear   *int      `json:"drinkingWindowEndYear"`
	CellarID                string    `json:"cellarId"`
	Notes                   string    `json:"notes"`
	AddedAt                 time.Time `json:"addedAt"`
}

// Cellar returns the wine's cellar with the legacy empty value folded into "default".
func (w *Wine) Cellar() string {
	return NormalizeCellarID(w.CellarID)
}

// WineInput is a wine as entered by a user. Year fields are raw text and go
// through CoerceYear before they are stored.
type WineInput struct {
	Name                    string
	Producer                string
	Year                    string
	Region                  string
	Color                   string
	Location                string
	DrinkingWindowStartYear string
	DrinkingWindowEndYear   string
	CellarID                string
	// Notes nil means "not provided".
	Notes *string
}

// FromWine converts a stored wine back into editable input.
func FromWine(w *Wine) WineInput {
	notes := w.Notes
	return WineInput{
		Name:                    w.Name,
		Producer:                w.Producer,
		Year:                    FormatYear(w.Year),
		Region:                  w.Region,
		Color:                   string(w.Color),
		Location:                w.Location,
		DrinkingWindowStartYear: FormatYear(w.DrinkingWindowStartYear),
		DrinkingWindowEndYear:   FormatYear(w.DrinkingWindowEndYear),
		CellarID:                w.CellarID,
		Notes:                   &notes,
	}
}

// CoerceYear parses a year leniently: surrounding space is ignored, a leading
// integer is taken from strings like "2015 (est.)", and anything else is nil.
func CoerceYear(s string) *int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && s[end] == '-') {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return nil
	}
	return &n
}

// FormatYear renders an optional year, empty when absent.
func FormatYear(y *int) string {
	if y == nil {
		return ""
	}
	return strconv.Itoa(*y)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// NormalizeCellarID maps the legacy empty cellar to "default". Applied wherever
// a cellar id is read.
func NormalizeCellarID(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return DefaultCellarID
	}
	return id
}

// NormalizeCellarSlug is the user-chosen cellar id form: trimmed and lowercased.
func NormalizeCellarSlug(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// NormalizeLocation is the comparison form of a location slot.
func NormalizeLocation(loc string) string {
	return strings.ToLower(strings.TrimSpace(loc))
}

// ResolveCellar picks the explicit cellar, then the active one, then "default".
// The result is in slug form.
func ResolveCellar(explicit, active string) string {
	if c := NormalizeCellarSlug(explicit); c != "" {
		return c
	}
	return NormalizeCellarID(NormalizeCellarSlug(active))
}

// Package label extracts wine fields from text read off a bottle label.
package label

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Regions are checked in order; the first one found wins.
var Regions = []string{
	"bordeaux", "burgundy", "napa", "tuscany", "rioja", "mosel", "champagne", "provence",
	"piedmont", "alsace", "rhone", "chianti", "sonoma", "barossa", "mendoza", "willamette",
}

// colorKeywords is ordered by priority.
var colorKeywords = []struct {
	color    domain.Color
	keywords []string
}{
	{domain.ColorRose, []string{"rosé", "rose"}},
	{domain.ColorWhite, []string{"white", "blanc"}},
	{domain.ColorSparkling, []string{"sparkling", "champagne"}},
	{domain.ColorRed, []string{"red", "rouge"}},
}

// Result holds the fields recognized on a label. Empty fields were not found.
type Result struct {
	Producer string       `json:"producer,omitempty"`
	Name     string       `json:"name,omitempty"`
	Year     string       `json:"year,omitempty"`
	Region   string       `json:"region,omitempty"`
	Color    domain.Color `json:"color,omitempty"`
}

// Parse reads label text. The first non-empty line is taken as the producer
// and the second as the wine name.
func Parse(text string) Result {
	var r Result
	if strings.TrimSpace(text) == "" {
		return r
	}

	if m := yearPattern.FindString(text); m != "" {
		r.Year = m
	}

	lower := strings.ToLower(text)
	for _, ck := range colorKeywords {
		if containsAny(lower, ck.keywords) {
			r.Color = ck.color
			break
		}
	}

	folded := fold(lower)
	for _, region := range Regions {
		if strings.Contains(folded, region) {
			r.Region = cases.Title(language.Und).String(region)
			break
		}
	}

	var lines []string
	for line := range strings.Lines(text) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		r.Producer = lines[0]
	}
	if len(lines) > 1 {
		r.Name = lines[1]
	}
	return r
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// fold strips diacritics so "Rhône" matches "rhone".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

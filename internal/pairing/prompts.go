package pairing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

// NoSuggestion is shown when the model returns no text.
const NoSuggestion = "No suggestion available."

var yearRangePattern = regexp.MustCompile(`(\d{4}).*(\d{4})`)

// FoodPairingPrompt asks for foods that suit w.
func FoodPairingPrompt(w *domain.Wine) string {
	parts := []string{w.Producer}
	if w.Name != "" {
		parts = append(parts, "("+w.Name+")")
	}
	parts = append(parts, w.Region)
	if w.Year != nil && *w.Year != 0 {
		parts = append(parts, strconv.Itoa(*w.Year))
	}
	return fmt.Sprintf("Suggest 1-3 foods that would pair well with the wine: %s.", joinNonEmpty(parts))
}

// WinePairingPrompt asks which of the listed cellar wines suit food.
func WinePairingPrompt(food string, wines []domain.Wine) string {
	return fmt.Sprintf("Given the food item: %q, and the following wines from my cellar:\n\n%s\n\n"+
		"Suggest 1-3 wines from the list that would pair well with %q. Focus only on the provided wine list.",
		food, WineList(wines), food)
}

// ShoppingPrompt asks for wines to buy for food.
func ShoppingPrompt(food string) string {
	return fmt.Sprintf("Suggest 1-3 wines to buy that would pair well with %q.", food)
}

// DrinkingWindowPrompt asks for a conservative "YYYY-YYYY" window.
func DrinkingWindowPrompt(w *domain.Wine) string {
	return "Suggest a conservative drinking window in years for the following wine. " +
		"The end year should err on the early side. Provide the result as \"YYYY-YYYY\" only.\n" +
		"Producer: " + w.Producer + "\n" +
		"Name: " + w.Name + "\n" +
		"Year: " + domain.FormatYear(w.Year) + "\n" +
		"Color: " + string(w.Color)
}

// WineList renders one line per wine for use inside a prompt.
func WineList(wines []domain.Wine) string {
	var b strings.Builder
	for i := range wines {
		w := &wines[i]
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(joinNonEmpty([]string{w.Producer, w.Name, domain.FormatYear(w.Year)}))
		if w.Region != "" || w.Color != "" {
			b.WriteString(" (")
			b.WriteString(strings.Join(nonEmpty(w.Region, string(w.Color)), ", "))
			b.WriteString(")")
		}
	}
	return b.String()
}

// ExtractYearRange finds the first and last four-digit numbers in text.
func ExtractYearRange(text string) (start, end int, ok bool) {
	m := yearRangePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	start, _ = strconv.Atoi(m[1])
	end, _ = strconv.Atoi(m[2])
	return start, end, true
}

func joinNonEmpty(parts []string) string {
	return strings.Join(nonEmpty(parts...), " ")
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

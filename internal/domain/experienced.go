package domain

import (
	"strings"
	"time"
)

// MaxRating is the top of the tasting rating scale.
const MaxRating = 5

// ExperiencedWine is a wine that has been consumed. It keeps the id of the
// wine it was moved from.
type ExperiencedWine struct {
	Wine
	TastingNotes  string    `json:"tastingNotes"`
	Rating        int       `json:"rating"`
	ConsumedAt    time.Time `json:"consumedAt"`
	ExperiencedAt time.Time `json:"experiencedAt"`
}

// ExperiencedInput edits an experienced record. The embedded wine fields follow
// WineInput rules.
type ExperiencedInput struct {
	WineInput
	TastingNotes *string
	Rating       *int
	ConsumedDate string
}

// ParseConsumedDate accepts "2006-01-02" or RFC 3339. Empty input yields now.
func ParseConsumedDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ValidRating reports whether r is within 0..MaxRating.
func ValidRating(r int) bool {
	return r >= 0 && r <= MaxRating
}

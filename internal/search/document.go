// Package search provides full-text search over a user's active wines using
// Bleve. One index holds every user's wines; each query is scoped by user id.
package search

import (
	"github.com/mycellarapp/cellar-server/internal/domain"
)

// WineDocument is the indexed form of an active wine.
//
// Documents are keyed "<userID>/<wineID>" so the same wine id can never
// collide across accounts.
type WineDocument struct {
	UserID   string `json:"user_id"`
	WineID   string `json:"wine_id"`
	CellarID string `json:"cellar_id"`

	Name     string `json:"name"`
	Producer string `json:"producer"`
	Region   string `json:"region"`
	Location string `json:"location"`
	Notes    string `json:"notes,omitempty"`
	Color    string `json:"color"`

	Year    int   `json:"year,omitempty"`
	EndYear int   `json:"end_year,omitempty"`
	AddedAt int64 `json:"added_at"` // Unix millis
}

// DocID is the index key for a user's wine.
func DocID(userID, wineID string) string {
	return userID + "/" + wineID
}

// ID returns the document's index key.
func (d *WineDocument) ID() string {
	return DocID(d.UserID, d.WineID)
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *WineDocument) ToMap() map[string]any {
	m := map[string]any{
		"user_id":   d.UserID,
		"wine_id":   d.WineID,
		"cellar_id": d.CellarID,
		"name":      d.Name,
		"producer":  d.Producer,
		"region":    d.Region,
		"location":  d.Location,
		"color":     d.Color,
		"added_at":  d.AddedAt,
	}
	if d.Notes != "" {
		m["notes"] = d.Notes
	}
	if d.Year > 0 {
		m["year"] = d.Year
	}
	if d.EndYear > 0 {
		m["end_year"] = d.EndYear
	}
	return m
}

// WineToDocument converts a wine. The cellar is normalized so legacy wines
// are found under "default".
func WineToDocument(userID string, w *domain.Wine) *WineDocument {
	doc := &WineDocument{
		UserID:   userID,
		WineID:   w.ID,
		CellarID: w.Cellar(),
		Name:     w.Name,
		Producer: w.Producer,
		Region:   w.Region,
		Location: w.Location,
		Notes:    w.Notes,
		Color:    string(w.Color),
		AddedAt:  w.AddedAt.UnixMilli(),
	}
	if w.Year != nil {
		doc.Year = *w.Year
	}
	if w.DrinkingWindowEndYear != nil {
		doc.EndYear = *w.DrinkingWindowEndYear
	}
	return doc
}

package domain

import "time"

// Cellar is a named, user-created bucket of wines. The virtual "default"
// cellar has no row.
type Cellar struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsDefault reports whether id names the virtual default cellar.
func IsDefault(id string) bool {
	return NormalizeCellarID(id) == DefaultCellarID
}

// ReassignResult counts the records moved between cellars.
type ReassignResult struct {
	MovedWines       int `json:"movedWines"`
	MovedExperienced int `json:"movedExperienced"`
}

// Total is the number of records moved.
func (r ReassignResult) Total() int { return r.MovedWines + r.MovedExperienced }

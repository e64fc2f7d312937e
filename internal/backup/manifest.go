package backup

import (
	"strings"
	"time"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

// FormatVersion is the backup format version. Increment major on breaking changes.
const FormatVersion = "1.0"

// Archive entry names.
const (
	manifestFile    = "manifest.json"
	usersFile       = "users.jsonl"
	cellarsFile     = "cellars.jsonl"
	winesFile       = "wines.jsonl"
	experiencedFile = "experienced.jsonl"
)

// fileExt marks backup archives in the backup directory.
const fileExt = ".cellar.zip"

// Manifest describes backup contents and metadata.
type Manifest struct {
	Version       string       `json:"version"`
	CreatedAt     time.Time    `json:"created_at"`
	ServerVersion string       `json:"server_version"`
	Counts        EntityCounts `json:"counts"`
}

// compatible reports whether a backup with this manifest can be restored.
func (m *Manifest) compatible() bool {
	major, _, _ := strings.Cut(m.Version, ".")
	want, _, _ := strings.Cut(FormatVersion, ".")
	return major == want
}

// EntityCounts tracks entity counts for validation and progress reporting.
type EntityCounts struct {
	Users       int `json:"users"`
	Cellars     int `json:"cellars"`
	Wines       int `json:"wines"`
	Experienced int `json:"experienced"`
}

// userRecord keeps the password hash, which domain.User never serializes.
type userRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLoginAt  time.Time `json:"last_login_at,omitzero"`
}

func newUserRecord(u *domain.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}

func (r userRecord) user() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLoginAt:  r.LastLoginAt,
	}
}

type cellarRecord struct {
	UserID string        `json:"user_id"`
	Cellar domain.Cellar `json:"cellar"`
}

type wineRecord struct {
	UserID string      `json:"user_id"`
	Wine   domain.Wine `json:"wine"`
}

type experiencedRecord struct {
	UserID      string                 `json:"user_id"`
	Experienced domain.ExperiencedWine `json:"experienced"`
}

package backup

import "time"

// BackupOptions configures backup creation.
type BackupOptions struct {
	OutputPath string // Where to write the backup file; default is a timestamped name in the backup dir
}

// RestoreOptions configures restoration. Restores always merge: users that
// already exist are kept, records with a matching id are replaced.
type RestoreOptions struct {
	DryRun bool // Validate without writing
}

// BackupResult contains the outcome of a backup operation.
type BackupResult struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Counts   EntityCounts  `json:"counts"`
	Duration time.Duration `json:"duration"`
	Checksum string        `json:"checksum"`
}

// BackupInfo describes an existing backup.
type BackupInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// RestoreResult contains the outcome of a restore operation.
type RestoreResult struct {
	Imported EntityCounts   `json:"imported"`
	Skipped  EntityCounts   `json:"skipped"`
	Errors   []RestoreError `json:"errors,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// RestoreError describes a non-fatal error during restore.
type RestoreError struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	Error      string `json:"error"`
}

package api

// API limits and constants.
const (
	// MaxUploadSize is the maximum allowed size for CSV imports (10 MB).
	MaxUploadSize = 10 << 20
)

// Cache-Control header values.
const (
	CacheNoStore = "no-store"
)

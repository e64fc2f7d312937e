package importwatch

import (
	"path/filepath"
	"strings"
	"time"
)

// ProcessedDir is the folder under the root that imported files are moved to.
const ProcessedDir = "processed"

// Options configures the drop folder watcher.
type Options struct {
	// Root is the drop folder, normally <data>/imports.
	Root string
	// SettleDelay is how long a file must stay unchanged before it is read.
	SettleDelay time.Duration
	// IgnorePatterns are matched against the base name.
	IgnorePatterns []string
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = 2 * time.Second
	}
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{".DS_Store", "*.tmp", "*.temp", "*.part", "~*"}
	}
}

// shouldIgnore reports whether path is hidden, inside the processed folder or
// matches an ignore pattern.
func (o *Options) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(o.Root, path)
	if err != nil {
		return true
	}
	parts := strings.Split(filepath.Clean(rel), string(filepath.Separator))
	if len(parts) > 0 && parts[0] == ProcessedDir {
		return true
	}
	for _, part := range parts {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}

// target splits a dropped file path into its user and cellar. Only
// <root>/<userId>/<cellarId>.csv is accepted.
func (o *Options) target(path string) (userID, cellarID string, ok bool) {
	rel, err := filepath.Rel(o.Root, path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.Clean(rel), string(filepath.Separator))
	if len(parts) != 2 {
		return "", "", false
	}
	name := parts[1]
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return "", "", false
	}
	userID = strings.TrimSpace(parts[0])
	cellarID = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name))))
	if userID == "" || cellarID == "" {
		return "", "", false
	}
	return userID, cellarID, true
}

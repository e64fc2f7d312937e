package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/mycellarapp/cellar-server/internal/domain"
)

// SearchIndex wraps a Bleve index with wine-specific operations.
//
// Thread safety: All public methods are safe for concurrent use.
// The mutex protects against index swaps during rebuild.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage; empty keeps the index in memory
	Logger   *slog.Logger // Uses discard if nil
}

// mappingVersion is incremented whenever the index mapping changes.
// A mismatch on startup triggers a rebuild.
const mappingVersion = "1"

// NewSearchIndex creates or opens a search index. A corrupted index or one
// built with an older mapping is removed and recreated empty; callers
// repopulate it from the store.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		index, err := newIndex("")
		if err != nil {
			return nil, err
		}
		return &SearchIndex{index: index, logger: logger}, nil
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create search dir: %w", err)
	}
	indexPath := filepath.Join(opts.DataPath, "wines.bleve")
	versionPath := filepath.Join(opts.DataPath, "wines.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil || string(existingVersion) != mappingVersion {
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing index, will recreate",
				"path", indexPath,
				"error", err,
			)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = newIndex(indexPath)
		if err != nil {
			return nil, err
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &SearchIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

func newIndex(path string) (bleve.Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build mapping: %w", err)
	}
	var index bleve.Index
	if path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
	} else {
		index, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return index, nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexWine indexes or replaces one wine.
func (s *SearchIndex) IndexWine(userID string, w *domain.Wine) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := WineToDocument(userID, w)
	return s.index.Index(doc.ID(), doc.ToMap())
}

// IndexWines indexes wines in chunks of 500.
func (s *SearchIndex) IndexWines(userID string, wines []domain.Wine) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(wines); i += batchSize {
		end := min(i+batchSize, len(wines))

		batch := s.index.NewBatch()
		for j := i; j < end; j++ {
			doc := WineToDocument(userID, &wines[j])
			if err := batch.Index(doc.ID(), doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID(), err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteWine removes one wine from the index.
func (s *SearchIndex) DeleteWine(userID, wineID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(DocID(userID, wineID))
}

// DeleteWines removes several of a user's wines.
func (s *SearchIndex) DeleteWines(userID string, wineIDs []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	for _, id := range wineIDs {
		batch.Delete(DocID(userID, id))
	}
	return s.index.Batch(batch)
}

// ReplaceUser drops every indexed wine of userID and indexes wines in their
// place.
func (s *SearchIndex) ReplaceUser(ctx context.Context, userID string, wines []domain.Wine) error {
	ids, err := s.userWineIDs(ctx, userID)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := s.DeleteWines(userID, ids); err != nil {
			return fmt.Errorf("delete stale documents: %w", err)
		}
	}
	return s.IndexWines(userID, wines)
}

func (s *SearchIndex) userWineIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := bleve.NewTermQuery(userID)
	q.SetField("user_id")

	const pageSize = 1000
	var ids []string
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequestOptions(q, pageSize, from, false)
		req.Fields = []string{"wine_id"}
		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("list user documents: %w", err)
		}
		for _, hit := range res.Hits {
			if id, ok := hit.Fields["wine_id"].(string); ok {
				ids = append(ids, id)
			}
		}
		if len(res.Hits) < pageSize {
			return ids, nil
		}
	}
}

// DocumentCount returns the total number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the existing index and creates an empty one.
//
// This takes the exclusive lock and blocks searches until it returns.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	if s.path != "" {
		if err := os.RemoveAll(s.path); err != nil {
			return fmt.Errorf("remove index: %w", err)
		}
	}

	index, err := newIndex(s.path)
	if err != nil {
		return err
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)

	return nil
}

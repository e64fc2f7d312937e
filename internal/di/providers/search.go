package providers

import (
	"context"
	"sync"
	"time"

	"github.com/samber/do/v2"

	"github.com/mycellarapp/cellar-server/internal/config"
	"github.com/mycellarapp/cellar-server/internal/logger"
	"github.com/mycellarapp/cellar-server/internal/search"
	"github.com/mycellarapp/cellar-server/internal/service"
)

// SearchIndexHandle wraps the bleve index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex opens the wine index. A corrupt index is recreated empty
// and repopulated by the startup rebuild.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Data.SearchPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.SearchIndex, storeHandle.Store, log.Logger), nil
}

// SearchRebuildHandle tracks the startup rebuild so shutdown can cancel it
// before the index is closed.
type SearchRebuildHandle struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Shutdown implements do.Shutdownable.
func (h *SearchRebuildHandle) Shutdown() error {
	h.cancel()
	h.wg.Wait()
	return nil
}

// ProvideSearchRebuild re-reads every user's active wines into the index in
// the background. The database is the source of truth.
func ProvideSearchRebuild(i do.Injector) (*SearchRebuildHandle, error) {
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	h := &SearchRebuildHandle{cancel: cancel}

	h.wg.Go(func() {
		start := time.Now()
		if err := searchService.ReindexAll(ctx); err != nil {
			if ctx.Err() == nil {
				log.Error("Search rebuild failed", "error", err)
			}
			return
		}
		count, _ := searchService.DocumentCount()
		log.Info("Search index rebuilt", "documents", count, "duration", time.Since(start))
	})

	return h, nil
}

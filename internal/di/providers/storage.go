package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/mycellarapp/cellar-server/internal/backup"
	"github.com/mycellarapp/cellar-server/internal/config"
	"github.com/mycellarapp/cellar-server/internal/kv"
	"github.com/mycellarapp/cellar-server/internal/logger"
	"github.com/mycellarapp/cellar-server/internal/store/sqlite"
)

// StoreHandle is the sqlite document store: users, cellars, wines and
// experienced wines.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the database, applying pending schema migrations.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := sqlite.Open(context.Background(), cfg.Data.DatabasePath(), log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info("Database ready", "path", cfg.Data.DatabasePath())

	return &StoreHandle{Store: st}, nil
}

// KVHandle is the badger store for verification codes, reset tokens and
// active cellar selections.
type KVHandle struct {
	*kv.Store
}

// Shutdown implements do.Shutdownable.
func (h *KVHandle) Shutdown() error {
	return h.Close()
}

// ProvideKV opens the key-value store.
func ProvideKV(i do.Injector) (*KVHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	prefs, err := kv.Open(cfg.Data.KVPath(), log.Logger)
	if err != nil {
		return nil, err
	}
	return &KVHandle{Store: prefs}, nil
}

// ProvideBackupService provides archive creation and restore over the store.
func ProvideBackupService(i do.Injector) (*backup.Service, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return backup.NewService(storeHandle.Store, cfg.Data.BackupPath(), Version, log.Logger), nil
}

package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/mycellarapp/cellar-server/internal/backup"
	"github.com/mycellarapp/cellar-server/internal/config"
	"github.com/mycellarapp/cellar-server/internal/importwatch"
	"github.com/mycellarapp/cellar-server/internal/logger"
	"github.com/mycellarapp/cellar-server/internal/service"
)

// ImportWatcherHandle runs the CSV drop folder. Service is nil when the
// folder is disabled.
type ImportWatcherHandle struct {
	*importwatch.Service
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *ImportWatcherHandle) Shutdown() error {
	if h.Service == nil {
		return nil
	}
	h.cancel()
	return h.Service.Stop()
}

// ProvideImportWatcher watches <imports>/<user>/<cellar>.csv and imports each
// file once it settles.
func ProvideImportWatcher(i do.Injector) (*ImportWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.ImportWatch.Enabled {
		return &ImportWatcherHandle{}, nil
	}

	svc, err := importwatch.New(
		do.MustInvoke[*service.TransferService](i),
		do.MustInvoke[*service.Notifier](i),
		log.Logger,
		importwatch.Options{Root: cfg.ImportWatch.Path, SettleDelay: cfg.ImportWatch.Debounce},
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := svc.Start(ctx); err != nil {
			log.Error("Import folder watcher stopped", "error", err)
		}
	}()
	log.Info("Watching import folder", "path", cfg.ImportWatch.Path)

	return &ImportWatcherHandle{Service: svc, cancel: cancel}, nil
}

// BackupSchedulerHandle runs periodic backups. Scheduler is nil when
// BACKUP_INTERVAL is zero.
type BackupSchedulerHandle struct {
	*backup.Scheduler
}

// Shutdown implements do.Shutdownable. A backup in progress is cancelled and
// its temp file removed.
func (h *BackupSchedulerHandle) Shutdown() error {
	if h.Scheduler != nil {
		h.Stop()
	}
	return nil
}

// ProvideBackupScheduler starts scheduled backups into the data directory.
func ProvideBackupScheduler(i do.Injector) (*BackupSchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Backup.Interval <= 0 {
		return &BackupSchedulerHandle{}, nil
	}

	svc := do.MustInvoke[*backup.Service](i)
	log := do.MustInvoke[*logger.Logger](i)

	sched := backup.NewScheduler(svc, cfg.Backup.Interval, cfg.Backup.Keep, log.Logger)
	sched.Start(context.Background())

	return &BackupSchedulerHandle{Scheduler: sched}, nil
}

// Package di wires the cellar server's components with samber/do.
package di

import (
	"github.com/samber/do/v2"

	"github.com/mycellarapp/cellar-server/internal/di/providers"
)

// NewContainer registers every provider. Nothing is constructed until
// Bootstrap or the first invoke.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Configuration and identity
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)

	// Persistence
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideKV)
	do.Provide(injector, providers.ProvideBackupService)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Realtime
	do.Provide(injector, providers.ProvideEvents)
	do.Provide(injector, providers.ProvideNotifier)

	// Outbound clients
	do.Provide(injector, providers.ProvideMailer)
	do.Provide(injector, providers.ProvidePairingClient)

	// Business services
	do.Provide(injector, providers.ProvideWineService)
	do.Provide(injector, providers.ProvideExperienceService)
	do.Provide(injector, providers.ProvideCellarService)
	do.Provide(injector, providers.ProvideAccountService)
	do.Provide(injector, providers.ProvideTransferService)
	do.Provide(injector, providers.ProvidePairingService)
	do.Provide(injector, providers.ProvideSearchService)

	// Background work
	do.Provide(injector, providers.ProvideSearchRebuild)
	do.Provide(injector, providers.ProvideImportWatcher)
	do.Provide(injector, providers.ProvideBackupScheduler)

	// HTTP
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap constructs the components that run on their own: the HTTP
// server pulls in every service it routes to, and the workers start their
// loops. The first failure is returned.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchRebuildHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ImportWatcherHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.BackupSchedulerHandle](injector); err != nil {
		return err
	}
	return nil
}

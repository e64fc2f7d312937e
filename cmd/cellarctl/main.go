// Package main provides cellarctl, the offline maintenance tool for the
// cellar server's data directory. Stop the server before running it: the
// key-value store allows one process at a time.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mycellarapp/cellar-server/internal/backup"
	"github.com/mycellarapp/cellar-server/internal/config"
	"github.com/mycellarapp/cellar-server/internal/kv"
	"github.com/mycellarapp/cellar-server/internal/logger"
	"github.com/mycellarapp/cellar-server/internal/search"
	"github.com/mycellarapp/cellar-server/internal/service"
	"github.com/mycellarapp/cellar-server/internal/store/sqlite"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	// configFile is set by the --config flag.
	configFile string

	// env holds the opened stores, set up by PersistentPreRunE.
	env *toolEnv
)

// toolEnv is the set of stores and services a command works against.
type toolEnv struct {
	store *sqlite.Store
	prefs *kv.Store
	index *search.SearchIndex

	wines     *service.WineService
	cellars   *service.CellarService
	transfer  *service.TransferService
	migration *service.MigrationService
	search    *service.SearchService
	backups   *backup.Service
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cellarctl",
	Short: "Maintenance tool for the cellar server",
	Long: `cellarctl runs data migrations, CSV import and export, backups and
search reindexing directly against the server's data directory.

Settings come from flags, CELLAR_* environment variables, or a YAML file
passed with --config.`,
	SilenceUsage:      true,
	PersistentPreRunE: openEnv,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("data-path", "", "data directory (default: ~/MyCellar/data)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(backupCmd)
}

// openEnv loads settings and opens the data directory.
func openEnv(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(s.LogLevel),
		Environment: "development",
	}).Logger

	data := config.DataConfig{BasePath: s.DataPath}
	ctx := context.Background()

	st, err := sqlite.Open(ctx, data.DatabasePath(), log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	prefs, err := kv.Open(data.KVPath(), log)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("open key-value store: %w", err)
	}
	index, err := search.NewSearchIndex(search.Options{DataPath: data.SearchPath(), Logger: log})
	if err != nil {
		_ = prefs.Close()
		_ = st.Close()
		return fmt.Errorf("open search index: %w", err)
	}

	notify := service.NewNotifier(nil, log)
	wines := service.NewWineService(st, index, notify, log)
	env = &toolEnv{
		store:     st,
		prefs:     prefs,
		index:     index,
		wines:     wines,
		cellars:   service.NewCellarService(st, prefs, index, notify, log),
		transfer:  service.NewTransferService(wines, log),
		migration: service.NewMigrationService(st, index, log),
		search:    service.NewSearchService(index, st, log),
		backups:   backup.NewService(st, data.BackupPath(), version, log),
	}
	return nil
}

// closeEnv releases the stores.
func closeEnv() error {
	if env == nil {
		return nil
	}
	var firstErr error
	for _, closeFn := range []func() error{env.index.Close, env.prefs.Close, env.store.Close} {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	env = nil
	return firstErr
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := env.search.ReindexAll(cmd.Context()); err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		count, _ := env.search.DocumentCount()
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d wines\n", count)
		return nil
	},
}

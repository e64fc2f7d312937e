// Package providers contains dependency injection providers for the cellar server.
package providers

import (
	"fmt"
	"os"
	"time"

	"github.com/samber/do/v2"

	"github.com/mycellarapp/cellar-server/internal/auth"
	"github.com/mycellarapp/cellar-server/internal/config"
	"github.com/mycellarapp/cellar-server/internal/logger"
)

// shutdownTimeout bounds each handle's graceful stop.
const shutdownTimeout = 30 * time.Second

// Version is reported in the OpenAPI document and recorded in backups.
// Set with -ldflags "-X .../providers.Version=...".
var Version = "dev"

// ProvideConfig loads configuration and makes sure the data directory exists,
// since every store below lives in it.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Data.BasePath, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting cellar server",
		"version", Version,
		"environment", cfg.App.Environment,
		"data_path", cfg.Data.BasePath,
	)
	return log, nil
}

// AuthKey is the hex-encoded PASETO key, persisted under the data dir so
// tokens survive restarts.
type AuthKey string

// ProvideAuthKey loads the key, generating it on first start.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Data.KeyPath()
	_, statErr := os.Stat(path)

	key, err := auth.LoadOrGenerateKey(path)
	if err != nil {
		return "", fmt.Errorf("auth key: %w", err)
	}

	if os.IsNotExist(statErr) {
		log.Warn("Generated a new token key, existing sessions are invalid", "path", path)
	}
	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(string(key), cfg.Auth.AccessTokenDuration)
}

package providers

import (
	"github.com/samber/do/v2"

	"github.com/mycellarapp/cellar-server/internal/auth"
	"github.com/mycellarapp/cellar-server/internal/config"
	"github.com/mycellarapp/cellar-server/internal/logger"
	"github.com/mycellarapp/cellar-server/internal/mail"
	"github.com/mycellarapp/cellar-server/internal/pairing"
	"github.com/mycellarapp/cellar-server/internal/service"
)

// ProvideMailer provides the outbound mailer. Outside production an
// unconfigured transport logs messages instead of failing.
func ProvideMailer(i do.Injector) (*mail.Mailer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	m := cfg.Mail
	if !m.SMTPConfigured() {
		log.Warn("SMTP not configured, verification codes cannot be emailed")
	}

	return mail.New(mail.Options{
		SMTPHost:     m.SMTPHost,
		SMTPPort:     m.SMTPPort,
		SMTPUser:     m.SMTPUser,
		SMTPPassword: m.SMTPPassword,
		From:         m.From,
		ResendAPIKey: m.ResendAPIKey,
		ResendURL:    m.ResendURL,
		ResetFrom:    m.ResetFrom,
		LogOnly:      cfg.App.Environment == "development",
		Logger:       log.Logger,
	}), nil
}

// PairingClientHandle wraps the Gemini client with shutdown capability.
type PairingClientHandle struct {
	*pairing.Client
}

// Shutdown implements do.Shutdownable.
func (h *PairingClientHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvidePairingClient provides the rate-limited Gemini client.
func ProvidePairingClient(i do.Injector) (*PairingClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := pairing.New(pairing.Options{
		APIKey:            cfg.Pairing.APIKey,
		BaseURL:           cfg.Pairing.BaseURL,
		Models:            cfg.Pairing.Models(),
		Timeout:           cfg.Pairing.Timeout,
		RequestsPerMinute: cfg.Pairing.RequestsPerMinute,
		Logger:            log.Logger,
	})

	if client.Configured() {
		log.Info("AI pairing enabled", "models", cfg.Pairing.Models())
	} else {
		log.Info("AI pairing disabled, no API key configured")
	}

	return &PairingClientHandle{Client: client}, nil
}

// ProvideWineService provides the wine service.
func ProvideWineService(i do.Injector) (*service.WineService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	notifier := do.MustInvoke[*service.Notifier](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewWineService(storeHandle.Store, indexHandle.SearchIndex, notifier, log.Logger), nil
}

// ProvideExperienceService provides the experienced wine service.
func ProvideExperienceService(i do.Injector) (*service.ExperienceService, error) {
	wines := do.MustInvoke[*service.WineService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewExperienceService(wines, log.Logger), nil
}

// ProvideCellarService provides the cellar service.
func ProvideCellarService(i do.Injector) (*service.CellarService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	kvHandle := do.MustInvoke[*KVHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	notifier := do.MustInvoke[*service.Notifier](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCellarService(storeHandle.Store, kvHandle.Store, indexHandle.SearchIndex, notifier, log.Logger), nil
}

// ProvideAccountService provides registration, login and password reset.
func ProvideAccountService(i do.Injector) (*service.AccountService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	kvHandle := do.MustInvoke[*KVHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	mailer := do.MustInvoke[*mail.Mailer](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAccountService(
		storeHandle.Store,
		kvHandle.Store,
		tokenService,
		mailer,
		service.AccountOptions{
			VerificationCodeTTL: cfg.Auth.VerificationCodeTTL,
			ResetTokenTTL:       cfg.Auth.ResetTokenTTL,
			PublicURL:           cfg.App.PublicURL,
		},
		log.Logger,
	), nil
}

// ProvideTransferService provides CSV import and export.
func ProvideTransferService(i do.Injector) (*service.TransferService, error) {
	wines := do.MustInvoke[*service.WineService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTransferService(wines, log.Logger), nil
}

// ProvidePairingService provides the AI suggestion service.
func ProvidePairingService(i do.Injector) (*service.PairingService, error) {
	client := do.MustInvoke[*PairingClientHandle](i)
	wines := do.MustInvoke[*service.WineService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewPairingService(client.Client, wines, log.Logger), nil
}

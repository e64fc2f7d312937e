package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/mycellarapp/cellar-server/internal/api"
	"github.com/mycellarapp/cellar-server/internal/config"
	"github.com/mycellarapp/cellar-server/internal/logger"
	"github.com/mycellarapp/cellar-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.handler.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	events := do.MustInvoke[*EventsHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Accounts:    do.MustInvoke[*service.AccountService](i),
		Cellars:     do.MustInvoke[*service.CellarService](i),
		Wines:       do.MustInvoke[*service.WineService](i),
		Experiences: do.MustInvoke[*service.ExperienceService](i),
		Transfer:    do.MustInvoke[*service.TransferService](i),
		Pairing:     do.MustInvoke[*service.PairingService](i),
		Search:      do.MustInvoke[*service.SearchService](i),
	}

	handler := api.NewServer(services, events.Manager, api.Options{
		Version:      Version,
		CORSOrigins:  cfg.Server.CORSOrigins,
		AuthRequests: cfg.RateLimit.AuthRequests,
		AuthWindow:   cfg.RateLimit.AuthWindow,
		AuthBurst:    cfg.RateLimit.AuthBurst,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}

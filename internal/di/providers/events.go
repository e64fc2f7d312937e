package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/mycellarapp/cellar-server/internal/logger"
	"github.com/mycellarapp/cellar-server/internal/service"
	"github.com/mycellarapp/cellar-server/internal/sse"
)

// EventsHandle owns the per-user event stream manager and its run loop.
type EventsHandle struct {
	*sse.Manager
	stop context.CancelFunc
}

// Shutdown implements do.Shutdownable. Open streams are closed so clients
// reconnect to the next instance.
func (h *EventsHandle) Shutdown() error {
	h.stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideEvents starts the event manager.
func ProvideEvents(i do.Injector) (*EventsHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)
	ctx, stop := context.WithCancel(context.Background())
	go manager.Start(ctx)

	return &EventsHandle{Manager: manager, stop: stop}, nil
}

// ProvideNotifier provides the notifier that publishes change events and
// mirrors failures to each user's notice stream.
func ProvideNotifier(i do.Injector) (*service.Notifier, error) {
	events := do.MustInvoke[*EventsHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewNotifier(events.Manager, log.Logger), nil
}

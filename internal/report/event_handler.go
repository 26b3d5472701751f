package report

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/research-hours/internal/core/events"
)

// EventHandler drops cached reports whenever approved hours change.
type EventHandler struct {
	service *Service
	logger  *slog.Logger
}

func NewEventHandler(service *Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{service: service, logger: logger}
}

func (h *EventHandler) HandleApprovedHoursChanged(ctx context.Context, event events.Event) error {
	if err := h.service.Invalidate(ctx); err != nil {
		h.logger.Warn("failed to invalidate report cache", "error", err, "event_type", event.EventType(), "event_id", event.EventID())
		return err
	}
	h.logger.Debug("report cache invalidated", "event_type", event.EventType())
	return nil
}

func (h *EventHandler) RegisterEventHandlers(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeRecordApproved, h.HandleApprovedHoursChanged)
	bus.Subscribe(events.EventTypeRecordReopened, h.HandleApprovedHoursChanged)
	h.logger.Info("report event handlers registered")
}

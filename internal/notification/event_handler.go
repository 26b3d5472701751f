package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/research-hours/internal/core/events"
)

type EventHandler struct {
	notifier *Notifier
	logger   *slog.Logger
}

func NewEventHandler(notifier *Notifier, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		notifier: notifier,
		logger:   logger,
	}
}

func (h *EventHandler) HandleRecordTransitioned(ctx context.Context, event events.Event) error {
	ev, ok := event.(*events.RecordTransitionedEvent)
	if !ok {
		h.logger.Error("invalid event type for record notification handler", "event_type", event.EventType())
		return fmt.Errorf("expected RecordTransitionedEvent, got %T", event)
	}

	return h.notifier.Enqueue(Notification{
		ID:         ev.EventID(),
		Type:       ev.EventType(),
		RecordID:   ev.RecordID,
		OwnerID:    ev.OwnerID,
		ActorID:    ev.ActorID,
		FromStage:  ev.FromStage,
		ToStage:    ev.ToStage,
		Status:     ev.Status,
		Hours:      ev.Hours,
		Comment:    ev.Comment,
		OccurredAt: ev.OccurredAt(),
	})
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	for _, t := range events.RecordEventTypes {
		eventBus.Subscribe(t, h.HandleRecordTransitioned)
	}

	h.logger.Info("notification event handlers registered", "handlers", events.RecordEventTypes)
}

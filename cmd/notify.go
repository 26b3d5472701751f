package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/research-hours/internal/core/events"
	"github.com/frahmantamala/research-hours/internal/notification"
	"github.com/frahmantamala/research-hours/pkg/logger"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification webhook commands",
}

var (
	notifyEventType string
	notifyWebhook   string
)

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a sample record event to the configured webhook",
	Long:  `Publishes a sample record event through the event bus and the notification worker pool, then waits for delivery.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		lg := logger.LoggerWrapper()

		webhook := getStringFlag(notifyWebhook, cfg.Notification.WebhookURL)
		if webhook == "" {
			return fmt.Errorf("no webhook url configured; pass --webhook-url")
		}

		notifier := notification.NewNotifier(notification.Config{
			WebhookURL:   webhook,
			Timeout:      cfg.Notification.Timeout,
			MaxWorkers:   1,
			JobQueueSize: 1,
		}, lg)

		bus := events.NewEventBus(lg)
		notification.NewEventHandler(notifier, lg).RegisterEventHandlers(bus)

		event := events.NewRecordTransitionedEvent(notifyEventType, events.RecordTransition{
			RecordID: 0,
			ToStage:  "university_review",
			Status:   "approved",
			Year:     time.Now().Year(),
			Comment:  "notification smoke test",
		})
		lg.Info("publishing sample event", "event_type", notifyEventType, "event_id", event.EventID(), "webhook_url", webhook)

		if err := bus.Publish(context.Background(), event); err != nil {
			return err
		}
		bus.Wait()

		// the worker pool has no completion signal; give delivery one timeout
		wait := cfg.Notification.Timeout
		if wait <= 0 {
			wait = 5 * time.Second
		}
		time.Sleep(wait)
		notifier.Shutdown()
		return nil
	},
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	notifyTestCmd.Flags().StringVar(&notifyEventType, "type", events.EventTypeRecordApproved, "event type to send")
	notifyTestCmd.Flags().StringVar(&notifyWebhook, "webhook-url", "", "webhook url (overrides config)")

	notifyCmd.AddCommand(notifyTestCmd)
}

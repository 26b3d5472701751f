package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frahmantamala/research-hours/internal/core/metrics"
)

var ErrQueueFull = errors.New("notification queue full")

// Notification is the webhook body posted for every record transition.
type Notification struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RecordID   int64     `json:"record_id"`
	OwnerID    int64     `json:"owner_id"`
	ActorID    int64     `json:"actor_id"`
	FromStage  string    `json:"from_stage,omitempty"`
	ToStage    string    `json:"to_stage"`
	Status     string    `json:"status"`
	Hours      *float64  `json:"hours,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Worker struct {
	ID         int
	WorkerPool chan chan Notification
	JobChannel chan Notification
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Notification, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Notification),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Notification)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("notification worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker delivering notification", "worker_id", w.ID, "notification_id", job.ID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("notification worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	WebhookURL   string
	Timeout      time.Duration
	MaxWorkers   int
	JobQueueSize int
}

// Notifier posts notifications to a webhook from a fixed worker pool.
// Delivery is best effort: failures are logged and counted, never retried
// and never reported to the code that triggered them.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger

	jobQueue   chan Notification
	workerPool chan chan Notification
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewNotifier(config Config, logger *slog.Logger) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	n := &Notifier{
		webhookURL: config.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan Notification, jobQueueSize),
		workerPool: make(chan chan Notification, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	n.startWorkerPool()

	return n
}

func (n *Notifier) startWorkerPool() {
	n.once.Do(func() {
		for i := 0; i < n.maxWorkers; i++ {
			worker := NewWorker(i, n.workerPool, n.logger)
			worker.Start(n.ctx, &n.wg, n.deliver)
		}

		n.wg.Add(1)
		go n.dispatch()

		n.logger.Info("notification worker pool started",
			"max_workers", n.maxWorkers,
			"queue_size", cap(n.jobQueue))
	})
}

func (n *Notifier) dispatch() {
	defer n.wg.Done()

	for {
		select {
		case job := <-n.jobQueue:
			select {
			case jobChannel := <-n.workerPool:
				select {
				case jobChannel <- job:
				case <-n.ctx.Done():
					return
				}
			case <-n.ctx.Done():
				return
			}
		case <-n.ctx.Done():
			n.logger.Info("notification dispatcher shutting down")
			return
		}
	}
}

// Enqueue hands a notification to the pool without blocking. A full queue
// drops the notification.
func (n *Notifier) Enqueue(job Notification) error {
	select {
	case n.jobQueue <- job:
		return nil
	default:
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		n.logger.Warn("notification queue full, dropping notification",
			"notification_id", job.ID,
			"record_id", job.RecordID,
			"queue_capacity", cap(n.jobQueue))
		return ErrQueueFull
	}
}

func (n *Notifier) Shutdown() {
	n.logger.Info("shutting down notifier")
	n.cancel()
	n.wg.Wait()
	n.logger.Info("notifier shutdown complete")
}

func (n *Notifier) deliver(job Notification) {
	if err := n.post(job); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		n.logger.Error("webhook notification failed",
			"error", err,
			"notification_id", job.ID,
			"record_id", job.RecordID,
			"type", job.Type)
		return
	}
	metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
	n.logger.Info("webhook notification delivered",
		"notification_id", job.ID,
		"record_id", job.RecordID,
		"type", job.Type)
}

func (n *Notifier) post(job Notification) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(n.ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", job.ID)
	req.Header.Set("X-Event-Type", job.Type)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

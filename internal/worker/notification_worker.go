package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/events"
	"github.com/spec-kit/fieldops-console/internal/service"
)

// ErrQueueFull is returned when the notification backlog is saturated.
var ErrQueueFull = errors.New("notification queue full")

// NotificationWorker is an events.Dispatcher that queues events and delivers them
// to the inner dispatcher on a background goroutine.
type NotificationWorker struct {
	inner  events.Dispatcher
	queue  chan events.Event
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// StartNotificationWorker registers notification handlers on inner and starts delivery.
func StartNotificationWorker(notificationService *service.NotificationService, inner events.Dispatcher, buffer int, logger *zap.Logger) *NotificationWorker {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if buffer <= 0 {
		buffer = 64
	}
	w := &NotificationWorker{
		inner:  inner,
		queue:  make(chan events.Event, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *NotificationWorker) run() {
	defer close(w.done)
	for event := range w.queue {
		if err := w.inner.Publish(context.Background(), event); err != nil {
			w.logger.Warn("notification delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.String("account_id", event.AccountID),
				zap.Error(err))
		}
	}
}

// Publish enqueues the event without blocking.
func (w *NotificationWorker) Publish(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errors.New("notification worker stopped")
	}
	select {
	case w.queue <- event:
		return nil
	default:
		w.logger.Warn("dropping notification", zap.String("event_type", string(event.Type)))
		return ErrQueueFull
	}
}

// Subscribe registers a handler on the inner dispatcher.
func (w *NotificationWorker) Subscribe(eventType events.EventType, handler events.EventHandler) {
	w.inner.Subscribe(eventType, handler)
}

// Stop drains the queue and waits for delivery to finish.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}

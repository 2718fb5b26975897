package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unlockpay/backend/internal/metrics"
)

const defaultSendTimeout = 15 * time.Second

// Dispatcher fans events out to every channel from a pool of background workers.
type Dispatcher struct {
	events   chan Event
	channels []Channel
	workers  int
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher builds a dispatcher with a bounded queue.
func NewDispatcher(logger *slog.Logger, m *metrics.Metrics, workers, queueSize int, channels ...Channel) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		events:   make(chan Event, queueSize),
		channels: channels,
		workers:  workers,
		timeout:  defaultSendTimeout,
		logger:   logger,
		metrics:  m,
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	d.logger.Info("notification dispatcher started", slog.Int("workers", d.workers), slog.Any("channels", names))

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Enqueue hands the event to the workers, dropping it when the queue is full.
func (d *Dispatcher) Enqueue(event Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.NotificationDropped()
		return false
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	select {
	case d.events <- event:
		return true
	default:
		d.metrics.NotificationDropped()
		d.logger.Warn("notification queue full, dropping event",
			slog.String("kind", string(event.Kind)),
			slog.String("transaction_id", event.Transaction.ID))
		return false
	}
}

// Stop closes the queue and waits for queued events to drain or ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification dispatcher drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for event := range d.events {
		for _, ch := range d.channels {
			d.deliver(id, ch, event)
		}
	}
}

func (d *Dispatcher) deliver(worker int, ch Channel, event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = ch.Send(ctx, event)
	}()

	d.metrics.ObserveNotification(ch.Name(), err)
	if err != nil {
		d.logger.Warn("notification delivery failed",
			slog.Int("worker_id", worker),
			slog.String("channel", ch.Name()),
			slog.String("kind", string(event.Kind)),
			slog.String("transaction_id", event.Transaction.ID),
			slog.Any("error", err))
	}
}

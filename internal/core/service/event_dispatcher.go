package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/metrics"
	"github.com/rl1809/survivor-trade/internal/port"
)

const publishTimeout = 5 * time.Second

// EventDispatcher hands settled trades to a publisher from a bounded queue
// drained by a fixed worker pool. Delivery is best effort and happens after
// the settlement has committed.
type EventDispatcher struct {
	publisher port.EventPublisher
	queue     chan domain.TradeSettled
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewEventDispatcher(publisher port.EventPublisher, queueSize int, logger *zap.Logger, m *metrics.Metrics) *EventDispatcher {
	return &EventDispatcher{
		publisher: publisher,
		queue:     make(chan domain.TradeSettled, queueSize),
		logger:    logger,
		metrics:   m,
	}
}

func (d *EventDispatcher) Start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	d.logger.Info("event dispatcher started", zap.Int("workers", workers))
}

// Enqueue never blocks; it reports false when the event was dropped because
// the queue is full or the dispatcher is closed.
func (d *EventDispatcher) Enqueue(event domain.TradeSettled) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.Events.WithLabelValues("dropped").Inc()
		return false
	}

	select {
	case d.queue <- event:
		return true
	default:
		d.metrics.Events.WithLabelValues("dropped").Inc()
		d.logger.Warn("event queue full, dropping trade event", zap.String("trade_id", event.TradeID))
		return false
	}
}

// Close stops accepting events and waits for the queue to drain.
func (d *EventDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *EventDispatcher) workerLoop(id int) {
	for event := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		if err := d.publisher.PublishTradeSettled(ctx, event); err != nil {
			d.metrics.Events.WithLabelValues("failed").Inc()
			d.logger.Error("failed to publish trade event",
				zap.Int("worker", id),
				zap.String("trade_id", event.TradeID),
				zap.Error(err))
		} else {
			d.metrics.Events.WithLabelValues("published").Inc()
			d.logger.Debug("published trade event",
				zap.Int("worker", id),
				zap.String("trade_id", event.TradeID))
		}

		cancel()
	}
}

package service

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/metrics"
)

func TestEventDispatcher_PublishesQueuedEvents(t *testing.T) {
	publisher := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	d := NewEventDispatcher(publisher, 16, zap.NewNop(), m)
	d.Start(3)

	for i := 0; i < 10; i++ {
		assert.True(t, d.Enqueue(domain.TradeSettled{TradeID: string(rune('a' + i))}))
	}
	d.Close()

	assert.Len(t, publisher.published(), 10)
	assert.Equal(t, 10.0, testutil.ToFloat64(m.Events.WithLabelValues("published")))
}

func TestEventDispatcher_DropsWhenFull(t *testing.T) {
	publisher := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	d := NewEventDispatcher(publisher, 1, zap.NewNop(), m)

	// No workers yet, so the second event finds the queue full.
	assert.True(t, d.Enqueue(domain.TradeSettled{TradeID: "t-1"}))
	assert.False(t, d.Enqueue(domain.TradeSettled{TradeID: "t-2"}))

	d.Start(1)
	d.Close()

	events := publisher.published()
	if assert.Len(t, events, 1) {
		assert.Equal(t, "t-1", events[0].TradeID)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("dropped")))
}

func TestEventDispatcher_EnqueueAfterClose(t *testing.T) {
	d := NewEventDispatcher(&recordingPublisher{}, 4, zap.NewNop(), metrics.New(prometheus.NewRegistry()))
	d.Start(1)
	d.Close()
	d.Close()

	assert.False(t, d.Enqueue(domain.TradeSettled{TradeID: "late"}))
}

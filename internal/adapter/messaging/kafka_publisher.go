package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/rl1809/survivor-trade/internal/core/domain"
)

const eventTypeTradeSettled = "trade.settled"

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// PublishTradeSettled keys the message by trade id so every event of a trade
// lands on the same partition.
func (p *KafkaPublisher) PublishTradeSettled(ctx context.Context, event domain.TradeSettled) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal trade event")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TradeID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventTypeTradeSettled)},
		},
		Time: event.SettledAt,
	})
	return errors.Wrap(err, "write trade event")
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

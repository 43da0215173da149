package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/survivor-trade/internal/core/domain"
)

// LogPublisher stands in for a broker when none is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishTradeSettled(_ context.Context, event domain.TradeSettled) error {
	p.logger.Info(eventTypeTradeSettled,
		zap.String("trade_id", event.TradeID),
		zap.String("survivor1_id", event.Survivor1ID),
		zap.String("survivor2_id", event.Survivor2ID),
		zap.String("item_given_id", event.ItemGivenID),
		zap.String("item_received_id", event.ItemReceivedID),
		zap.Int("quantity_given", event.QuantityGiven),
		zap.Int("quantity_received", event.QuantityReceived),
		zap.Time("settled_at", event.SettledAt))
	return nil
}

func (p *LogPublisher) Close() error { return nil }

package port

import (
	"context"

	"github.com/rl1809/survivor-trade/internal/core/domain"
)

type EventPublisher interface {
	PublishTradeSettled(ctx context.Context, event domain.TradeSettled) error
	Close() error
}

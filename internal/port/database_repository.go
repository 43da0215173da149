package port

import (
	"context"
	"time"

	"github.com/rl1809/survivor-trade/internal/core/domain"
)

// Lookups return (nil, nil) when the row is absent or tombstoned.

type SurvivorRepository interface {
	CreateSurvivor(ctx context.Context, survivor domain.Survivor) error
	GetSurvivor(ctx context.Context, id string) (*domain.Survivor, error)
	ListSurvivors(ctx context.Context) ([]domain.Survivor, error)

	// UpdateSurvivor overwrites an active survivor, including its tombstone.
	// Returns domain.ErrNotFound if no active row matched.
	UpdateSurvivor(ctx context.Context, survivor domain.Survivor) error
}

type ItemRepository interface {
	CreateItem(ctx context.Context, item domain.Item) error
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
	UpdateItem(ctx context.Context, item domain.Item) error
}

type InventoryRepository interface {
	// GetEntry returns the active entry for key. When forUpdate is set and the
	// store supports it, the row stays locked until the transaction ends.
	GetEntry(ctx context.Context, key domain.InventoryKey, forUpdate bool) (*domain.InventoryEntry, error)

	// AddQuantity creates the entry or adds to it, reviving a tombstoned row.
	AddQuantity(ctx context.Context, key domain.InventoryKey, quantity int, at time.Time) error

	// SubtractQuantity removes quantity only if the active entry holds at
	// least that much; returns false otherwise.
	SubtractQuantity(ctx context.Context, key domain.InventoryKey, quantity int, at time.Time) (bool, error)

	ListEntries(ctx context.Context, survivorID string) ([]domain.InventoryEntry, error)
}

type TradeRepository interface {
	CreateTrade(ctx context.Context, trade domain.Trade) error
	GetTrade(ctx context.Context, id string) (*domain.Trade, error)
	ListTrades(ctx context.Context) ([]domain.Trade, error)

	// ListTradeViews returns active trades where the survivor is survivor1
	// (Give) or survivor2 (Receive), joined with item names.
	ListTradeViews(ctx context.Context, survivorID string, action domain.TradeAction) ([]domain.TradeView, error)

	// TombstoneTrade marks an active trade deleted; false if none matched.
	TombstoneTrade(ctx context.Context, id string, at time.Time) (bool, error)
}

type ReportRepository interface {
	PopulationStats(ctx context.Context) (domain.PopulationStats, error)
}

type Store interface {
	SurvivorRepository
	ItemRepository
	InventoryRepository
	TradeRepository
	ReportRepository
}

type DatabaseRepository interface {
	Store

	// WithinTx runs fn against a transaction-scoped Store. The transaction
	// commits if fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

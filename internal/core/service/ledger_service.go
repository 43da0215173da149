package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/metrics"
	"github.com/rl1809/survivor-trade/internal/port"
)

// LedgerService maintains per-(survivor, item) balances. Every mutation runs
// inside a store transaction; the unexported variants take the transaction
// so settlement can compose them into one unit.
type LedgerService struct {
	db      port.DatabaseRepository
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewLedgerService(db port.DatabaseRepository, logger *zap.Logger, m *metrics.Metrics) *LedgerService {
	return &LedgerService{
		db:      db,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

func (s *LedgerService) Increment(ctx context.Context, survivorID, itemID string, quantity int) (*domain.InventoryEntry, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.Increment")
	defer span.End()

	var entry *domain.InventoryEntry
	err := s.db.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
		var err error
		entry, err = s.increment(ctx, tx, survivorID, itemID, quantity)
		return err
	})
	s.metrics.LedgerMutations.WithLabelValues("increment", metrics.Outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Debug("inventory incremented",
		zap.String("survivor_id", survivorID),
		zap.String("item_id", itemID),
		zap.Int("quantity", quantity),
		zap.Int("balance", entry.Quantity))
	return entry, nil
}

func (s *LedgerService) Decrement(ctx context.Context, survivorID, itemID string, quantity int) (*domain.InventoryEntry, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.Decrement")
	defer span.End()

	var entry *domain.InventoryEntry
	err := s.db.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
		var err error
		entry, err = s.decrement(ctx, tx, survivorID, itemID, quantity)
		return err
	})
	s.metrics.LedgerMutations.WithLabelValues("decrement", metrics.Outcome(err)).Inc()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Debug("inventory decremented",
		zap.String("survivor_id", survivorID),
		zap.String("item_id", itemID),
		zap.Int("quantity", quantity),
		zap.Int("balance", entry.Quantity))
	return entry, nil
}

// CheckInventory returns the survivor's holdings of an item. An unknown
// survivor and a missing entry both fail with NotFound; a zero balance on an
// existing entry is returned as 0.
func (s *LedgerService) CheckInventory(ctx context.Context, survivorID, itemID string) (int, error) {
	return s.checkInventory(ctx, s.db, survivorID, itemID)
}

func (s *LedgerService) ListBySurvivor(ctx context.Context, survivorID string) ([]domain.InventoryEntry, error) {
	survivor, err := s.db.GetSurvivor(ctx, survivorID)
	if err != nil {
		return nil, err
	}
	if survivor == nil {
		return nil, domain.NotFound("Survivor with ID %s not found", survivorID)
	}
	return s.db.ListEntries(ctx, survivorID)
}

func (s *LedgerService) increment(ctx context.Context, tx port.Store, survivorID, itemID string, quantity int) (*domain.InventoryEntry, error) {
	if quantity <= 0 {
		return nil, domain.Validation("quantity must be positive, got %d", quantity)
	}
	if err := s.requireParties(ctx, tx, survivorID, itemID); err != nil {
		return nil, err
	}

	key := domain.InventoryKey{SurvivorID: survivorID, ItemID: itemID}
	if err := tx.AddQuantity(ctx, key, quantity, s.now()); err != nil {
		return nil, err
	}

	entry, err := tx.GetEntry(ctx, key, false)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("inventory entry %s/%s missing after increment", survivorID, itemID)
	}
	return entry, nil
}

func (s *LedgerService) decrement(ctx context.Context, tx port.Store, survivorID, itemID string, quantity int) (*domain.InventoryEntry, error) {
	if quantity <= 0 {
		return nil, domain.Validation("quantity must be positive, got %d", quantity)
	}
	if err := s.requireParties(ctx, tx, survivorID, itemID); err != nil {
		return nil, err
	}

	key := domain.InventoryKey{SurvivorID: survivorID, ItemID: itemID}
	entry, err := tx.GetEntry(ctx, key, true)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.NotFound("Inventory for survivor %s and item %s not found", survivorID, itemID)
	}
	if entry.Quantity < quantity {
		return nil, domain.InsufficientQuantity(survivorID, itemID, entry.Quantity, quantity)
	}

	now := s.now()
	ok, err := tx.SubtractQuantity(ctx, key, quantity, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The row was locked above, so this only happens on stores without
		// row locks.
		return nil, domain.Conflict("inventory for survivor %s and item %s changed concurrently", survivorID, itemID)
	}

	entry.Quantity -= quantity
	entry.UpdatedAt = now
	return entry, nil
}

func (s *LedgerService) checkInventory(ctx context.Context, q port.Store, survivorID, itemID string) (int, error) {
	survivor, err := q.GetSurvivor(ctx, survivorID)
	if err != nil {
		return 0, err
	}
	if survivor == nil {
		return 0, domain.NotFound("Survivor with ID %s not found", survivorID)
	}

	item, err := q.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	if item == nil {
		return 0, domain.NotFound("Item with ID %s not found", itemID)
	}

	entry, err := q.GetEntry(ctx, domain.InventoryKey{SurvivorID: survivorID, ItemID: itemID}, false)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, domain.NotFound("Item with ID %s not found in inventory for survivor with ID %s", itemID, survivorID)
	}
	return entry.Quantity, nil
}

func (s *LedgerService) requireParties(ctx context.Context, q port.Store, survivorID, itemID string) error {
	survivor, err := q.GetSurvivor(ctx, survivorID)
	if err != nil {
		return err
	}
	if survivor == nil {
		return domain.NotFound("Survivor with ID %s not found", survivorID)
	}

	item, err := q.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.NotFound("Item with ID %s not found", itemID)
	}
	return nil
}

// isDomainError reports whether err is an expected business outcome rather
// than an infrastructure failure.
func isDomainError(err error) bool {
	var de *domain.Error
	return errors.As(err, &de)
}

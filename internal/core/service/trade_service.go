package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/metrics"
	"github.com/rl1809/survivor-trade/internal/port"
)

const idempotencyKeyPrefix = "idempotency:trade:"

type TradeInput struct {
	Survivor1ID      string `json:"survivor1Id" validate:"required"`
	Survivor2ID      string `json:"survivor2Id" validate:"required,nefield=Survivor1ID"`
	ItemGivenID      string `json:"itemGivenId" validate:"required"`
	ItemReceivedID   string `json:"itemReceivedId" validate:"required"`
	QuantityGiven    int    `json:"quantityGiven" validate:"gt=0"`
	QuantityReceived int    `json:"quantityReceived" validate:"gt=0"`
}

// TradeService settles two-way exchanges between survivors and serves the
// trade history.
type TradeService struct {
	db         port.DatabaseRepository
	ledger     *LedgerService
	cache      port.CacheRepository
	dispatcher *EventDispatcher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewTradeService wires the settlement. cache and dispatcher are optional;
// without a cache idempotency keys are ignored, without a dispatcher no
// events are emitted.
func NewTradeService(
	db port.DatabaseRepository,
	ledger *LedgerService,
	cache port.CacheRepository,
	dispatcher *EventDispatcher,
	logger *zap.Logger,
	m *metrics.Metrics,
) *TradeService {
	return &TradeService{
		db:         db,
		ledger:     ledger,
		cache:      cache,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Settle validates both parties and both legs, then moves the two item
// quantities in opposite directions and records the trade, all in a single
// store transaction. On any error nothing is applied.
func (s *TradeService) Settle(ctx context.Context, idempotencyKey string, in TradeInput) (*domain.Trade, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "TradeService.Settle")
	defer span.End()

	trade, err := s.settle(ctx, idempotencyKey, in)

	s.metrics.Settlements.WithLabelValues(metrics.Outcome(err)).Inc()
	s.metrics.SettlementDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		fields := []zap.Field{
			zap.String("survivor1_id", in.Survivor1ID),
			zap.String("survivor2_id", in.Survivor2ID),
			zap.Error(err),
		}
		if isDomainError(err) {
			s.logger.Info("trade rejected", fields...)
		} else {
			s.logger.Error("trade settlement failed", fields...)
		}
		return nil, err
	}

	s.logger.Info("trade settled",
		zap.String("trade_id", trade.ID),
		zap.String("survivor1_id", trade.Survivor1ID),
		zap.String("survivor2_id", trade.Survivor2ID),
		zap.Int("quantity_given", trade.QuantityGiven),
		zap.Int("quantity_received", trade.QuantityReceived))

	if s.dispatcher != nil {
		s.dispatcher.Enqueue(domain.NewTradeSettled(*trade))
	}
	return trade, nil
}

func (s *TradeService) settle(ctx context.Context, idempotencyKey string, in TradeInput) (trade *domain.Trade, err error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.cache != nil {
		key := idempotencyKeyPrefix + idempotencyKey
		token := uuid.NewString()

		// Assign, not declare: the deferred release inspects the named err.
		var ok bool
		ok, err = s.cache.SetIdempotency(ctx, key, token)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.DuplicateRequest(idempotencyKey)
		}
		defer func() {
			if err == nil {
				return
			}
			// Failed settlements leave no trace, so the client may retry
			// with the same key.
			if rerr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key, token); rerr != nil {
				s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(rerr))
			}
		}()
	}

	err = s.db.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
		if err := s.resolveParties(ctx, tx, in); err != nil {
			return err
		}

		for _, key := range settlementKeys(in) {
			if _, err := tx.GetEntry(ctx, key, true); err != nil {
				return err
			}
		}

		given, err := s.ledger.checkInventory(ctx, tx, in.Survivor1ID, in.ItemGivenID)
		if err != nil {
			return err
		}
		if given < in.QuantityGiven {
			return domain.InsufficientFunds(in.Survivor1ID, in.ItemGivenID)
		}

		received, err := s.ledger.checkInventory(ctx, tx, in.Survivor2ID, in.ItemReceivedID)
		if err != nil {
			return err
		}
		if received < in.QuantityReceived {
			return domain.InsufficientFunds(in.Survivor2ID, in.ItemReceivedID)
		}

		if _, err := s.ledger.decrement(ctx, tx, in.Survivor1ID, in.ItemGivenID, in.QuantityGiven); err != nil {
			return err
		}
		if _, err := s.ledger.increment(ctx, tx, in.Survivor2ID, in.ItemGivenID, in.QuantityGiven); err != nil {
			return err
		}
		if _, err := s.ledger.decrement(ctx, tx, in.Survivor2ID, in.ItemReceivedID, in.QuantityReceived); err != nil {
			return err
		}
		if _, err := s.ledger.increment(ctx, tx, in.Survivor1ID, in.ItemReceivedID, in.QuantityReceived); err != nil {
			return err
		}

		t := domain.Trade{
			ID:               uuid.NewString(),
			Survivor1ID:      in.Survivor1ID,
			Survivor2ID:      in.Survivor2ID,
			ItemGivenID:      in.ItemGivenID,
			ItemReceivedID:   in.ItemReceivedID,
			QuantityGiven:    in.QuantityGiven,
			QuantityReceived: in.QuantityReceived,
			CreatedAt:        s.now().UTC().Truncate(time.Microsecond),
		}
		if err := tx.CreateTrade(ctx, t); err != nil {
			return err
		}
		trade = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}

func (s *TradeService) resolveParties(ctx context.Context, tx port.Store, in TradeInput) error {
	survivor1, err := tx.GetSurvivor(ctx, in.Survivor1ID)
	if err != nil {
		return err
	}
	survivor2, err := tx.GetSurvivor(ctx, in.Survivor2ID)
	if err != nil {
		return err
	}
	if survivor1 == nil || survivor2 == nil {
		return domain.NotFound("one or both survivors not found")
	}

	itemGiven, err := tx.GetItem(ctx, in.ItemGivenID)
	if err != nil {
		return err
	}
	itemReceived, err := tx.GetItem(ctx, in.ItemReceivedID)
	if err != nil {
		return err
	}
	if itemGiven == nil || itemReceived == nil {
		return domain.NotFound("one or both items not found")
	}
	return nil
}

// settlementKeys returns the distinct ledger rows a settlement touches in the
// order they must be locked. A fixed order keeps two settlements over
// overlapping rows from deadlocking each other.
func settlementKeys(in TradeInput) []domain.InventoryKey {
	candidates := []domain.InventoryKey{
		{SurvivorID: in.Survivor1ID, ItemID: in.ItemGivenID},
		{SurvivorID: in.Survivor2ID, ItemID: in.ItemGivenID},
		{SurvivorID: in.Survivor2ID, ItemID: in.ItemReceivedID},
		{SurvivorID: in.Survivor1ID, ItemID: in.ItemReceivedID},
	}

	seen := make(map[domain.InventoryKey]struct{}, len(candidates))
	keys := make([]domain.InventoryKey, 0, len(candidates))
	for _, k := range candidates {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (s *TradeService) GetTrade(ctx context.Context, id string) (*domain.Trade, error) {
	trade, err := s.db.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, domain.NotFound("Trade with ID %s not found", id)
	}
	return trade, nil
}

func (s *TradeService) ListTrades(ctx context.Context) ([]domain.Trade, error) {
	return s.db.ListTrades(ctx)
}

// ListTradesBySurvivor returns the trades the survivor initiated, tagged
// Give, followed by the trades they were the counterparty of, tagged Receive.
func (s *TradeService) ListTradesBySurvivor(ctx context.Context, survivorID string) ([]domain.TradeView, error) {
	survivor, err := s.db.GetSurvivor(ctx, survivorID)
	if err != nil {
		return nil, err
	}
	if survivor == nil {
		return nil, domain.NotFound("Survivor with ID %s not found", survivorID)
	}

	given, err := s.db.ListTradeViews(ctx, survivorID, domain.TradeActionGive)
	if err != nil {
		return nil, err
	}
	received, err := s.db.ListTradeViews(ctx, survivorID, domain.TradeActionReceive)
	if err != nil {
		return nil, err
	}

	views := make([]domain.TradeView, 0, len(given)+len(received))
	for _, v := range given {
		v.Action = domain.TradeActionGive
		views = append(views, v)
	}
	for _, v := range received {
		v.Action = domain.TradeActionReceive
		views = append(views, v)
	}
	return views, nil
}

// DeleteTrade tombstones a trade. Inventory is not touched: deleting a
// record does not undo the exchange.
func (s *TradeService) DeleteTrade(ctx context.Context, id string) (*domain.Trade, error) {
	var trade *domain.Trade
	err := s.db.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
		t, err := tx.GetTrade(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return domain.NotFound("Trade with ID %s not found", id)
		}

		now := s.now().UTC().Truncate(time.Microsecond)
		ok, err := tx.TombstoneTrade(ctx, id, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound("Trade with ID %s not found", id)
		}
		t.DeletedAt = &now
		trade = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trade deleted", zap.String("trade_id", id))
	return trade, nil
}

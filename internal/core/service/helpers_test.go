package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/survivor-trade/internal/adapter/storage"
	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/metrics"
	"github.com/rl1809/survivor-trade/internal/port"
)

// Mock CacheRepository
type mockCacheRepo struct {
	keys map[string]string
	mu   sync.Mutex
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{keys: make(map[string]string)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = token
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys[key] == token {
		delete(m.keys, key)
	}
	return nil
}

func (m *mockCacheRepo) held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok
}

// Mock EventPublisher
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.TradeSettled
}

func (p *recordingPublisher) PublishTradeSettled(ctx context.Context, event domain.TradeSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []domain.TradeSettled {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TradeSettled(nil), p.events...)
}

// failingStore fails CreateTrade inside transactions, after the ledger
// mutations have already been applied to the transaction.
type failingStore struct {
	*storage.MemoryAdapter
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Store) error) error {
	return f.MemoryAdapter.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
		return fn(ctx, &failingTx{Store: tx})
	})
}

type failingTx struct {
	port.Store
}

func (f *failingTx) CreateTrade(ctx context.Context, trade domain.Trade) error {
	return context.DeadlineExceeded
}

type testEnv struct {
	db     port.DatabaseRepository
	ledger *LedgerService
	trades *TradeService
	cache  *mockCacheRepo

	alice, bob  string
	water, food string
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithStore(t, storage.NewMemoryAdapter())
}

func newTestEnvWithStore(t *testing.T, db port.DatabaseRepository) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	ledger := NewLedgerService(db, logger, m)
	cache := newMockCacheRepo()

	env := &testEnv{
		db:     db,
		ledger: ledger,
		trades: NewTradeService(db, ledger, cache, nil, logger, m),
		cache:  cache,
		alice:  "survivor-alice",
		bob:    "survivor-bob",
		water:  "item-water",
		food:   "item-food",
	}

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, db.CreateSurvivor(ctx, domain.Survivor{ID: env.alice, Name: "Alice", Age: 31, Gender: "F", CreatedAt: now}))
	require.NoError(t, db.CreateSurvivor(ctx, domain.Survivor{ID: env.bob, Name: "Bob", Age: 45, Gender: "M", CreatedAt: now}))
	require.NoError(t, db.CreateItem(ctx, domain.Item{ID: env.water, Name: "Water", CreatedAt: now}))
	require.NoError(t, db.CreateItem(ctx, domain.Item{ID: env.food, Name: "Food", CreatedAt: now}))
	return env
}

func (e *testEnv) give(t *testing.T, survivorID, itemID string, quantity int) {
	t.Helper()
	_, err := e.ledger.Increment(context.Background(), survivorID, itemID, quantity)
	require.NoError(t, err)
}

// balance returns the entry quantity, or -1 when the entry is absent.
func (e *testEnv) balance(t *testing.T, survivorID, itemID string) int {
	t.Helper()
	entry, err := e.db.GetEntry(context.Background(), domain.InventoryKey{SurvivorID: survivorID, ItemID: itemID}, false)
	require.NoError(t, err)
	if entry == nil {
		return -1
	}
	return entry.Quantity
}

func (e *testEnv) tradeCount(t *testing.T) int {
	t.Helper()
	trades, err := e.db.ListTrades(context.Background())
	require.NoError(t, err)
	return len(trades)
}

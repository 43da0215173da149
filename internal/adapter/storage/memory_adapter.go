package storage

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/port"
)

type memoryState struct {
	survivors map[string]domain.Survivor
	items     map[string]domain.Item
	inventory map[domain.InventoryKey]domain.InventoryEntry
	trades    map[string]domain.Trade
}

func newMemoryState() *memoryState {
	return &memoryState{
		survivors: map[string]domain.Survivor{},
		items:     map[string]domain.Item{},
		inventory: map[domain.InventoryKey]domain.InventoryEntry{},
		trades:    map[string]domain.Trade{},
	}
}

// clone copies the maps; values hold no shared mutable state besides the
// DeletedAt pointers, which are only ever replaced, never written through.
func (s *memoryState) clone() *memoryState {
	return &memoryState{
		survivors: maps.Clone(s.survivors),
		items:     maps.Clone(s.items),
		inventory: maps.Clone(s.inventory),
		trades:    maps.Clone(s.trades),
	}
}

// MemoryAdapter is an in-process DatabaseRepository. Transactions are
// serialized by a single writer lock and applied copy-on-commit, so a failed
// transaction leaves no trace and readers never observe partial writes.
type MemoryAdapter struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	state   *memoryState
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{state: newMemoryState()}
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Store) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	working := m.state.clone()
	m.mu.RUnlock()

	if err := fn(ctx, &memoryTx{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = working
	m.mu.Unlock()
	return nil
}

// read runs fn against the committed state.
func (m *MemoryAdapter) read(fn func(tx *memoryTx)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(&memoryTx{state: m.state})
}

// write runs a single-statement mutation as its own transaction.
func (m *MemoryAdapter) write(ctx context.Context, fn func(tx *memoryTx) error) error {
	return m.WithinTx(ctx, func(_ context.Context, tx port.Store) error {
		return fn(tx.(*memoryTx))
	})
}

func (m *MemoryAdapter) CreateSurvivor(ctx context.Context, survivor domain.Survivor) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.CreateSurvivor(ctx, survivor) })
}

func (m *MemoryAdapter) GetSurvivor(ctx context.Context, id string) (s *domain.Survivor, err error) {
	m.read(func(tx *memoryTx) { s, err = tx.GetSurvivor(ctx, id) })
	return s, err
}

func (m *MemoryAdapter) ListSurvivors(ctx context.Context) (out []domain.Survivor, err error) {
	m.read(func(tx *memoryTx) { out, err = tx.ListSurvivors(ctx) })
	return out, err
}

func (m *MemoryAdapter) UpdateSurvivor(ctx context.Context, survivor domain.Survivor) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.UpdateSurvivor(ctx, survivor) })
}

func (m *MemoryAdapter) CreateItem(ctx context.Context, item domain.Item) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.CreateItem(ctx, item) })
}

func (m *MemoryAdapter) GetItem(ctx context.Context, id string) (i *domain.Item, err error) {
	m.read(func(tx *memoryTx) { i, err = tx.GetItem(ctx, id) })
	return i, err
}

func (m *MemoryAdapter) ListItems(ctx context.Context) (out []domain.Item, err error) {
	m.read(func(tx *memoryTx) { out, err = tx.ListItems(ctx) })
	return out, err
}

func (m *MemoryAdapter) UpdateItem(ctx context.Context, item domain.Item) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.UpdateItem(ctx, item) })
}

func (m *MemoryAdapter) GetEntry(ctx context.Context, key domain.InventoryKey, forUpdate bool) (e *domain.InventoryEntry, err error) {
	m.read(func(tx *memoryTx) { e, err = tx.GetEntry(ctx, key, forUpdate) })
	return e, err
}

func (m *MemoryAdapter) AddQuantity(ctx context.Context, key domain.InventoryKey, quantity int, at time.Time) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.AddQuantity(ctx, key, quantity, at) })
}

func (m *MemoryAdapter) SubtractQuantity(ctx context.Context, key domain.InventoryKey, quantity int, at time.Time) (ok bool, err error) {
	err = m.write(ctx, func(tx *memoryTx) error {
		ok, err = tx.SubtractQuantity(ctx, key, quantity, at)
		return err
	})
	return ok, err
}

func (m *MemoryAdapter) ListEntries(ctx context.Context, survivorID string) (out []domain.InventoryEntry, err error) {
	m.read(func(tx *memoryTx) { out, err = tx.ListEntries(ctx, survivorID) })
	return out, err
}

func (m *MemoryAdapter) CreateTrade(ctx context.Context, trade domain.Trade) error {
	return m.write(ctx, func(tx *memoryTx) error { return tx.CreateTrade(ctx, trade) })
}

func (m *MemoryAdapter) GetTrade(ctx context.Context, id string) (t *domain.Trade, err error) {
	m.read(func(tx *memoryTx) { t, err = tx.GetTrade(ctx, id) })
	return t, err
}

func (m *MemoryAdapter) ListTrades(ctx context.Context) (out []domain.Trade, err error) {
	m.read(func(tx *memoryTx) { out, err = tx.ListTrades(ctx) })
	return out, err
}

func (m *MemoryAdapter) ListTradeViews(ctx context.Context, survivorID string, action domain.TradeAction) (out []domain.TradeView, err error) {
	m.read(func(tx *memoryTx) { out, err = tx.ListTradeViews(ctx, survivorID, action) })
	return out, err
}

func (m *MemoryAdapter) TombstoneTrade(ctx context.Context, id string, at time.Time) (ok bool, err error) {
	err = m.write(ctx, func(tx *memoryTx) error {
		ok, err = tx.TombstoneTrade(ctx, id, at)
		return err
	})
	return ok, err
}

func (m *MemoryAdapter) PopulationStats(ctx context.Context) (stats domain.PopulationStats, err error) {
	m.read(func(tx *memoryTx) { stats, err = tx.PopulationStats(ctx) })
	return stats, err
}

// memoryTx operates on one state snapshot. It is not safe for concurrent use
// outside the adapter's locks.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) CreateSurvivor(_ context.Context, survivor domain.Survivor) error {
	if _, ok := t.state.survivors[survivor.ID]; ok {
		return domain.Conflict("survivor %s already exists", survivor.ID)
	}
	t.state.survivors[survivor.ID] = survivor
	return nil
}

func (t *memoryTx) GetSurvivor(_ context.Context, id string) (*domain.Survivor, error) {
	s, ok := t.state.survivors[id]
	if !ok || !s.Active() {
		return nil, nil
	}
	return &s, nil
}

func (t *memoryTx) ListSurvivors(_ context.Context) ([]domain.Survivor, error) {
	out := make([]domain.Survivor, 0, len(t.state.survivors))
	for _, s := range t.state.survivors {
		if s.Active() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *memoryTx) UpdateSurvivor(_ context.Context, survivor domain.Survivor) error {
	cur, ok := t.state.survivors[survivor.ID]
	if !ok || !cur.Active() {
		return domain.NotFound("Survivor with ID %s not found", survivor.ID)
	}
	t.state.survivors[survivor.ID] = survivor
	return nil
}

func (t *memoryTx) CreateItem(_ context.Context, item domain.Item) error {
	if _, ok := t.state.items[item.ID]; ok {
		return domain.Conflict("item %s already exists", item.ID)
	}
	t.state.items[item.ID] = item
	return nil
}

func (t *memoryTx) GetItem(_ context.Context, id string) (*domain.Item, error) {
	i, ok := t.state.items[id]
	if !ok || !i.Active() {
		return nil, nil
	}
	return &i, nil
}

func (t *memoryTx) ListItems(_ context.Context) ([]domain.Item, error) {
	out := make([]domain.Item, 0, len(t.state.items))
	for _, i := range t.state.items {
		if i.Active() {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *memoryTx) UpdateItem(_ context.Context, item domain.Item) error {
	cur, ok := t.state.items[item.ID]
	if !ok || !cur.Active() {
		return domain.NotFound("Item with ID %s not found", item.ID)
	}
	t.state.items[item.ID] = item
	return nil
}

func (t *memoryTx) GetEntry(_ context.Context, key domain.InventoryKey, _ bool) (*domain.InventoryEntry, error) {
	e, ok := t.state.inventory[key]
	if !ok || !e.Active() {
		return nil, nil
	}
	e.ItemName = t.state.items[key.ItemID].Name
	return &e, nil
}

func (t *memoryTx) AddQuantity(_ context.Context, key domain.InventoryKey, quantity int, at time.Time) error {
	e, ok := t.state.inventory[key]
	switch {
	case !ok:
		e = domain.InventoryEntry{SurvivorID: key.SurvivorID, ItemID: key.ItemID, CreatedAt: at}
	case !e.Active():
		e.Quantity = 0
		e.DeletedAt = nil
	}
	e.Quantity += quantity
	e.UpdatedAt = at
	t.state.inventory[key] = e
	return nil
}

func (t *memoryTx) SubtractQuantity(_ context.Context, key domain.InventoryKey, quantity int, at time.Time) (bool, error) {
	e, ok := t.state.inventory[key]
	if !ok || !e.Active() || e.Quantity < quantity {
		return false, nil
	}
	e.Quantity -= quantity
	e.UpdatedAt = at
	t.state.inventory[key] = e
	return true, nil
}

func (t *memoryTx) ListEntries(_ context.Context, survivorID string) ([]domain.InventoryEntry, error) {
	var out []domain.InventoryEntry
	for key, e := range t.state.inventory {
		if key.SurvivorID != survivorID || !e.Active() {
			continue
		}
		item, ok := t.state.items[key.ItemID]
		if !ok || !item.Active() {
			continue
		}
		e.ItemName = item.Name
		out = append(out, e)
	}
	return out, nil
}

func (t *memoryTx) CreateTrade(_ context.Context, trade domain.Trade) error {
	if _, ok := t.state.trades[trade.ID]; ok {
		return domain.Conflict("trade %s already exists", trade.ID)
	}
	t.state.trades[trade.ID] = trade
	return nil
}

func (t *memoryTx) GetTrade(_ context.Context, id string) (*domain.Trade, error) {
	tr, ok := t.state.trades[id]
	if !ok || !tr.Active() {
		return nil, nil
	}
	return &tr, nil
}

func (t *memoryTx) ListTrades(_ context.Context) ([]domain.Trade, error) {
	out := make([]domain.Trade, 0, len(t.state.trades))
	for _, tr := range t.state.trades {
		if tr.Active() {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *memoryTx) ListTradeViews(_ context.Context, survivorID string, action domain.TradeAction) ([]domain.TradeView, error) {
	var out []domain.TradeView
	for _, tr := range t.state.trades {
		if !tr.Active() {
			continue
		}
		if action == domain.TradeActionGive && tr.Survivor1ID != survivorID {
			continue
		}
		if action == domain.TradeActionReceive && tr.Survivor2ID != survivorID {
			continue
		}
		out = append(out, domain.TradeView{
			ID:               tr.ID,
			CreatedAt:        tr.CreatedAt,
			Survivor1ID:      tr.Survivor1ID,
			Survivor2ID:      tr.Survivor2ID,
			ItemGivenID:      tr.ItemGivenID,
			ItemGivenName:    t.state.items[tr.ItemGivenID].Name,
			ItemReceivedID:   tr.ItemReceivedID,
			ItemReceivedName: t.state.items[tr.ItemReceivedID].Name,
			QuantityGiven:    tr.QuantityGiven,
			QuantityReceived: tr.QuantityReceived,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *memoryTx) TombstoneTrade(_ context.Context, id string, at time.Time) (bool, error) {
	tr, ok := t.state.trades[id]
	if !ok || !tr.Active() {
		return false, nil
	}
	tr.DeletedAt = &at
	t.state.trades[id] = tr
	return true, nil
}

func (t *memoryTx) PopulationStats(_ context.Context) (domain.PopulationStats, error) {
	var stats domain.PopulationStats
	for _, s := range t.state.survivors {
		if !s.Active() {
			continue
		}
		stats.Survivors++
		if s.Infected {
			stats.Infected++
		}
	}
	for _, e := range t.state.inventory {
		if e.Active() {
			stats.TotalResources += e.Quantity
		}
	}
	return stats, nil
}

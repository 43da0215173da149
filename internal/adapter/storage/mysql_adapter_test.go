package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/port"
)

func getMySQLDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/survivors?parseTime=true"
	}

	ctx := context.Background()
	db, err := OpenMySQL(ctx, dsn, 10, 5)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

type mysqlFixture struct {
	survivor1, survivor2 string
	water, food          string
}

func seedMySQL(t *testing.T, adapter *MySQLAdapter) mysqlFixture {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	f := mysqlFixture{
		survivor1: uuid.NewString(),
		survivor2: uuid.NewString(),
		water:     uuid.NewString(),
		food:      uuid.NewString(),
	}
	for _, id := range []string{f.survivor1, f.survivor2} {
		err := adapter.CreateSurvivor(ctx, domain.Survivor{
			ID: id, Name: "test-survivor", Age: 30, Gender: "F",
			LastLocationLat:  decimal.RequireFromString("-23.55052000"),
			LastLocationLong: decimal.RequireFromString("-46.63330800"),
			CreatedAt:        now, UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	for id, name := range map[string]string{f.water: "Water", f.food: "Food"} {
		if err := adapter.CreateItem(ctx, domain.Item{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	return f
}

func TestMySQL_SurvivorRoundTrip(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := seedMySQL(t, adapter)

	s, err := adapter.GetSurvivor(ctx, f.survivor1)
	if err != nil {
		t.Fatalf("GetSurvivor failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected survivor, got nil")
	}
	if !s.LastLocationLat.Equal(decimal.RequireFromString("-23.55052")) {
		t.Errorf("expected latitude -23.55052, got %s", s.LastLocationLat)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.DeletedAt = &now
	if err := adapter.UpdateSurvivor(ctx, *s); err != nil {
		t.Fatalf("UpdateSurvivor failed: %v", err)
	}

	s, err = adapter.GetSurvivor(ctx, f.survivor1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != nil {
		t.Error("expected tombstoned survivor to be hidden")
	}
}

func TestMySQL_AddAndSubtractQuantity(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := seedMySQL(t, adapter)
	key := domain.InventoryKey{SurvivorID: f.survivor1, ItemID: f.water}

	if err := adapter.AddQuantity(ctx, key, 10, time.Now()); err != nil {
		t.Fatalf("AddQuantity failed: %v", err)
	}
	if err := adapter.AddQuantity(ctx, key, 5, time.Now()); err != nil {
		t.Fatalf("AddQuantity failed: %v", err)
	}

	ok, err := adapter.SubtractQuantity(ctx, key, 16, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected subtract beyond balance to fail")
	}

	ok, err = adapter.SubtractQuantity(ctx, key, 15, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected subtract to succeed")
	}

	entry, err := adapter.GetEntry(ctx, key, false)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected zero-balance entry to remain")
	}
	if entry.Quantity != 0 {
		t.Errorf("expected quantity 0, got %d", entry.Quantity)
	}
}

func TestMySQL_AddQuantityRevivesTombstone(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := seedMySQL(t, adapter)
	key := domain.InventoryKey{SurvivorID: f.survivor1, ItemID: f.food}

	if err := adapter.AddQuantity(ctx, key, 7, time.Now()); err != nil {
		t.Fatalf("AddQuantity failed: %v", err)
	}
	db.ExecContext(ctx, `UPDATE inventory SET deleted_at = NOW(6) WHERE survivor_id = ? AND item_id = ?`,
		key.SurvivorID, key.ItemID)

	if err := adapter.AddQuantity(ctx, key, 2, time.Now()); err != nil {
		t.Fatalf("AddQuantity failed: %v", err)
	}

	entry, err := adapter.GetEntry(ctx, key, false)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if entry == nil || entry.Quantity != 2 {
		t.Errorf("expected revived entry with quantity 2, got %+v", entry)
	}
}

func TestMySQL_GetEntry_NotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)

	entry, err := adapter.GetEntry(context.Background(), domain.InventoryKey{SurvivorID: "nobody", ItemID: "nothing"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != nil {
		t.Error("expected nil for nonexistent entry")
	}
}

func TestMySQL_WithinTx_Rollback(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := seedMySQL(t, adapter)
	key := domain.InventoryKey{SurvivorID: f.survivor2, ItemID: f.water}
	tradeID := uuid.NewString()

	boom := errors.New("boom")
	err := adapter.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
		if err := tx.AddQuantity(ctx, key, 3, time.Now()); err != nil {
			return err
		}
		if err := tx.CreateTrade(ctx, domain.Trade{
			ID: tradeID, Survivor1ID: f.survivor1, Survivor2ID: f.survivor2,
			ItemGivenID: f.water, ItemReceivedID: f.food,
			QuantityGiven: 1, QuantityReceived: 1, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	entry, _ := adapter.GetEntry(ctx, key, false)
	if entry != nil {
		t.Error("expected inventory write to be rolled back")
	}
	trade, _ := adapter.GetTrade(ctx, tradeID)
	if trade != nil {
		t.Error("expected trade insert to be rolled back")
	}
}

func TestMySQL_TradeViews(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := seedMySQL(t, adapter)

	trade := domain.Trade{
		ID: uuid.NewString(), Survivor1ID: f.survivor1, Survivor2ID: f.survivor2,
		ItemGivenID: f.water, ItemReceivedID: f.food,
		QuantityGiven: 5, QuantityReceived: 3,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := adapter.CreateTrade(ctx, trade); err != nil {
		t.Fatalf("CreateTrade failed: %v", err)
	}

	views, err := adapter.ListTradeViews(ctx, f.survivor2, domain.TradeActionReceive)
	if err != nil {
		t.Fatalf("ListTradeViews failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	if views[0].ItemGivenName != "Water" || views[0].ItemReceivedName != "Food" {
		t.Errorf("unexpected item names: %+v", views[0])
	}

	ok, err := adapter.TombstoneTrade(ctx, trade.ID, time.Now())
	if err != nil || !ok {
		t.Fatalf("TombstoneTrade failed: ok=%v err=%v", ok, err)
	}

	views, _ = adapter.ListTradeViews(ctx, f.survivor2, domain.TradeActionReceive)
	if len(views) != 0 {
		t.Errorf("expected tombstoned trade to be hidden, got %d views", len(views))
	}
}

func TestMySQL_ListEntriesSkipsTombstonedItems(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := seedMySQL(t, adapter)
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, item := range []string{f.water, f.food} {
		if err := adapter.AddQuantity(ctx, domain.InventoryKey{SurvivorID: f.survivor1, ItemID: item}, 2, now); err != nil {
			t.Fatalf("add quantity failed: %v", err)
		}
	}

	water, err := adapter.GetItem(ctx, f.water)
	if err != nil || water == nil {
		t.Fatalf("get item failed: %v", err)
	}
	water.DeletedAt = &now
	water.UpdatedAt = now
	if err := adapter.UpdateItem(ctx, *water); err != nil {
		t.Fatalf("tombstone item failed: %v", err)
	}

	entries, err := adapter.ListEntries(ctx, f.survivor1)
	if err != nil {
		t.Fatalf("list entries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ItemID != f.food {
		t.Errorf("expected only the food entry, got %+v", entries)
	}
}

// Several transactions lock and then create the same absent ledger row, the
// way concurrent settlements credit a counterparty's first unit of an item.
func TestMySQL_ConcurrentUpsertOfAbsentRow(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := seedMySQL(t, adapter)
	key := domain.InventoryKey{SurvivorID: f.survivor2, ItemID: f.food}

	const workers = 8
	var wg sync.WaitGroup
	var failures atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := adapter.WithinTx(ctx, func(ctx context.Context, tx port.Store) error {
				if _, err := tx.GetEntry(ctx, key, true); err != nil {
					return err
				}
				return tx.AddQuantity(ctx, key, 1, time.Now())
			})
			if err != nil {
				failures.Add(1)
				t.Logf("upsert failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("expected no conflicts, got %d", failures.Load())
	}
	entry, err := adapter.GetEntry(ctx, key, false)
	if err != nil || entry == nil {
		t.Fatalf("get entry failed: %v", err)
	}
	if entry.Quantity != workers {
		t.Errorf("expected quantity %d, got %d", workers, entry.Quantity)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rl1809/survivor-trade/internal/adapter/storage"
	"github.com/rl1809/survivor-trade/internal/config"
	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/core/service"
	"github.com/rl1809/survivor-trade/internal/metrics"
	"github.com/rl1809/survivor-trade/internal/port"
)

const (
	survivorCount   = 6
	initialHoldings = 20
	totalRequests   = 500
	maxQuantity     = 6
)

var itemNames = []string{"Water", "Food", "Medication", "Ammunition"}

// Settles random trades between a small group of survivors concurrently and
// checks that no balance went negative and every item was conserved.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var db port.DatabaseRepository
	if cfg.StoreDriver == config.StoreMySQL {
		sqlDB, err := storage.OpenMySQL(ctx, cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		defer sqlDB.Close()
		if err := storage.Migrate(ctx, sqlDB); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		db = storage.NewMySQLAdapter(sqlDB)
	} else {
		db = storage.NewMemoryAdapter()
	}

	logger := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	ledger := service.NewLedgerService(db, logger, m)
	trades := service.NewTradeService(db, ledger, nil, nil, logger, m)
	survivorSvc := service.NewSurvivorService(db, logger)
	itemSvc := service.NewItemService(db, logger)

	// Seed a fresh group so repeated runs against MySQL do not interfere.
	survivorIDs := make([]string, survivorCount)
	for i := range survivorIDs {
		s, err := survivorSvc.Create(ctx, service.SurvivorInput{Name: fmt.Sprintf("stress-%d", i), Gender: "X"})
		if err != nil {
			log.Fatalf("failed to create survivor: %v", err)
		}
		survivorIDs[i] = s.ID
	}
	itemIDs := make([]string, len(itemNames))
	for i, name := range itemNames {
		it, err := itemSvc.Create(ctx, service.ItemInput{Name: name})
		if err != nil {
			log.Fatalf("failed to create item: %v", err)
		}
		itemIDs[i] = it.ID
	}
	for _, s := range survivorIDs {
		for _, it := range itemIDs {
			if _, err := ledger.Increment(ctx, s, it, initialHoldings); err != nil {
				log.Fatalf("failed to seed inventory: %v", err)
			}
		}
	}

	// Counters
	var successCount, insufficientCount, conflictCount, errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			a := rand.IntN(survivorCount)
			b := (a + 1 + rand.IntN(survivorCount-1)) % survivorCount
			in := service.TradeInput{
				Survivor1ID:      survivorIDs[a],
				Survivor2ID:      survivorIDs[b],
				ItemGivenID:      itemIDs[rand.IntN(len(itemIDs))],
				ItemReceivedID:   itemIDs[rand.IntN(len(itemIDs))],
				QuantityGiven:    1 + rand.IntN(maxQuantity),
				QuantityReceived: 1 + rand.IntN(maxQuantity),
			}

			_, err := trades.Settle(ctx, "", in)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficientCount.Add(1)
			case errors.Is(err, domain.ErrConflict):
				conflictCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Store:            %s\n", cfg.StoreDriver)
	fmt.Printf("Survivors:        %d\n", survivorCount)
	fmt.Printf("Items:            %d\n", len(itemIDs))
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Settled:          %d\n", successCount.Load())
	fmt.Printf("Insufficient:     %d\n", insufficientCount.Load())
	fmt.Printf("Conflicts:        %d\n", conflictCount.Load())
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	failed := false
	for _, it := range itemIDs {
		total := 0
		for _, s := range survivorIDs {
			qty, err := ledger.CheckInventory(ctx, s, it)
			if err != nil {
				log.Fatalf("failed to read inventory: %v", err)
			}
			if qty < 0 {
				fmt.Printf("FAIL: survivor %s holds %d of item %s\n", s, qty, it)
				failed = true
			}
			total += qty
		}
		if want := survivorCount * initialHoldings; total != want {
			fmt.Printf("FAIL: item %s total %d, expected %d\n", it, total, want)
			failed = true
		}
	}

	recorded := 0
	for _, s := range survivorIDs {
		views, err := trades.ListTradesBySurvivor(ctx, s)
		if err != nil {
			log.Fatalf("failed to list trades: %v", err)
		}
		for _, v := range views {
			if v.Action == domain.TradeActionGive {
				recorded++
			}
		}
	}
	if recorded != int(successCount.Load()) {
		fmt.Printf("FAIL: %d trades recorded, %d settled\n", recorded, successCount.Load())
		failed = true
	}
	if errorCount.Load() > 0 {
		failed = true
	}

	if failed {
		fmt.Println("FAIL")
	} else {
		fmt.Println("PASS: every item conserved, no negative balance, one record per settlement")
	}
}

package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/port"
)

const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// OpenMySQL connects and pings the database. parseTime is forced on so
// DATETIME columns scan into time.Time, and clientFoundRows so an UPDATE that
// matches a row reports it even when no column value changed.
func OpenMySQL(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}
	return db, nil
}

// MySQLAdapter implements DatabaseRepository on InnoDB. Inside WithinTx the
// same type is bound to the transaction, and GetEntry(forUpdate) takes a
// row lock that is held until commit.
type MySQLAdapter struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, q: db}
}

func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Store) error) error {
	if _, nested := m.q.(*sqlx.Tx); nested {
		return fn(ctx, m)
	}

	// READ COMMITTED keeps FOR UPDATE on an absent ledger row from taking a
	// gap lock that concurrent upserts of the same key would deadlock on.
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return translateError(errors.Wrap(err, "begin tx"))
	}
	defer tx.Rollback()

	if err := fn(ctx, &MySQLAdapter{db: m.db, q: tx}); err != nil {
		return translateError(err)
	}

	if err := tx.Commit(); err != nil {
		return translateError(errors.Wrap(err, "commit tx"))
	}
	return nil
}

// translateError maps lock contention reported by InnoDB onto the domain
// conflict kind; the whole transaction has been rolled back by then.
func translateError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return domain.Conflict("storage conflict, retry the request: %s", myErr.Message)
		}
	}
	return err
}

const survivorColumns = `id, name, age, gender, infected, last_location_lat, last_location_long,
	created_at, updated_at, deleted_at`

func (m *MySQLAdapter) CreateSurvivor(ctx context.Context, s domain.Survivor) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO survivors (`+survivorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Age, s.Gender, s.Infected, s.LastLocationLat, s.LastLocationLong,
		s.CreatedAt, s.UpdatedAt, s.DeletedAt,
	)
	return errors.Wrap(err, "insert survivor")
}

func (m *MySQLAdapter) GetSurvivor(ctx context.Context, id string) (*domain.Survivor, error) {
	var s domain.Survivor
	err := sqlx.GetContext(ctx, m.q, &s, `
		SELECT `+survivorColumns+`
		FROM survivors WHERE id = ? AND deleted_at IS NULL`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query survivor")
	}
	return &s, nil
}

func (m *MySQLAdapter) ListSurvivors(ctx context.Context) ([]domain.Survivor, error) {
	out := []domain.Survivor{}
	err := sqlx.SelectContext(ctx, m.q, &out, `
		SELECT `+survivorColumns+`
		FROM survivors WHERE deleted_at IS NULL ORDER BY created_at`)
	return out, errors.Wrap(err, "query survivors")
}

func (m *MySQLAdapter) UpdateSurvivor(ctx context.Context, s domain.Survivor) error {
	result, err := m.q.ExecContext(ctx, `
		UPDATE survivors
		SET name = ?, age = ?, gender = ?, infected = ?, last_location_lat = ?,
			last_location_long = ?, updated_at = ?, deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		s.Name, s.Age, s.Gender, s.Infected, s.LastLocationLat, s.LastLocationLong,
		s.UpdatedAt, s.DeletedAt, s.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update survivor")
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.NotFound("Survivor with ID %s not found", s.ID)
	}
	return nil
}

const itemColumns = `id, name, description, created_at, updated_at, deleted_at`

func (m *MySQLAdapter) CreateItem(ctx context.Context, i domain.Item) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.Name, i.Description, i.CreatedAt, i.UpdatedAt, i.DeletedAt,
	)
	return errors.Wrap(err, "insert item")
}

func (m *MySQLAdapter) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	var i domain.Item
	err := sqlx.GetContext(ctx, m.q, &i, `
		SELECT `+itemColumns+` FROM items WHERE id = ? AND deleted_at IS NULL`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query item")
	}
	return &i, nil
}

func (m *MySQLAdapter) ListItems(ctx context.Context) ([]domain.Item, error) {
	out := []domain.Item{}
	err := sqlx.SelectContext(ctx, m.q, &out, `
		SELECT `+itemColumns+` FROM items WHERE deleted_at IS NULL ORDER BY created_at`)
	return out, errors.Wrap(err, "query items")
}

func (m *MySQLAdapter) UpdateItem(ctx context.Context, i domain.Item) error {
	result, err := m.q.ExecContext(ctx, `
		UPDATE items SET name = ?, description = ?, updated_at = ?, deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		i.Name, i.Description, i.UpdatedAt, i.DeletedAt, i.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update item")
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.NotFound("Item with ID %s not found", i.ID)
	}
	return nil
}

func (m *MySQLAdapter) GetEntry(ctx context.Context, key domain.InventoryKey, forUpdate bool) (*domain.InventoryEntry, error) {
	query := `
		SELECT survivor_id, item_id, quantity, created_at, updated_at, deleted_at
		FROM inventory
		WHERE survivor_id = ? AND item_id = ? AND deleted_at IS NULL`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var e domain.InventoryEntry
	err := sqlx.GetContext(ctx, m.q, &e, query, key.SurvivorID, key.ItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query inventory")
	}
	return &e, nil
}

func (m *MySQLAdapter) AddQuantity(ctx context.Context, key domain.InventoryKey, quantity int, at time.Time) error {
	// Assignments run left to right: quantity still sees the old deleted_at.
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO inventory (survivor_id, item_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			quantity = IF(deleted_at IS NULL, quantity + VALUES(quantity), VALUES(quantity)),
			updated_at = VALUES(updated_at),
			deleted_at = NULL`,
		key.SurvivorID, key.ItemID, quantity, at, at,
	)
	return errors.Wrap(err, "upsert inventory")
}

func (m *MySQLAdapter) SubtractQuantity(ctx context.Context, key domain.InventoryKey, quantity int, at time.Time) (bool, error) {
	result, err := m.q.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - ?, updated_at = ?
		WHERE survivor_id = ? AND item_id = ? AND deleted_at IS NULL AND quantity >= ?`,
		quantity, at, key.SurvivorID, key.ItemID, quantity,
	)
	if err != nil {
		return false, errors.Wrap(err, "update inventory")
	}

	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

func (m *MySQLAdapter) ListEntries(ctx context.Context, survivorID string) ([]domain.InventoryEntry, error) {
	out := []domain.InventoryEntry{}
	err := sqlx.SelectContext(ctx, m.q, &out, `
		SELECT inv.survivor_id, inv.item_id, it.name AS item_name, inv.quantity,
			inv.created_at, inv.updated_at, inv.deleted_at
		FROM inventory inv
		JOIN items it ON it.id = inv.item_id AND it.deleted_at IS NULL
		WHERE inv.survivor_id = ? AND inv.deleted_at IS NULL`, survivorID)
	return out, errors.Wrap(err, "query inventory by survivor")
}

const tradeColumns = `id, survivor1_id, survivor2_id, item_given_id, item_received_id,
	quantity_given, quantity_received, created_at, deleted_at`

func (m *MySQLAdapter) CreateTrade(ctx context.Context, t domain.Trade) error {
	_, err := m.q.ExecContext(ctx, `
		INSERT INTO trades (`+tradeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Survivor1ID, t.Survivor2ID, t.ItemGivenID, t.ItemReceivedID,
		t.QuantityGiven, t.QuantityReceived, t.CreatedAt, t.DeletedAt,
	)
	return errors.Wrap(err, "insert trade")
}

func (m *MySQLAdapter) GetTrade(ctx context.Context, id string) (*domain.Trade, error) {
	var t domain.Trade
	err := sqlx.GetContext(ctx, m.q, &t, `
		SELECT `+tradeColumns+` FROM trades WHERE id = ? AND deleted_at IS NULL`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query trade")
	}
	return &t, nil
}

func (m *MySQLAdapter) ListTrades(ctx context.Context) ([]domain.Trade, error) {
	out := []domain.Trade{}
	err := sqlx.SelectContext(ctx, m.q, &out, `
		SELECT `+tradeColumns+` FROM trades WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	return out, errors.Wrap(err, "query trades")
}

func (m *MySQLAdapter) ListTradeViews(ctx context.Context, survivorID string, action domain.TradeAction) ([]domain.TradeView, error) {
	column := "t.survivor1_id"
	if action == domain.TradeActionReceive {
		column = "t.survivor2_id"
	}

	out := []domain.TradeView{}
	err := sqlx.SelectContext(ctx, m.q, &out, `
		SELECT t.id, t.created_at, t.survivor1_id, t.survivor2_id,
			t.item_given_id, g.name AS item_given_name,
			t.item_received_id, r.name AS item_received_name,
			t.quantity_given, t.quantity_received
		FROM trades t
		JOIN items g ON g.id = t.item_given_id
		JOIN items r ON r.id = t.item_received_id
		WHERE `+column+` = ? AND t.deleted_at IS NULL
		ORDER BY t.created_at`, survivorID)
	return out, errors.Wrap(err, "query trade views")
}

func (m *MySQLAdapter) TombstoneTrade(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := m.q.ExecContext(ctx, `
		UPDATE trades SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, at, id)
	if err != nil {
		return false, errors.Wrap(err, "tombstone trade")
	}

	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

func (m *MySQLAdapter) PopulationStats(ctx context.Context) (domain.PopulationStats, error) {
	var stats domain.PopulationStats
	err := sqlx.GetContext(ctx, m.q, &stats, `
		SELECT
			COUNT(*) AS survivors,
			COALESCE(SUM(infected), 0) AS infected,
			(SELECT COALESCE(SUM(quantity), 0) FROM inventory WHERE deleted_at IS NULL) AS total_resources
		FROM survivors
		WHERE deleted_at IS NULL`)
	return stats, errors.Wrap(err, "query population stats")
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"propTradeSim/internal/domain"
	"propTradeSim/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.OrderRepository, ports.ExecutionRepository
// and ports.AccountRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/prop_trade_sim.db"
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits
	// from limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		type TEXT NOT NULL,
		time_in_force TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		remaining_quantity INTEGER NOT NULL,
		status TEXT NOT NULL,
		limit_price REAL DEFAULT NULL,
		stop_price REAL DEFAULT NULL,
		stop_triggered INTEGER NOT NULL DEFAULT 0,
		trail_amount REAL DEFAULT NULL,
		trail_extreme REAL DEFAULT NULL,
		trail_stop REAL DEFAULT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		price REAL NOT NULL,
		quantity INTEGER NOT NULL,
		executed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		status TEXT NOT NULL,
		initial_balance REAL NOT NULL,
		max_drawdown REAL NOT NULL,
		daily_loss_limit_pct REAL NOT NULL,
		profit_target REAL NOT NULL,
		min_trading_days INTEGER NOT NULL,
		balance REAL NOT NULL,
		high_water_mark REAL NOT NULL,
		current_drawdown REAL NOT NULL,
		drawdown_threshold REAL NOT NULL,
		day_start_balance REAL NOT NULL,
		daily_loss_limit_hit INTEGER NOT NULL DEFAULT 0,
		trading_day TEXT NOT NULL,
		last_traded_day TEXT NOT NULL DEFAULT '',
		trading_days INTEGER NOT NULL DEFAULT 0,
		profit_target_reached INTEGER NOT NULL DEFAULT 0,
		reset_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_account_created ON orders (account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_executions_account_executed ON executions (account_id, executed_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- OrderRepository Implementation ---

// SaveOrder inserts or replaces an order row. Orders mutate through
// their lifecycle, so the write is an upsert keyed on the order ID.
func (r *Repository) SaveOrder(ctx context.Context, order *domain.Order) error {
	const query = `
	INSERT INTO orders (id, account_id, symbol, side, type, time_in_force, quantity,
	                    remaining_quantity, status, limit_price, stop_price, stop_triggered,
	                    trail_amount, trail_extreme, trail_stop, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		quantity = excluded.quantity,
		remaining_quantity = excluded.remaining_quantity,
		status = excluded.status,
		limit_price = excluded.limit_price,
		stop_price = excluded.stop_price,
		stop_triggered = excluded.stop_triggered,
		trail_amount = excluded.trail_amount,
		trail_extreme = excluded.trail_extreme,
		trail_stop = excluded.trail_stop,
		updated_at = excluded.updated_at`

	var limitPrice, stopPrice, trailAmount, trailExtreme, trailStop sql.NullFloat64
	stopTriggered := false
	if order.Limit != nil {
		limitPrice = sql.NullFloat64{Float64: order.Limit.Price, Valid: true}
	}
	if order.Stop != nil {
		stopPrice = sql.NullFloat64{Float64: order.Stop.Price, Valid: true}
		stopTriggered = order.Stop.Triggered
	}
	if order.Trail != nil {
		trailAmount = sql.NullFloat64{Float64: order.Trail.Amount, Valid: true}
		trailExtreme = sql.NullFloat64{Float64: order.Trail.ExtremePrice, Valid: true}
		trailStop = sql.NullFloat64{Float64: order.Trail.StopPrice, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.AccountID, order.Symbol, order.Side, order.Type, order.TimeInForce,
		order.Quantity, order.RemainingQuantity, order.Status, limitPrice, stopPrice, stopTriggered,
		trailAmount, trailExtreme, trailStop, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	return nil
}

// FindOrder retrieves an order by ID. Returns (nil, nil) when absent.
func (r *Repository) FindOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	const query = orderSelect + ` WHERE id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query order %s: %w", orderID, err)
	}
	return order, nil
}

// FindOrdersByAccount retrieves an account's orders, oldest first.
func (r *Repository) FindOrdersByAccount(ctx context.Context, accountID string) ([]*domain.Order, error) {
	const query = orderSelect + ` WHERE account_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders for account %s: %w", accountID, err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

const orderSelect = `
	SELECT id, account_id, symbol, side, type, time_in_force, quantity,
	       remaining_quantity, status, limit_price, stop_price, stop_triggered,
	       trail_amount, trail_extreme, trail_stop, created_at, updated_at
	FROM orders`

// scanner abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var o domain.Order
	var limitPrice, stopPrice, trailAmount, trailExtreme, trailStop sql.NullFloat64
	var stopTriggered bool

	err := s.Scan(&o.ID, &o.AccountID, &o.Symbol, &o.Side, &o.Type, &o.TimeInForce,
		&o.Quantity, &o.RemainingQuantity, &o.Status, &limitPrice, &stopPrice, &stopTriggered,
		&trailAmount, &trailExtreme, &trailStop, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if limitPrice.Valid {
		o.Limit = &domain.LimitTerms{Price: limitPrice.Float64}
	}
	if stopPrice.Valid {
		o.Stop = &domain.StopTerms{Price: stopPrice.Float64, Triggered: stopTriggered}
	}
	if trailAmount.Valid {
		o.Trail = &domain.TrailTerms{
			Amount:       trailAmount.Float64,
			ExtremePrice: trailExtreme.Float64,
			StopPrice:    trailStop.Float64,
		}
	}
	return &o, nil
}

// --- ExecutionRepository Implementation ---

// SaveExecution inserts an execution row. Executions are immutable;
// replaying the same ID is a no-op.
func (r *Repository) SaveExecution(ctx context.Context, exec *domain.Execution) error {
	const query = `
	INSERT OR IGNORE INTO executions (id, order_id, account_id, symbol, side, price, quantity, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		exec.ID, exec.OrderID, exec.AccountID, exec.Symbol, exec.Side, exec.Price, exec.Quantity, exec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", exec.ID, err)
	}
	return nil
}

// FindExecutionsByAccount retrieves an account's executions, oldest first.
func (r *Repository) FindExecutionsByAccount(ctx context.Context, accountID string) ([]*domain.Execution, error) {
	const query = `
	SELECT id, order_id, account_id, symbol, side, price, quantity, executed_at
	FROM executions
	WHERE account_id = ?
	ORDER BY executed_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions for account %s: %w", accountID, err)
	}
	defer rows.Close()

	execs := make([]*domain.Execution, 0)
	for rows.Next() {
		var e domain.Execution
		if err := rows.Scan(&e.ID, &e.OrderID, &e.AccountID, &e.Symbol, &e.Side, &e.Price, &e.Quantity, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		execs = append(execs, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution rows: %w", err)
	}
	return execs, nil
}

// --- AccountRepository Implementation ---

// SaveAccount inserts or replaces an account's risk state snapshot.
func (r *Repository) SaveAccount(ctx context.Context, acct *domain.Account) error {
	const query = `
	INSERT INTO accounts (id, phase, status, initial_balance, max_drawdown, daily_loss_limit_pct,
	                      profit_target, min_trading_days, balance, high_water_mark, current_drawdown,
	                      drawdown_threshold, day_start_balance, daily_loss_limit_hit, trading_day,
	                      last_traded_day, trading_days, profit_target_reached, reset_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		phase = excluded.phase,
		status = excluded.status,
		balance = excluded.balance,
		high_water_mark = excluded.high_water_mark,
		current_drawdown = excluded.current_drawdown,
		drawdown_threshold = excluded.drawdown_threshold,
		day_start_balance = excluded.day_start_balance,
		daily_loss_limit_hit = excluded.daily_loss_limit_hit,
		trading_day = excluded.trading_day,
		last_traded_day = excluded.last_traded_day,
		trading_days = excluded.trading_days,
		profit_target_reached = excluded.profit_target_reached,
		reset_count = excluded.reset_count`

	_, err := r.db.ExecContext(ctx, query,
		acct.ID, acct.Phase, acct.Status,
		acct.Plan.InitialBalance, acct.Plan.MaxDrawdown, acct.Plan.DailyLossLimitPct,
		acct.Plan.ProfitTarget, acct.Plan.MinTradingDays,
		acct.CurrentBalance, acct.HighWaterMark, acct.CurrentDrawdown, acct.DrawdownThreshold,
		acct.DayStartBalance, acct.DailyLossLimitHit, acct.TradingDay, acct.LastTradedDay,
		acct.TradingDays, acct.ProfitTargetReached, acct.ResetCount, acct.Created)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", acct.ID, err)
	}
	return nil
}

// FindAccount retrieves an account by ID. Returns (nil, nil) when absent.
func (r *Repository) FindAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	const query = accountSelect + ` WHERE id = ?`

	acct, err := scanAccount(r.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query account %s: %w", accountID, err)
	}
	return acct, nil
}

// FindAllAccounts retrieves every persisted account.
func (r *Repository) FindAllAccounts(ctx context.Context) ([]*domain.Account, error) {
	const query = accountSelect + ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

const accountSelect = `
	SELECT id, phase, status, initial_balance, max_drawdown, daily_loss_limit_pct,
	       profit_target, min_trading_days, balance, high_water_mark, current_drawdown,
	       drawdown_threshold, day_start_balance, daily_loss_limit_hit, trading_day,
	       last_traded_day, trading_days, profit_target_reached, reset_count, created_at
	FROM accounts`

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(&a.ID, &a.Phase, &a.Status,
		&a.Plan.InitialBalance, &a.Plan.MaxDrawdown, &a.Plan.DailyLossLimitPct,
		&a.Plan.ProfitTarget, &a.Plan.MinTradingDays,
		&a.CurrentBalance, &a.HighWaterMark, &a.CurrentDrawdown, &a.DrawdownThreshold,
		&a.DayStartBalance, &a.DailyLossLimitHit, &a.TradingDay, &a.LastTradedDay,
		&a.TradingDays, &a.ProfitTargetReached, &a.ResetCount, &a.Created)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

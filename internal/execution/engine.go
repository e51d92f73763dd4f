package execution

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"propTradeSim/internal/domain"
	"propTradeSim/internal/ports"
)

// TickEvent is the engine's view of one market data tick. Seq is the
// per-symbol tick sequence number used to deduplicate re-delivered
// ticks: evaluating the same sequence twice never produces two fills.
type TickEvent struct {
	Symbol string
	Seq    uint64
	Price  float64
	Time   time.Time
}

// SubmitResult carries everything a caller needs after a submission
// attempt. Validation failures are data, not errors: Order is nil and
// Validation lists the violations. Market orders may carry immediate
// executions.
type SubmitResult struct {
	Order      *domain.Order
	Validation domain.ValidationResult
	Executions []domain.Execution
}

// Config holds the execution engine's dependencies.
type Config struct {
	Prices ports.PriceSource
	Gate   ports.AccountGate
	Logger ports.Logger
	Clock  func() time.Time
}

// Engine owns every non-terminal order in the simulation. Orders are
// grouped into per-account books; all mutation of an account's orders
// happens under that account's lock, so no two fills for one account
// are ever computed concurrently while different accounts proceed in
// parallel.
type Engine struct {
	prices ports.PriceSource
	gate   ports.AccountGate
	logger ports.Logger
	clock  func() time.Time

	mu      sync.Mutex
	books   map[string]*accountBook // by account ID
	index   map[string]string       // order ID -> account ID
	lastSeq map[string]uint64       // per-symbol last evaluated tick sequence
}

// accountBook serializes order mutation for one account.
type accountBook struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

// NewEngine creates an execution engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Prices == nil || cfg.Gate == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for execution engine")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		prices:  cfg.Prices,
		gate:    cfg.Gate,
		logger:  cfg.Logger,
		clock:   clock,
		books:   make(map[string]*accountBook),
		index:   make(map[string]string),
		lastSeq: make(map[string]uint64),
	}, nil
}

// Submit validates and accepts a new order. Shape and rule violations
// are reported through the validation result; the error return is for
// transport-level failures such as an unknown symbol.
func (e *Engine) Submit(ctx context.Context, req domain.OrderRequest) (SubmitResult, error) {
	req = req.Normalize()
	if vr := validateRequest(req); !vr.Valid {
		return SubmitResult{Validation: vr}, nil
	}
	if vr := e.gate.CanSubmit(req.AccountID); !vr.Valid {
		e.logger.Info(ctx, "Order refused by account gate", map[string]interface{}{
			"accountID": req.AccountID,
			"symbol":    req.Symbol,
		})
		return SubmitResult{Validation: vr}, nil
	}

	price, err := e.prices.LastPrice(req.Symbol)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit for %q: %w", req.Symbol, err)
	}

	now := e.clock()
	order := newOrder(req, price, now)

	book := e.book(req.AccountID)
	book.mu.Lock()
	defer book.mu.Unlock()

	order.Status = domain.StatusSubmitted

	var execs []domain.Execution
	if order.Type == domain.Market {
		// Market orders fill immediately in full at the current tick
		// price; they never rest.
		execs = append(execs, e.fillLocked(order, price, order.RemainingQuantity, now))
	} else {
		order.Status = domain.StatusWorking
		// A marketable resting order (e.g. a buy limit above the
		// market) triggers against the current price right away.
		if triggered(order, price) {
			execs = append(execs, e.fillLocked(order, price, order.RemainingQuantity, now))
		} else if order.TimeInForce == domain.IOC {
			// IOC must not leave a residual resting order.
			order.Status = domain.StatusCancelled
			order.UpdatedAt = now
		}
	}

	book.orders[order.ID] = order

	e.mu.Lock()
	e.index[order.ID] = order.AccountID
	e.mu.Unlock()

	e.logger.Info(ctx, "Order accepted", map[string]interface{}{
		"orderID":   order.ID,
		"accountID": order.AccountID,
		"symbol":    order.Symbol,
		"type":      order.Type,
		"side":      order.Side,
		"quantity":  order.Quantity,
		"status":    order.Status,
	})

	return SubmitResult{
		Order:      order.Clone(),
		Validation: domain.OK(),
		Executions: execs,
	}, nil
}

// EvaluateTick evaluates every working order of the ticked symbol and
// returns the fills produced. Orders are processed FIFO by submission
// time across each account so fills stay deterministic. Re-delivering
// a tick sequence that was already evaluated is a no-op.
func (e *Engine) EvaluateTick(ctx context.Context, tick TickEvent) []domain.Execution {
	e.mu.Lock()
	if tick.Seq != 0 && tick.Seq <= e.lastSeq[tick.Symbol] {
		e.mu.Unlock()
		e.logger.Debug(ctx, "Skipping already evaluated tick", map[string]interface{}{
			"symbol": tick.Symbol,
			"seq":    tick.Seq,
		})
		return nil
	}
	if tick.Seq != 0 {
		e.lastSeq[tick.Symbol] = tick.Seq
	}
	accountIDs := make([]string, 0, len(e.books))
	for id := range e.books {
		accountIDs = append(accountIDs, id)
	}
	e.mu.Unlock()
	// Accounts are walked in ID order; FIFO by submission time holds
	// within each account. Cross-account order is unobservable: books
	// are independent and every fill prices at the same tick.
	sort.Strings(accountIDs)

	var fills []domain.Execution
	for _, accountID := range accountIDs {
		fills = append(fills, e.evaluateAccount(accountID, tick)...)
	}
	return fills
}

// evaluateAccount runs trigger evaluation for one account's working
// orders of the ticked symbol, under the account's lock.
func (e *Engine) evaluateAccount(accountID string, tick TickEvent) []domain.Execution {
	book := e.book(accountID)
	book.mu.Lock()
	defer book.mu.Unlock()

	working := make([]*domain.Order, 0, 4)
	for _, o := range book.orders {
		if o.Symbol == tick.Symbol && o.IsWorking() {
			working = append(working, o)
		}
	}
	// FIFO by original submission time keeps fills deterministic and
	// auditable when several orders trigger on the same tick.
	sort.Slice(working, func(i, j int) bool {
		if working[i].CreatedAt.Equal(working[j].CreatedAt) {
			return working[i].ID < working[j].ID
		}
		return working[i].CreatedAt.Before(working[j].CreatedAt)
	})

	var fills []domain.Execution
	for _, o := range working {
		if triggered(o, tick.Price) {
			fills = append(fills, e.fillLocked(o, tick.Price, o.RemainingQuantity, tick.Time))
		}
	}
	return fills
}

// fillLocked applies a fill to an order. Status and remaining quantity
// change together, under the owning account's lock. The synthetic
// market carries no depth, so every caller today fills the full
// remainder; the partial leg exists for a liquidity-capped feed.
func (e *Engine) fillLocked(o *domain.Order, price float64, quantity int64, at time.Time) domain.Execution {
	if quantity > o.RemainingQuantity {
		quantity = o.RemainingQuantity
	}
	o.RemainingQuantity -= quantity
	if o.RemainingQuantity == 0 {
		o.Status = domain.StatusFilled
	} else {
		o.Status = domain.StatusPartial
	}
	o.UpdatedAt = at

	return domain.Execution{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		AccountID: o.AccountID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Price:     price,
		Quantity:  quantity,
		Timestamp: at,
	}
}

// Cancel cancels an order. Permitted only while the order is pending,
// submitted or working; otherwise ErrInvalidState.
func (e *Engine) Cancel(ctx context.Context, orderID string) error {
	book, order, err := e.lookup(orderID)
	if err != nil {
		return err
	}
	book.mu.Lock()
	defer book.mu.Unlock()

	if !order.CanCancel() {
		return fmt.Errorf("cancel order %s in status %q: %w", orderID, order.Status, ports.ErrInvalidState)
	}
	order.Status = domain.StatusCancelled
	order.UpdatedAt = e.clock()
	e.logger.Info(ctx, "Order cancelled", map[string]interface{}{"orderID": orderID})
	return nil
}

// Modify replaces the price/quantity fields of a resting order.
// Permitted only while the order is pending, submitted or working.
func (e *Engine) Modify(ctx context.Context, orderID string, req domain.ModifyRequest) (*domain.Order, error) {
	book, order, err := e.lookup(orderID)
	if err != nil {
		return nil, err
	}
	book.mu.Lock()
	defer book.mu.Unlock()

	if !order.CanModify() {
		return nil, fmt.Errorf("modify order %s in status %q: %w", orderID, order.Status, ports.ErrInvalidState)
	}

	if req.LimitPrice != nil {
		if order.Limit == nil {
			return nil, fmt.Errorf("order %s has no limit price: %w", orderID, ports.ErrInvalidRequest)
		}
		order.Limit.Price = *req.LimitPrice
	}
	if req.StopPrice != nil {
		if order.Stop == nil {
			return nil, fmt.Errorf("order %s has no stop price: %w", orderID, ports.ErrInvalidRequest)
		}
		order.Stop.Price = *req.StopPrice
	}
	if req.Quantity != nil {
		filled := order.FilledQuantity()
		if *req.Quantity <= filled {
			return nil, fmt.Errorf("order %s quantity %d not above filled %d: %w",
				orderID, *req.Quantity, filled, ports.ErrInvalidRequest)
		}
		order.Quantity = *req.Quantity
		order.RemainingQuantity = *req.Quantity - filled
	}
	order.UpdatedAt = e.clock()

	e.logger.Info(ctx, "Order modified", map[string]interface{}{"orderID": orderID})
	return order.Clone(), nil
}

// CancelAllForAccount cancels every non-terminal order of an account
// and returns the IDs cancelled. Used when a risk breach fails the
// account.
func (e *Engine) CancelAllForAccount(ctx context.Context, accountID string) []string {
	book := e.book(accountID)
	book.mu.Lock()
	defer book.mu.Unlock()

	now := e.clock()
	var cancelled []string
	for _, o := range book.orders {
		if !o.Status.IsTerminal() {
			o.Status = domain.StatusCancelled
			o.UpdatedAt = now
			cancelled = append(cancelled, o.ID)
		}
	}
	if len(cancelled) > 0 {
		e.logger.Warn(ctx, "Cancelled all orders for account", map[string]interface{}{
			"accountID": accountID,
			"count":     len(cancelled),
		})
	}
	return cancelled
}

// ExpireDayOrders cancels every working day-TIF order. Invoked at the
// trading day boundary.
func (e *Engine) ExpireDayOrders(ctx context.Context) int {
	e.mu.Lock()
	accountIDs := make([]string, 0, len(e.books))
	for id := range e.books {
		accountIDs = append(accountIDs, id)
	}
	e.mu.Unlock()

	now := e.clock()
	expired := 0
	for _, accountID := range accountIDs {
		book := e.book(accountID)
		book.mu.Lock()
		for _, o := range book.orders {
			if o.IsWorking() && o.TimeInForce == domain.Day {
				o.Status = domain.StatusCancelled
				o.UpdatedAt = now
				expired++
			}
		}
		book.mu.Unlock()
	}
	if expired > 0 {
		e.logger.Info(ctx, "Expired day orders at session rollover", map[string]interface{}{"count": expired})
	}
	return expired
}

// Order returns a copy of an order by ID.
func (e *Engine) Order(orderID string) (*domain.Order, error) {
	book, order, err := e.lookup(orderID)
	if err != nil {
		return nil, err
	}
	book.mu.Lock()
	defer book.mu.Unlock()
	return order.Clone(), nil
}

// OrdersForAccount returns copies of all of an account's orders.
func (e *Engine) OrdersForAccount(accountID string) []*domain.Order {
	book := e.book(accountID)
	book.mu.Lock()
	defer book.mu.Unlock()
	out := make([]*domain.Order, 0, len(book.orders))
	for _, o := range book.orders {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// WorkingOrders returns copies of the account's working orders.
func (e *Engine) WorkingOrders(accountID string) []*domain.Order {
	var out []*domain.Order
	for _, o := range e.OrdersForAccount(accountID) {
		if o.IsWorking() {
			out = append(out, o)
		}
	}
	return out
}

// SymbolsWithWorkingOrders lists the symbols that currently have at
// least one working order, the set the periodic monitor must tick.
func (e *Engine) SymbolsWithWorkingOrders() []string {
	e.mu.Lock()
	accountIDs := make([]string, 0, len(e.books))
	for id := range e.books {
		accountIDs = append(accountIDs, id)
	}
	e.mu.Unlock()

	seen := make(map[string]struct{})
	for _, accountID := range accountIDs {
		book := e.book(accountID)
		book.mu.Lock()
		for _, o := range book.orders {
			if o.IsWorking() {
				seen[o.Symbol] = struct{}{}
			}
		}
		book.mu.Unlock()
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// book returns (creating if needed) the account's order book.
func (e *Engine) book(accountID string) *accountBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[accountID]
	if !ok {
		b = &accountBook{orders: make(map[string]*domain.Order)}
		e.books[accountID] = b
	}
	return b
}

// lookup resolves an order ID to its book and live order.
func (e *Engine) lookup(orderID string) (*accountBook, *domain.Order, error) {
	e.mu.Lock()
	accountID, ok := e.index[orderID]
	if !ok {
		e.mu.Unlock()
		return nil, nil, fmt.Errorf("order %s: %w", orderID, ports.ErrOrderNotFound)
	}
	book := e.books[accountID]
	e.mu.Unlock()

	book.mu.Lock()
	order, ok := book.orders[orderID]
	book.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("order %s: %w", orderID, ports.ErrOrderNotFound)
	}
	return book, order, nil
}

// newOrder folds a flat request into an order with variant payloads.
// The request is assumed validated.
func newOrder(req domain.OrderRequest, lastPrice float64, now time.Time) *domain.Order {
	tif := req.TimeInForce
	if tif == "" {
		tif = domain.Day
	}
	o := &domain.Order{
		ID:                uuid.NewString(),
		AccountID:         req.AccountID,
		Symbol:            req.Symbol,
		Type:              req.Type,
		Side:              req.Side,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		TimeInForce:       tif,
		Status:            domain.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	switch req.Type {
	case domain.Limit:
		o.Limit = &domain.LimitTerms{Price: req.LimitPrice}
	case domain.Stop:
		o.Stop = &domain.StopTerms{Price: req.StopPrice}
	case domain.StopLimit:
		o.Stop = &domain.StopTerms{Price: req.StopPrice}
		o.Limit = &domain.LimitTerms{Price: req.LimitPrice}
	case domain.TrailingStop:
		o.Trail = newTrail(req.Side, req.TrailAmount, lastPrice)
	}
	return o
}

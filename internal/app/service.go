package app

import (
	"context"
	"fmt"
	"time"

	"propTradeSim/internal/domain"
	"propTradeSim/internal/execution"
	"propTradeSim/internal/marketdata"
	"propTradeSim/internal/ports"
	"propTradeSim/internal/position"
	"propTradeSim/internal/risk"
	"propTradeSim/internal/stats"
)

// Repositories bundles the optional persistence collaborators. Any nil
// repository disables that side effect; the in-memory engines remain
// the source of truth either way.
type Repositories struct {
	Orders     ports.OrderRepository
	Executions ports.ExecutionRepository
	Accounts   ports.AccountRepository
}

// Config holds the simulation service's dependencies.
type Config struct {
	Logger          ports.Logger
	Market          *marketdata.Generator
	Engine          *execution.Engine
	Positions       *position.Aggregator
	Risk            *risk.Engine
	Repos           Repositories
	MonitorInterval time.Duration // Cadence of the periodic evaluation loop
	Clock           func() time.Time
}

// Service orchestrates the simulation: it drives the periodic
// tick-then-evaluate loop and funnels every fill, whether produced by
// the monitor or by a submission, through the position aggregator into
// the risk engine. It implements ports.OrderSubmitter so close-position
// flows share the same pipeline.
type Service struct {
	logger    ports.Logger
	market    *marketdata.Generator
	engine    *execution.Engine
	positions *position.Aggregator
	risk      *risk.Engine
	repos     Repositories
	interval  time.Duration
	clock     func() time.Time
}

// NewService creates the simulation service and wires the aggregator's
// close-position path back through it.
func NewService(cfg Config) (*Service, error) {
	if cfg.Logger == nil || cfg.Market == nil || cfg.Engine == nil || cfg.Positions == nil || cfg.Risk == nil {
		return nil, fmt.Errorf("missing required dependencies for simulation service")
	}
	interval := cfg.MonitorInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	s := &Service{
		logger:    cfg.Logger,
		market:    cfg.Market,
		engine:    cfg.Engine,
		positions: cfg.Positions,
		risk:      cfg.Risk,
		repos:     cfg.Repos,
		interval:  interval,
		clock:     clock,
	}
	cfg.Positions.SetSubmitter(s)
	return s, nil
}

// Run drives the periodic monitor until the context is cancelled. A
// cycle in progress always runs to completion; cancellation is only
// observed between cycles.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info(ctx, "Simulation service started", map[string]interface{}{
		"monitorInterval": s.interval.String(),
	})
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Simulation service stopping")
			return nil
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle runs one tick-then-evaluate pass over every symbol that has
// working orders. The monitor may be invoked more or less often than
// its nominal period without correctness loss; only fill latency is
// affected. A failure for one symbol never aborts the others.
func (s *Service) Cycle(ctx context.Context) {
	now := s.clock()

	if s.risk.Rollover(ctx, now) {
		s.engine.ExpireDayOrders(ctx)
		s.persistAccounts(ctx)
	}

	for _, symbol := range s.engine.SymbolsWithWorkingOrders() {
		tick, err := s.market.Tick(ctx, symbol)
		if err != nil {
			s.logger.Error(ctx, err, "Tick failed; skipping symbol", map[string]interface{}{"symbol": symbol})
			continue
		}
		fills := s.engine.EvaluateTick(ctx, execution.TickEvent{
			Symbol: tick.Symbol,
			Seq:    tick.Seq,
			Price:  tick.Price,
			Time:   tick.Time,
		})
		s.applyFills(ctx, fills)
	}
}

// SubmitOrder implements ports.OrderSubmitter. Immediate executions
// (market orders, marketable resting orders) flow through the fill
// pipeline before the call returns.
func (s *Service) SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, domain.ValidationResult, error) {
	res, err := s.engine.Submit(ctx, req)
	if err != nil {
		return nil, res.Validation, err
	}
	if res.Order != nil {
		s.persistOrder(ctx, res.Order)
	}
	s.applyFills(ctx, res.Executions)
	return res.Order, res.Validation, nil
}

// CancelOrder cancels a resting order.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	if err := s.engine.Cancel(ctx, orderID); err != nil {
		return err
	}
	if order, err := s.engine.Order(orderID); err == nil {
		s.persistOrder(ctx, order)
	}
	return nil
}

// ModifyOrder replaces price/quantity fields of a resting order.
func (s *Service) ModifyOrder(ctx context.Context, orderID string, req domain.ModifyRequest) (*domain.Order, error) {
	order, err := s.engine.Modify(ctx, orderID, req)
	if err != nil {
		return nil, err
	}
	s.persistOrder(ctx, order)
	return order, nil
}

// ClosePosition flattens the account's position in a symbol with a
// market IOC order.
func (s *Service) ClosePosition(ctx context.Context, accountID, symbol string) (*domain.Order, domain.ValidationResult, error) {
	return s.positions.ClosePosition(ctx, accountID, symbol)
}

// TickSymbol advances a symbol's synthetic price by one trade and
// evaluates working orders against the new price. This is the manual
// counterpart of one monitor cycle step.
func (s *Service) TickSymbol(ctx context.Context, symbol string) (marketdata.Tick, error) {
	tick, err := s.market.Tick(ctx, symbol)
	if err != nil {
		return marketdata.Tick{}, err
	}
	fills := s.engine.EvaluateTick(ctx, execution.TickEvent{
		Symbol: tick.Symbol,
		Seq:    tick.Seq,
		Price:  tick.Price,
		Time:   tick.Time,
	})
	s.applyFills(ctx, fills)
	return tick, nil
}

// OpenAccount registers a new evaluation account.
func (s *Service) OpenAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	acct, err := s.risk.OpenAccount(ctx, accountID, s.clock())
	if err != nil {
		return nil, err
	}
	s.persistAccount(ctx, acct)
	return acct, nil
}

// Account returns the account's current risk state.
func (s *Service) Account(accountID string) (*domain.Account, error) {
	return s.risk.Account(accountID)
}

// AdvanceAccount moves a passed account to its next phase.
func (s *Service) AdvanceAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	acct, err := s.risk.Advance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.persistAccount(ctx, acct)
	return acct, nil
}

// ResetAccount restores the account's risk state after a new funding
// event.
func (s *Service) ResetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	acct, err := s.risk.Reset(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.persistAccount(ctx, acct)
	return acct, nil
}

// OpenPositions returns the account's open positions valued at current
// prices.
func (s *Service) OpenPositions(accountID string) ([]domain.Position, error) {
	return s.positions.OpenPositions(accountID)
}

// Orders returns the account's orders, oldest first.
func (s *Service) Orders(accountID string) []*domain.Order {
	return s.engine.OrdersForAccount(accountID)
}

// Performance computes trade statistics over the account's closed
// trades.
func (s *Service) Performance(accountID string) stats.PerformanceMetrics {
	return stats.Analyze(s.positions.ClosedTrades(accountID))
}

// HistoricalCandles returns up to count frozen candles for a symbol.
func (s *Service) HistoricalCandles(symbol string, count int) ([]domain.Candle, error) {
	return s.market.HistoricalCandles(symbol, count)
}

// CurrentPrice returns the symbol's last synthetic trade price.
func (s *Service) CurrentPrice(symbol string) (float64, error) {
	return s.market.LastPrice(symbol)
}

// applyFills runs the fill pipeline: position aggregation, then the
// risk state machine, then the reactions its decision demands. An
// error for one fill is logged and does not block the rest.
func (s *Service) applyFills(ctx context.Context, fills []domain.Execution) {
	for _, fill := range fills {
		s.persistExecution(ctx, &fill)
		if order, err := s.engine.Order(fill.OrderID); err == nil {
			s.persistOrder(ctx, order)
		}

		realized, err := s.positions.Apply(ctx, fill)
		if err != nil {
			s.logger.Error(ctx, err, "Failed to apply fill to position", map[string]interface{}{
				"executionID": fill.ID,
				"accountID":   fill.AccountID,
			})
			continue
		}

		decision, err := s.risk.ApplyFill(ctx, fill.AccountID, realized, fill.Timestamp)
		if err != nil {
			s.logger.Error(ctx, err, "Failed to apply fill to risk state", map[string]interface{}{
				"executionID": fill.ID,
				"accountID":   fill.AccountID,
			})
			continue
		}

		if decision.Failed {
			cancelled := s.engine.CancelAllForAccount(ctx, fill.AccountID)
			s.logger.Warn(ctx, "Account failed; working orders cancelled", map[string]interface{}{
				"accountID": fill.AccountID,
				"cancelled": len(cancelled),
			})
			for _, id := range cancelled {
				if order, err := s.engine.Order(id); err == nil {
					s.persistOrder(ctx, order)
				}
			}
		}
		if decision.Passed {
			s.logger.Info(ctx, "Account passed evaluation", map[string]interface{}{"accountID": fill.AccountID})
		}

		if acct, err := s.risk.Account(fill.AccountID); err == nil {
			s.persistAccount(ctx, acct)
		}
	}
}

// Persistence is a post-transition side effect: a storage failure is
// logged, never propagated back into the engines.

func (s *Service) persistOrder(ctx context.Context, order *domain.Order) {
	if s.repos.Orders == nil {
		return
	}
	if err := s.repos.Orders.SaveOrder(ctx, order); err != nil {
		s.logger.Error(ctx, err, "Failed to persist order", map[string]interface{}{"orderID": order.ID})
	}
}

func (s *Service) persistExecution(ctx context.Context, exec *domain.Execution) {
	if s.repos.Executions == nil {
		return
	}
	if err := s.repos.Executions.SaveExecution(ctx, exec); err != nil {
		s.logger.Error(ctx, err, "Failed to persist execution", map[string]interface{}{"executionID": exec.ID})
	}
}

func (s *Service) persistAccount(ctx context.Context, acct *domain.Account) {
	if s.repos.Accounts == nil {
		return
	}
	if err := s.repos.Accounts.SaveAccount(ctx, acct); err != nil {
		s.logger.Error(ctx, err, "Failed to persist account", map[string]interface{}{"accountID": acct.ID})
	}
}

func (s *Service) persistAccounts(ctx context.Context) {
	for _, acct := range s.risk.Accounts() {
		s.persistAccount(ctx, acct)
	}
}

package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propTradeSim/internal/domain"
	"propTradeSim/internal/execution"
	"propTradeSim/internal/marketdata"
	"propTradeSim/internal/ports"
	"propTradeSim/internal/position"
	"propTradeSim/internal/risk"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// testClock hands out strictly increasing times and supports jumping
// forward to cross a day boundary.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testStack is a fully wired in-memory simulation with no persistence.
type testStack struct {
	service *Service
	risk    *risk.Engine
	clock   *testClock
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	logger := &mockLogger{}
	clock := newClock()

	market, err := marketdata.NewGenerator(marketdata.Config{
		Contracts: []domain.Contract{{
			Symbol:     "MES",
			TickSize:   0.25,
			PointValue: 5.0,
			BasePrice:  5000.0,
			Volatility: 2,
		}},
		Seed:   42,
		Logger: logger,
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	riskEngine, err := risk.NewEngine(risk.Config{
		Plan: domain.RiskPlan{
			InitialBalance:    50000,
			MaxDrawdown:       2500,
			DailyLossLimitPct: 0.02,
			ProfitTarget:      3000,
			MinTradingDays:    5,
		},
		DayBoundary: time.UTC,
		Logger:      logger,
	})
	require.NoError(t, err)

	engine, err := execution.NewEngine(execution.Config{
		Prices: market,
		Gate:   riskEngine,
		Logger: logger,
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	positions, err := position.NewAggregator(market, logger)
	require.NoError(t, err)

	service, err := NewService(Config{
		Logger:    logger,
		Market:    market,
		Engine:    engine,
		Positions: positions,
		Risk:      riskEngine,
		Clock:     clock.Now,
	})
	require.NoError(t, err)

	return &testStack{service: service, risk: riskEngine, clock: clock}
}

func marketOrder(side domain.OrderSide, qty int64) domain.OrderRequest {
	return domain.OrderRequest{
		AccountID: "acct",
		Symbol:    "MES",
		Type:      domain.Market,
		Side:      side,
		Quantity:  qty,
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(Config{Logger: &mockLogger{}})
	assert.Error(t, err)
}

func TestSubmitOrderValidationRefusal(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	req := marketOrder(domain.Buy, 0)
	order, vr, err := stack.service.SubmitOrder(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, order)
	assert.False(t, vr.Valid)
}

func TestSubmitOrderRefusedForUnknownAccount(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	order, vr, err := stack.service.SubmitOrder(ctx, marketOrder(domain.Buy, 1))
	require.NoError(t, err)
	assert.Nil(t, order)
	require.False(t, vr.Valid)
	require.Len(t, vr.Violations, 1)
	assert.Equal(t, domain.ViolationUnknownAccount, vr.Violations[0].Code)
}

func TestMarketOrderOpensPositionAndMarksTradingDay(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	_, err := stack.service.OpenAccount(ctx, "acct")
	require.NoError(t, err)

	price, err := stack.service.CurrentPrice("MES")
	require.NoError(t, err)

	order, vr, err := stack.service.SubmitOrder(ctx, marketOrder(domain.Buy, 2))
	require.NoError(t, err)
	require.True(t, vr.Valid)
	require.NotNil(t, order)
	assert.Equal(t, domain.StatusFilled, order.Status)

	open, err := stack.service.OpenPositions("acct")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, int64(2), open[0].Quantity)
	assert.Equal(t, price, open[0].AvgEntryPrice)

	// Opening a position realizes nothing but counts as a trading day.
	acct, err := stack.service.Account("acct")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, acct.CurrentBalance)
	assert.Equal(t, 1, acct.TradingDays)
}

func TestCloseRoundTripRealizesPNL(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	_, err := stack.service.OpenAccount(ctx, "acct")
	require.NoError(t, err)

	entry, err := stack.service.CurrentPrice("MES")
	require.NoError(t, err)
	_, vr, err := stack.service.SubmitOrder(ctx, marketOrder(domain.Buy, 2))
	require.NoError(t, err)
	require.True(t, vr.Valid)

	for i := 0; i < 10; i++ {
		_, err := stack.service.TickSymbol(ctx, "MES")
		require.NoError(t, err)
	}
	exit, err := stack.service.CurrentPrice("MES")
	require.NoError(t, err)

	order, vr, err := stack.service.ClosePosition(ctx, "acct", "MES")
	require.NoError(t, err)
	require.True(t, vr.Valid)
	require.NotNil(t, order)
	assert.Equal(t, domain.StatusFilled, order.Status)
	assert.Equal(t, domain.Sell, order.Side)

	open, err := stack.service.OpenPositions("acct")
	require.NoError(t, err)
	assert.Empty(t, open)

	// Both directions of the walk are possible; the balance must match
	// the realized arithmetic either way.
	want := 50000.0 + (exit-entry)*2*5.0
	acct, err := stack.service.Account("acct")
	require.NoError(t, err)
	assert.InDelta(t, want, acct.CurrentBalance, 1e-9)

	metrics := stack.service.Performance("acct")
	assert.Equal(t, 1, metrics.TotalTrades)
	assert.InDelta(t, (exit-entry)*2*5.0, metrics.NetProfit, 1e-9)
}

func TestClosePositionWhenFlat(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	_, err := stack.service.OpenAccount(ctx, "acct")
	require.NoError(t, err)

	_, _, err = stack.service.ClosePosition(ctx, "acct", "MES")
	assert.True(t, errors.Is(err, ports.ErrNoOpenPosition))
}

func TestAccountFailureCancelsWorkingOrders(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	_, err := stack.service.OpenAccount(ctx, "acct")
	require.NoError(t, err)

	price, err := stack.service.CurrentPrice("MES")
	require.NoError(t, err)

	// A resting buy far below the market stays working.
	resting, vr, err := stack.service.SubmitOrder(ctx, domain.OrderRequest{
		AccountID:  "acct",
		Symbol:     "MES",
		Type:       domain.Limit,
		Side:       domain.Buy,
		Quantity:   1,
		LimitPrice: price - 500,
	})
	require.NoError(t, err)
	require.True(t, vr.Valid)
	require.Equal(t, domain.StatusWorking, resting.Status)

	// Put the account on the brink: its balance already sits at the
	// drawdown threshold, so the next fill fails it.
	acct, err := stack.service.Account("acct")
	require.NoError(t, err)
	acct.DrawdownThreshold = acct.CurrentBalance
	stack.risk.Restore(acct)

	_, vr, err = stack.service.SubmitOrder(ctx, marketOrder(domain.Buy, 1))
	require.NoError(t, err)
	require.True(t, vr.Valid)

	failed, err := stack.service.Account("acct")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountFailed, failed.Status)

	orders := stack.service.Orders("acct")
	for _, o := range orders {
		if o.ID == resting.ID {
			assert.Equal(t, domain.StatusCancelled, o.Status)
		}
	}

	// The gate refuses the failed account from then on.
	_, vr, err = stack.service.SubmitOrder(ctx, marketOrder(domain.Buy, 1))
	require.NoError(t, err)
	require.False(t, vr.Valid)
	require.Len(t, vr.Violations, 1)
	assert.Equal(t, domain.ViolationAccountFailed, vr.Violations[0].Code)
}

func TestTickSymbolAdvancesSequence(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	first, err := stack.service.TickSymbol(ctx, "MES")
	require.NoError(t, err)
	second, err := stack.service.TickSymbol(ctx, "MES")
	require.NoError(t, err)

	assert.Equal(t, "MES", second.Symbol)
	assert.Greater(t, second.Seq, first.Seq)

	price, err := stack.service.CurrentPrice("MES")
	require.NoError(t, err)
	assert.Equal(t, second.Price, price)
}

func TestTickSymbolUnknown(t *testing.T) {
	stack := newTestStack(t)

	_, err := stack.service.TickSymbol(context.Background(), "ES")
	assert.True(t, errors.Is(err, ports.ErrUnknownSymbol))
}

func TestCycleExpiresDayOrdersOnRollover(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	_, err := stack.service.OpenAccount(ctx, "acct")
	require.NoError(t, err)

	price, err := stack.service.CurrentPrice("MES")
	require.NoError(t, err)
	resting, vr, err := stack.service.SubmitOrder(ctx, domain.OrderRequest{
		AccountID:   "acct",
		Symbol:      "MES",
		Type:        domain.Limit,
		Side:        domain.Buy,
		Quantity:    1,
		LimitPrice:  price - 500,
		TimeInForce: domain.Day,
	})
	require.NoError(t, err)
	require.True(t, vr.Valid)
	require.Equal(t, domain.StatusWorking, resting.Status)

	// Same day: the order survives the cycle.
	stack.service.Cycle(ctx)
	got := findOrder(t, stack.service.Orders("acct"), resting.ID)
	assert.Equal(t, domain.StatusWorking, got.Status)

	stack.clock.Advance(24 * time.Hour)
	stack.service.Cycle(ctx)

	got = findOrder(t, stack.service.Orders("acct"), resting.ID)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	acct, err := stack.service.Account("acct")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", acct.TradingDay)
}

func findOrder(t *testing.T, orders []*domain.Order, id string) *domain.Order {
	t.Helper()
	for _, o := range orders {
		if o.ID == id {
			return o
		}
	}
	t.Fatalf("order %s not found", id)
	return nil
}

func TestAdvanceAccountBeforePass(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	_, err := stack.service.OpenAccount(ctx, "acct")
	require.NoError(t, err)

	_, err = stack.service.AdvanceAccount(ctx, "acct")
	assert.True(t, errors.Is(err, ports.ErrInvalidState))
}

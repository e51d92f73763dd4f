package position

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propTradeSim/internal/domain"
	"propTradeSim/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockPrices serves the MES micro contract at a settable price.
type mockPrices struct {
	price float64
}

func (m *mockPrices) LastPrice(symbol string) (float64, error) {
	if symbol != "MES" {
		return 0, fmt.Errorf("symbol %q: %w", symbol, ports.ErrUnknownSymbol)
	}
	return m.price, nil
}

func (m *mockPrices) Contract(symbol string) (domain.Contract, error) {
	if symbol != "MES" {
		return domain.Contract{}, fmt.Errorf("symbol %q: %w", symbol, ports.ErrUnknownSymbol)
	}
	return domain.Contract{Symbol: "MES", TickSize: 0.25, PointValue: 5}, nil
}

// mockSubmitter records close-position order requests.
type mockSubmitter struct {
	requests []domain.OrderRequest
}

func (m *mockSubmitter) SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, domain.ValidationResult, error) {
	m.requests = append(m.requests, req)
	return &domain.Order{ID: "close-order", AccountID: req.AccountID, Symbol: req.Symbol}, domain.OK(), nil
}

func fill(side domain.OrderSide, qty int64, price float64, at time.Time) domain.Execution {
	return domain.Execution{
		ID:        fmt.Sprintf("exec-%s-%d-%f", side, qty, price),
		OrderID:   "order-1",
		AccountID: "a1",
		Symbol:    "MES",
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Timestamp: at,
	}
}

func newTestAggregator(t *testing.T, prices *mockPrices) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(prices, &mockLogger{})
	require.NoError(t, err)
	return agg
}

func TestOpenAndAddComputesVWAP(t *testing.T) {
	prices := &mockPrices{price: 5001.0}
	agg := newTestAggregator(t, prices)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	realized, err := agg.Apply(ctx, fill(domain.Buy, 2, 5000.0, at))
	require.NoError(t, err)
	assert.Zero(t, realized)

	realized, err = agg.Apply(ctx, fill(domain.Buy, 2, 5002.0, at.Add(time.Minute)))
	require.NoError(t, err)
	assert.Zero(t, realized)

	pos, err := agg.Position("a1", "MES")
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos.Quantity)
	assert.Equal(t, 5001.0, pos.AvgEntryPrice)
	// Marked at 5001: +1pt on two contracts, -1pt on the other two.
	assert.Equal(t, 0.0, pos.UnrealizedPNL)
	assert.Equal(t, at, pos.OpenedAt)
}

func TestFIFOPartialClose(t *testing.T) {
	prices := &mockPrices{price: 5003.0}
	agg := newTestAggregator(t, prices)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	_, err := agg.Apply(ctx, fill(domain.Buy, 2, 5000.0, at))
	require.NoError(t, err)
	_, err = agg.Apply(ctx, fill(domain.Buy, 3, 5002.0, at.Add(time.Minute)))
	require.NoError(t, err)

	// Selling 4 consumes the oldest lot (2 @ 5000) then part of the
	// next (2 of 3 @ 5002).
	realized, err := agg.Apply(ctx, fill(domain.Sell, 4, 5003.0, at.Add(2*time.Minute)))
	require.NoError(t, err)
	// (5003-5000)*2*5 + (5003-5002)*2*5
	assert.Equal(t, 40.0, realized)

	pos, err := agg.Position("a1", "MES")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos.Quantity)
	assert.Equal(t, 5002.0, pos.AvgEntryPrice)
	assert.Equal(t, 40.0, pos.RealizedPNL)
}

func TestCloseToFlat(t *testing.T) {
	prices := &mockPrices{price: 4990.0}
	agg := newTestAggregator(t, prices)
	ctx := context.Background()
	at := time.Now()

	_, err := agg.Apply(ctx, fill(domain.Buy, 3, 5000.0, at))
	require.NoError(t, err)
	realized, err := agg.Apply(ctx, fill(domain.Sell, 3, 4990.0, at.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, -150.0, realized) // (4990-5000)*3*5

	pos, err := agg.Position("a1", "MES")
	require.NoError(t, err)
	assert.True(t, pos.IsFlat())
	assert.Equal(t, -150.0, pos.RealizedPNL)
	assert.Zero(t, pos.UnrealizedPNL)
}

func TestFlipThroughFlat(t *testing.T) {
	prices := &mockPrices{price: 5005.0}
	agg := newTestAggregator(t, prices)
	ctx := context.Background()
	at := time.Now()

	_, err := agg.Apply(ctx, fill(domain.Buy, 2, 5000.0, at))
	require.NoError(t, err)

	// Selling 5 closes the long 2 and opens a short 3 at 5005.
	realized, err := agg.Apply(ctx, fill(domain.Sell, 5, 5005.0, at.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 50.0, realized) // (5005-5000)*2*5

	pos, err := agg.Position("a1", "MES")
	require.NoError(t, err)
	assert.True(t, pos.IsShort())
	assert.Equal(t, int64(-3), pos.Quantity)
	assert.Equal(t, 5005.0, pos.AvgEntryPrice)
}

func TestShortUnrealizedSign(t *testing.T) {
	prices := &mockPrices{price: 5010.0}
	agg := newTestAggregator(t, prices)
	ctx := context.Background()

	_, err := agg.Apply(ctx, fill(domain.Sell, 2, 5000.0, time.Now()))
	require.NoError(t, err)

	// Price moved against the short by 10 points.
	pos, err := agg.Position("a1", "MES")
	require.NoError(t, err)
	assert.Equal(t, -100.0, pos.UnrealizedPNL) // (5010-5000)*(-2)*5

	// And in its favor.
	prices.price = 4995.0
	pos, err = agg.Position("a1", "MES")
	require.NoError(t, err)
	assert.Equal(t, 50.0, pos.UnrealizedPNL)
}

func TestShortCoverRealized(t *testing.T) {
	prices := &mockPrices{price: 4990.0}
	agg := newTestAggregator(t, prices)
	ctx := context.Background()
	at := time.Now()

	_, err := agg.Apply(ctx, fill(domain.Sell, 3, 5000.0, at))
	require.NoError(t, err)
	realized, err := agg.Apply(ctx, fill(domain.Buy, 3, 4990.0, at.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 150.0, realized) // short entry 5000, cover 4990
}

func TestOpenPositionsSkipsFlat(t *testing.T) {
	prices := &mockPrices{price: 5000.0}
	agg := newTestAggregator(t, prices)
	ctx := context.Background()
	at := time.Now()

	_, err := agg.Apply(ctx, fill(domain.Buy, 1, 5000.0, at))
	require.NoError(t, err)
	_, err = agg.Apply(ctx, fill(domain.Sell, 1, 5000.0, at.Add(time.Second)))
	require.NoError(t, err)

	positions, err := agg.OpenPositions("a1")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestClosePositionSubmitsOppositeIOC(t *testing.T) {
	prices := &mockPrices{price: 5000.0}
	agg := newTestAggregator(t, prices)
	submitter := &mockSubmitter{}
	agg.SetSubmitter(submitter)
	ctx := context.Background()

	_, err := agg.Apply(ctx, fill(domain.Buy, 4, 5000.0, time.Now()))
	require.NoError(t, err)

	order, validation, err := agg.ClosePosition(ctx, "a1", "MES")
	require.NoError(t, err)
	assert.True(t, validation.Valid)
	require.NotNil(t, order)

	require.Len(t, submitter.requests, 1)
	req := submitter.requests[0]
	assert.Equal(t, domain.Market, req.Type)
	assert.Equal(t, domain.Sell, req.Side)
	assert.Equal(t, int64(4), req.Quantity)
	assert.Equal(t, domain.IOC, req.TimeInForce)
}

func TestClosePositionShortBuysBack(t *testing.T) {
	prices := &mockPrices{price: 5000.0}
	agg := newTestAggregator(t, prices)
	submitter := &mockSubmitter{}
	agg.SetSubmitter(submitter)
	ctx := context.Background()

	_, err := agg.Apply(ctx, fill(domain.Sell, 2, 5000.0, time.Now()))
	require.NoError(t, err)

	_, _, err = agg.ClosePosition(ctx, "a1", "MES")
	require.NoError(t, err)
	require.Len(t, submitter.requests, 1)
	assert.Equal(t, domain.Buy, submitter.requests[0].Side)
	assert.Equal(t, int64(2), submitter.requests[0].Quantity)
}

func TestClosePositionWhenFlat(t *testing.T) {
	agg := newTestAggregator(t, &mockPrices{price: 5000.0})
	agg.SetSubmitter(&mockSubmitter{})

	_, _, err := agg.ClosePosition(context.Background(), "a1", "MES")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrNoOpenPosition))
}

func TestClosedTradesRecorded(t *testing.T) {
	prices := &mockPrices{price: 5002.0}
	agg := newTestAggregator(t, prices)
	ctx := context.Background()
	entry := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	exit := entry.Add(5 * time.Minute)

	_, err := agg.Apply(ctx, fill(domain.Buy, 2, 5000.0, entry))
	require.NoError(t, err)
	_, err = agg.Apply(ctx, fill(domain.Sell, 2, 5002.0, exit))
	require.NoError(t, err)

	trades := agg.ClosedTrades("a1")
	require.Len(t, trades, 1)
	assert.Equal(t, int64(2), trades[0].Quantity)
	assert.Equal(t, 5000.0, trades[0].EntryPrice)
	assert.Equal(t, 5002.0, trades[0].ExitPrice)
	assert.Equal(t, 20.0, trades[0].PNL)
	assert.Equal(t, entry, trades[0].EntryTime)
	assert.Equal(t, exit, trades[0].ExitTime)
}

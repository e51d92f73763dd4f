package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propTradeSim/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleOrder(id string, at time.Time) *domain.Order {
	return &domain.Order{
		ID:                id,
		AccountID:         "a1",
		Symbol:            "MES",
		Type:              domain.StopLimit,
		Side:              domain.Buy,
		Quantity:          3,
		RemainingQuantity: 3,
		TimeInForce:       domain.Day,
		Status:            domain.StatusWorking,
		CreatedAt:         at,
		UpdatedAt:         at,
		Limit:             &domain.LimitTerms{Price: 5001.25},
		Stop:              &domain.StopTerms{Price: 5000.75},
	}
}

func TestOrderRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	order := sampleOrder("o1", at)
	require.NoError(t, repo.SaveOrder(ctx, order))

	got, err := repo.FindOrder(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, order.Type, got.Type)
	assert.Equal(t, order.Status, got.Status)
	require.NotNil(t, got.Limit)
	assert.Equal(t, 5001.25, got.Limit.Price)
	require.NotNil(t, got.Stop)
	assert.Equal(t, 5000.75, got.Stop.Price)
	assert.False(t, got.Stop.Triggered)
	assert.Nil(t, got.Trail)
	assert.True(t, got.CreatedAt.Equal(at))
}

func TestSaveOrderUpsertsLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	order := sampleOrder("o1", at)
	require.NoError(t, repo.SaveOrder(ctx, order))

	// The stop triggers and the order partially fills.
	order.Stop.Triggered = true
	order.RemainingQuantity = 1
	order.Status = domain.StatusPartial
	order.UpdatedAt = at.Add(time.Minute)
	require.NoError(t, repo.SaveOrder(ctx, order))

	got, err := repo.FindOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartial, got.Status)
	assert.Equal(t, int64(1), got.RemainingQuantity)
	assert.True(t, got.Stop.Triggered)
}

func TestTrailingOrderRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Now().UTC()

	order := &domain.Order{
		ID: "o2", AccountID: "a1", Symbol: "MNQ",
		Type: domain.TrailingStop, Side: domain.Sell,
		Quantity: 1, RemainingQuantity: 1,
		TimeInForce: domain.Day, Status: domain.StatusWorking,
		CreatedAt: at, UpdatedAt: at,
		Trail: &domain.TrailTerms{Amount: 25, ExtremePrice: 17510, StopPrice: 17485},
	}
	require.NoError(t, repo.SaveOrder(ctx, order))

	got, err := repo.FindOrder(ctx, "o2")
	require.NoError(t, err)
	require.NotNil(t, got.Trail)
	assert.Equal(t, 25.0, got.Trail.Amount)
	assert.Equal(t, 17510.0, got.Trail.ExtremePrice)
	assert.Equal(t, 17485.0, got.Trail.StopPrice)
	assert.Nil(t, got.Limit)
	assert.Nil(t, got.Stop)
}

func TestFindOrderNotFound(t *testing.T) {
	repo := newTestRepo(t)
	got, err := repo.FindOrder(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindOrdersByAccountOrdered(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	require.NoError(t, repo.SaveOrder(ctx, sampleOrder("o2", at.Add(time.Minute))))
	require.NoError(t, repo.SaveOrder(ctx, sampleOrder("o1", at)))

	orders, err := repo.FindOrdersByAccount(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, "o2", orders[1].ID)

	none, err := repo.FindOrdersByAccount(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExecutionRoundTripAndIdempotence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	exec := &domain.Execution{
		ID: "e1", OrderID: "o1", AccountID: "a1", Symbol: "MES",
		Side: domain.Buy, Price: 5000.25, Quantity: 2, Timestamp: at,
	}
	require.NoError(t, repo.SaveExecution(ctx, exec))
	// Replaying the same execution must not duplicate the row.
	require.NoError(t, repo.SaveExecution(ctx, exec))

	execs, err := repo.FindExecutionsByAccount(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, 5000.25, execs[0].Price)
	assert.Equal(t, int64(2), execs[0].Quantity)
	assert.Equal(t, domain.Buy, execs[0].Side)
}

func TestAccountRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	acct := &domain.Account{
		ID: "a1",
		Plan: domain.RiskPlan{
			InitialBalance:    50000,
			MaxDrawdown:       2500,
			DailyLossLimitPct: 0.02,
			ProfitTarget:      3000,
			MinTradingDays:    5,
		},
		Phase:               domain.PhaseEvaluation1,
		Status:              domain.AccountActive,
		Created:             at,
		CurrentBalance:      50800,
		HighWaterMark:       51000,
		CurrentDrawdown:     200,
		DrawdownThreshold:   48500,
		DayStartBalance:     50500,
		DailyLossLimitHit:   false,
		TradingDay:          "2025-03-10",
		LastTradedDay:       "2025-03-10",
		TradingDays:         3,
		ProfitTargetReached: false,
		ResetCount:          1,
	}
	require.NoError(t, repo.SaveAccount(ctx, acct))

	got, err := repo.FindAccount(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, acct.Plan, got.Plan)
	assert.Equal(t, acct.CurrentBalance, got.CurrentBalance)
	assert.Equal(t, acct.TradingDay, got.TradingDay)
	assert.Equal(t, acct.TradingDays, got.TradingDays)
	assert.Equal(t, acct.ResetCount, got.ResetCount)

	// State advances and the same row is updated in place.
	acct.Status = domain.AccountPassed
	acct.CurrentBalance = 53200
	acct.ProfitTargetReached = true
	require.NoError(t, repo.SaveAccount(ctx, acct))

	got, err = repo.FindAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountPassed, got.Status)
	assert.Equal(t, 53200.0, got.CurrentBalance)
	assert.True(t, got.ProfitTargetReached)

	all, err := repo.FindAllAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFindAccountNotFound(t *testing.T) {
	repo := newTestRepo(t)
	got, err := repo.FindAccount(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"propTradeSim/internal/domain"
)

func trade(pnl float64, exitMinute int) domain.ClosedTrade {
	entry := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC).Add(time.Duration(exitMinute-2) * time.Minute)
	return domain.ClosedTrade{
		AccountID:  "a1",
		Symbol:     "MES",
		Quantity:   1,
		PNL:        pnl,
		EntryTime:  entry,
		ExitTime:   entry.Add(2 * time.Minute),
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	m := Analyze(nil)
	assert.Zero(t, m.TotalTrades)
	assert.Zero(t, m.NetProfit)
	assert.Zero(t, m.WinRate)
}

func TestAnalyzeBasicMetrics(t *testing.T) {
	trades := []domain.ClosedTrade{
		trade(100, 2),
		trade(-50, 4),
		trade(200, 6),
		trade(-50, 8),
	}
	m := Analyze(trades)

	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades)
	assert.Equal(t, 0.5, m.WinRate)
	assert.Equal(t, 200.0, m.NetProfit)
	assert.Equal(t, 300.0, m.GrossProfit)
	assert.Equal(t, 100.0, m.GrossLoss)
	assert.Equal(t, 3.0, m.ProfitFactor)
	assert.Equal(t, 150.0, m.AverageWin)
	assert.Equal(t, 50.0, m.AverageLoss)
	// 0.5*150 - 0.5*50
	assert.Equal(t, 50.0, m.Expectancy)
	assert.Equal(t, 2*time.Minute, m.AverageTradeLength)
}

func TestAnalyzeMaxDrawdownFollowsEquityCurve(t *testing.T) {
	// Equity: +100, +300, +100, -100, +100 -> peak 300, trough -100.
	trades := []domain.ClosedTrade{
		trade(100, 2),
		trade(200, 4),
		trade(-200, 6),
		trade(-200, 8),
		trade(200, 10),
	}
	m := Analyze(trades)
	assert.Equal(t, 400.0, m.MaxDrawdown)
	assert.Equal(t, 100.0, m.NetProfit)
}

func TestAnalyzeSortsByExitTime(t *testing.T) {
	// Same trades delivered out of order must yield the same drawdown.
	trades := []domain.ClosedTrade{
		trade(-200, 8),
		trade(100, 2),
		trade(200, 10),
		trade(200, 4),
		trade(-200, 6),
	}
	m := Analyze(trades)
	assert.Equal(t, 400.0, m.MaxDrawdown)
}

func TestAnalyzeBreakevenCountsAsLoss(t *testing.T) {
	m := Analyze([]domain.ClosedTrade{trade(0, 2)})
	assert.Equal(t, 1, m.LosingTrades)
	assert.Zero(t, m.GrossLoss)
	assert.Zero(t, m.ProfitFactor)
}

package stats

import (
	"sort"
	"time"

	"propTradeSim/internal/domain"
)

// PerformanceMetrics holds trade performance metrics for one account,
// computed over its matched (closed) trades.
type PerformanceMetrics struct {
	TotalTrades        int           `json:"totalTrades"`
	WinningTrades      int           `json:"winningTrades"`
	LosingTrades       int           `json:"losingTrades"`
	WinRate            float64       `json:"winRate"`
	NetProfit          float64       `json:"netProfit"`
	GrossProfit        float64       `json:"grossProfit"`
	GrossLoss          float64       `json:"grossLoss"`
	ProfitFactor       float64       `json:"profitFactor"`
	AverageWin         float64       `json:"averageWin"`
	AverageLoss        float64       `json:"averageLoss"`
	Expectancy         float64       `json:"expectancy"`
	MaxDrawdown        float64       `json:"maxDrawdown"` // Deepest peak-to-trough equity dip, in currency
	AverageTradeLength time.Duration `json:"averageTradeLength"`
}

// Analyze calculates performance metrics from an account's closed
// trades. Trades are processed in exit-time order so the drawdown
// figure follows the realized equity curve.
func Analyze(trades []domain.ClosedTrade) PerformanceMetrics {
	var m PerformanceMetrics
	if len(trades) == 0 {
		return m
	}

	ordered := make([]domain.ClosedTrade, len(trades))
	copy(ordered, trades)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	var equity, peak, maxDip float64
	var totalDuration time.Duration

	for _, t := range ordered {
		m.TotalTrades++
		if t.PNL > 0 {
			m.WinningTrades++
			m.GrossProfit += t.PNL
		} else {
			m.LosingTrades++
			m.GrossLoss += -t.PNL
		}
		m.NetProfit += t.PNL
		totalDuration += t.ExitTime.Sub(t.EntryTime)

		equity += t.PNL
		if equity > peak {
			peak = equity
		}
		if dip := peak - equity; dip > maxDip {
			maxDip = dip
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	if m.WinningTrades > 0 {
		m.AverageWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = m.GrossLoss / float64(m.LosingTrades)
	}
	if m.GrossLoss > 0 {
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	}
	m.Expectancy = m.WinRate*m.AverageWin - (1-m.WinRate)*m.AverageLoss
	m.MaxDrawdown = maxDip
	m.AverageTradeLength = totalDuration / time.Duration(m.TotalTrades)
	return m
}

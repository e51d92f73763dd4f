package marketdata

import "propTradeSim/internal/domain"

// DefaultContracts returns the built-in catalog of micro futures
// contracts the simulator trades. Tick sizes and point values follow
// the CME micro contract specs; base prices are plausible anchors for
// the synthetic series, not live quotes.
func DefaultContracts() []domain.Contract {
	return []domain.Contract{
		{
			Symbol:      "MES",
			Description: "Micro E-mini S&P 500",
			TickSize:    0.25,
			PointValue:  5.0,
			BasePrice:   5000.00,
			Volatility:  2.0,
		},
		{
			Symbol:      "MNQ",
			Description: "Micro E-mini Nasdaq-100",
			TickSize:    0.25,
			PointValue:  2.0,
			BasePrice:   17500.00,
			Volatility:  4.0,
		},
		{
			Symbol:      "MCL",
			Description: "Micro WTI Crude Oil",
			TickSize:    0.01,
			PointValue:  100.0,
			BasePrice:   78.50,
			Volatility:  2.0,
		},
		{
			Symbol:      "MGC",
			Description: "Micro Gold",
			TickSize:    0.10,
			PointValue:  10.0,
			BasePrice:   2350.00,
			Volatility:  1.5,
		},
	}
}

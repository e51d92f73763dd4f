package domain

import "math"

// Contract is the immutable specification of a tradable futures contract.
// All prices quoted for the symbol are multiples of TickSize; PointValue
// converts a one point price move into account currency per contract.
type Contract struct {
	Symbol      string  // Contract symbol (e.g., "MES")
	Description string  // Human readable name
	TickSize    float64 // Minimum price increment
	PointValue  float64 // Currency value of a one point move per contract
	BasePrice   float64 // Anchor price for the synthetic price series
	Volatility  float64 // Typical per-tick move, expressed in ticks
}

// RoundToTick snaps a price to the nearest valid tick increment.
func (c Contract) RoundToTick(price float64) float64 {
	if c.TickSize <= 0 {
		return price
	}
	ticks := math.Round(price / c.TickSize)
	// Re-multiplying can leave float dust (e.g. 97.99999999); round the
	// result to a stable number of decimals derived from the tick size.
	return roundPlaces(ticks*c.TickSize, tickDecimals(c.TickSize))
}

// PNL converts a price delta into currency for a signed quantity.
// A positive quantity is long, negative is short.
func (c Contract) PNL(entryPrice, exitPrice float64, quantity int64) float64 {
	return (exitPrice - entryPrice) * float64(quantity) * c.PointValue
}

// IsTickAligned reports whether price is a multiple of the tick size.
func (c Contract) IsTickAligned(price float64) bool {
	if c.TickSize <= 0 {
		return true
	}
	return c.RoundToTick(price) == roundPlaces(price, tickDecimals(c.TickSize))
}

// tickDecimals returns how many decimal places the tick size occupies.
// The loop runs until the scaled tick is integral, so fractional ticks
// like 0.25 report 2, not 1.
func tickDecimals(tick float64) int {
	decimals := 0
	for math.Abs(tick-math.Round(tick)) > 1e-9 && decimals < 10 {
		tick *= 10
		decimals++
	}
	return decimals
}

func roundPlaces(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}

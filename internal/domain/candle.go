package domain

import "time"

// Candle represents a single OHLCV candlestick for a symbol.
// A forming candle (IsFinal == false) is mutated in place by market data
// ticks until its interval elapses, then frozen and appended to history.
type Candle struct {
	OpenTime  time.Time     // Start time of the interval
	CloseTime time.Time     // End time of the interval
	Symbol    string        // Contract symbol
	Interval  time.Duration // Candle interval (e.g., time.Minute)
	Open      float64       // Opening price
	High      float64       // Highest price
	Low       float64       // Lowest price
	Close     float64       // Latest (or final) price
	Volume    float64       // Accumulated synthetic volume
	IsFinal   bool          // Whether the interval has elapsed and the candle is frozen
}

package marketdata

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"propTradeSim/internal/domain"
	"propTradeSim/internal/ports"
)

const (
	defaultHistoryLimit = 500 // Candles retained per symbol
	// Hard cap on the size of a single synthetic move, in ticks.
	// Keeps lastPrice from teleporting across resting orders.
	maxStepTicks = 4
)

// Tick is one synthetic price update for a symbol. Seq increases by one
// per tick per symbol and lets downstream consumers deduplicate
// re-delivered ticks.
type Tick struct {
	Symbol string
	Seq    uint64
	Price  float64
	Time   time.Time
	Candle domain.Candle // Forming candle after this tick was applied
}

// Config holds configuration for the market data generator.
type Config struct {
	Contracts      []domain.Contract
	CandleInterval time.Duration // Forming candle interval (default 1m)
	HistoryLimit   int           // Max candles retained per symbol
	Seed           int64         // 0 seeds from the clock
	Logger         ports.Logger
	Clock          func() time.Time // Defaults to time.Now
}

// Generator produces a continuous synthetic price series per contract.
// It is the process-wide owner of each symbol's PriceState: the chart
// query path and the order evaluation path both read from it, never
// from a copy.
type Generator struct {
	mu        sync.Mutex
	contracts map[string]domain.Contract
	states    map[string]*priceState
	rng       *rand.Rand
	interval  time.Duration
	limit     int
	clock     func() time.Time
	logger    ports.Logger
}

// priceState is the single authoritative price record for one symbol.
type priceState struct {
	last    float64
	seq     uint64
	current domain.Candle
	history []domain.Candle
}

// NewGenerator creates a generator seeded with the configured contracts.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for market data generator")
	}
	if len(cfg.Contracts) == 0 {
		return nil, fmt.Errorf("at least one contract is required: %w", ports.ErrConfigurationError)
	}
	interval := cfg.CandleInterval
	if interval <= 0 {
		interval = time.Minute
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	g := &Generator{
		contracts: make(map[string]domain.Contract, len(cfg.Contracts)),
		states:    make(map[string]*priceState, len(cfg.Contracts)),
		rng:       rand.New(rand.NewSource(seed)),
		interval:  interval,
		limit:     limit,
		clock:     clock,
		logger:    cfg.Logger,
	}
	for _, c := range cfg.Contracts {
		if c.Symbol == "" || c.TickSize <= 0 || c.BasePrice <= 0 {
			return nil, fmt.Errorf("invalid contract spec for %q: %w", c.Symbol, ports.ErrConfigurationError)
		}
		g.contracts[c.Symbol] = c
	}
	return g, nil
}

// Contract returns the immutable contract spec for a symbol.
func (g *Generator) Contract(symbol string) (domain.Contract, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.contracts[symbol]
	if !ok {
		return domain.Contract{}, fmt.Errorf("contract %q: %w", symbol, ports.ErrUnknownSymbol)
	}
	return c, nil
}

// Symbols returns the catalog of known contract symbols.
func (g *Generator) Symbols() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	symbols := make([]string, 0, len(g.contracts))
	for s := range g.contracts {
		symbols = append(symbols, s)
	}
	return symbols
}

// LastPrice returns the most recent synthetic trade price for a symbol,
// creating the symbol's price state on first use.
func (g *Generator) LastPrice(symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, err := g.stateLocked(symbol)
	if err != nil {
		return 0, err
	}
	return st.last, nil
}

// Tick advances the forming candle of a symbol by one synthetic trade
// and returns the resulting tick. If the forming candle's interval has
// elapsed, it is frozen into history first and a new candle opens at
// the previous close.
func (g *Generator) Tick(ctx context.Context, symbol string) (Tick, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	contract, ok := g.contracts[symbol]
	if !ok {
		return Tick{}, fmt.Errorf("tick %q: %w", symbol, ports.ErrUnknownSymbol)
	}
	st, err := g.stateLocked(symbol)
	if err != nil {
		return Tick{}, err
	}

	now := g.clock()
	if !now.Before(st.current.CloseTime) {
		g.rollCandleLocked(st, symbol, now)
	}

	price := g.nextPriceLocked(contract, st.last)
	st.last = price
	st.seq++

	st.current.Close = price
	st.current.High = math.Max(st.current.High, price)
	st.current.Low = math.Min(st.current.Low, price)
	st.current.Volume += float64(1 + g.rng.Intn(50))

	g.logger.Debug(ctx, "Market tick", map[string]interface{}{
		"symbol": symbol,
		"seq":    st.seq,
		"price":  price,
	})

	return Tick{
		Symbol: symbol,
		Seq:    st.seq,
		Price:  price,
		Time:   now,
		Candle: st.current,
	}, nil
}

// HistoricalCandles returns up to count most recent frozen candles for
// a symbol, chronological order, most recent last.
func (g *Generator) HistoricalCandles(symbol string, count int) ([]domain.Candle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, err := g.stateLocked(symbol)
	if err != nil {
		return nil, err
	}
	if count <= 0 || count > len(st.history) {
		count = len(st.history)
	}
	out := make([]domain.Candle, count)
	copy(out, st.history[len(st.history)-count:])
	return out, nil
}

// CurrentCandle returns the forming candle for a symbol.
func (g *Generator) CurrentCandle(symbol string) (domain.Candle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, err := g.stateLocked(symbol)
	if err != nil {
		return domain.Candle{}, err
	}
	return st.current, nil
}

// stateLocked returns the symbol's price state, backfilling history via
// a seeded random walk on first use. Caller must hold g.mu.
func (g *Generator) stateLocked(symbol string) (*priceState, error) {
	if st, ok := g.states[symbol]; ok {
		return st, nil
	}
	contract, ok := g.contracts[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %q: %w", symbol, ports.ErrUnknownSymbol)
	}

	now := g.clock()
	history := GenerateHistoricalCandles(contract, g.interval, g.limit, g.rng.Int63(), now)

	last := contract.RoundToTick(contract.BasePrice)
	if len(history) > 0 {
		last = history[len(history)-1].Close
	}

	openTime := now.Truncate(g.interval)
	st := &priceState{
		last:    last,
		history: history,
		current: domain.Candle{
			OpenTime:  openTime,
			CloseTime: openTime.Add(g.interval),
			Symbol:    symbol,
			Interval:  g.interval,
			Open:      last,
			High:      last,
			Low:       last,
			Close:     last,
		},
	}
	g.states[symbol] = st
	return st, nil
}

// rollCandleLocked freezes the forming candle into history and opens a
// new one seeded at the previous close. Caller must hold g.mu.
func (g *Generator) rollCandleLocked(st *priceState, symbol string, now time.Time) {
	frozen := st.current
	frozen.IsFinal = true
	st.history = append(st.history, frozen)
	if len(st.history) > g.limit {
		st.history = st.history[len(st.history)-g.limit:]
	}

	openTime := now.Truncate(g.interval)
	st.current = domain.Candle{
		OpenTime:  openTime,
		CloseTime: openTime.Add(g.interval),
		Symbol:    symbol,
		Interval:  g.interval,
		Open:      frozen.Close,
		High:      frozen.Close,
		Low:       frozen.Close,
		Close:     frozen.Close,
	}
}

// nextPriceLocked computes the next tick-rounded price. The move is a
// gaussian step scaled by the contract's volatility (in ticks), clamped
// to maxStepTicks so consecutive prices never jump across more than a
// bounded number of ticks. Caller must hold g.mu.
func (g *Generator) nextPriceLocked(contract domain.Contract, last float64) float64 {
	return nextPrice(g.rng, contract, last)
}

func nextPrice(rng *rand.Rand, contract domain.Contract, last float64) float64 {
	vol := contract.Volatility
	if vol <= 0 {
		vol = 1
	}
	steps := math.Round(rng.NormFloat64() * vol)
	limit := math.Max(maxStepTicks, vol*2)
	if steps > limit {
		steps = limit
	} else if steps < -limit {
		steps = -limit
	}

	price := contract.RoundToTick(last + steps*contract.TickSize)
	// Never let the synthetic price collapse to or below zero.
	if price < contract.TickSize {
		price = contract.TickSize
	}
	return price
}

// GenerateHistoricalCandles produces a deterministic seeded random walk
// of count frozen candles ending just before end, chronological order,
// most recent last. A fresh call with the same arguments reproduces the
// same series. Every O/H/L/C value is a multiple of the contract's tick
// size, high >= max(open, close) and low <= min(open, close).
func GenerateHistoricalCandles(contract domain.Contract, interval time.Duration, count int, seed int64, end time.Time) []domain.Candle {
	if count <= 0 || interval <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	candles := make([]domain.Candle, 0, count)

	last := contract.RoundToTick(contract.BasePrice)
	start := end.Truncate(interval).Add(-time.Duration(count) * interval)

	for i := 0; i < count; i++ {
		openTime := start.Add(time.Duration(i) * interval)
		c := domain.Candle{
			OpenTime:  openTime,
			CloseTime: openTime.Add(interval),
			Symbol:    contract.Symbol,
			Interval:  interval,
			Open:      last,
			High:      last,
			Low:       last,
			Close:     last,
			IsFinal:   true,
		}
		// A handful of intra-candle trades per interval keeps high/low
		// consistent with the path the closes take.
		trades := 3 + rng.Intn(8)
		price := last
		for t := 0; t < trades; t++ {
			price = nextPrice(rng, contract, price)
			c.High = math.Max(c.High, price)
			c.Low = math.Min(c.Low, price)
			c.Volume += float64(1 + rng.Intn(50))
		}
		c.Close = price
		last = price
		candles = append(candles, c)
	}
	return candles
}

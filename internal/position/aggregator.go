package position

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"propTradeSim/internal/domain"
	"propTradeSim/internal/ports"
)

// Aggregator folds executions into per-(account, symbol) positions.
// Realized P&L uses FIFO lot matching: closing quantity consumes the
// oldest open lots first, the conventional default for futures P&L.
//
// Invariant: the sum of all applied executions' signed quantities for a
// symbol always equals the current net position quantity.
type Aggregator struct {
	prices ports.PriceSource
	logger ports.Logger

	mu        sync.Mutex
	books     map[string]map[string]*lotBook // account -> symbol -> lots
	trades    map[string][]domain.ClosedTrade
	submitter ports.OrderSubmitter
}

// lot is one open entry, oldest first in the book's queue. Quantity is
// signed: positive lots are long, negative short. A book only ever
// holds lots of one sign.
type lot struct {
	quantity int64
	price    float64
	at       time.Time
}

type lotBook struct {
	lots     []lot
	realized float64
	openedAt time.Time
}

// NewAggregator creates a position aggregator.
func NewAggregator(prices ports.PriceSource, logger ports.Logger) (*Aggregator, error) {
	if prices == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for position aggregator")
	}
	return &Aggregator{
		prices: prices,
		logger: logger,
		books:  make(map[string]map[string]*lotBook),
		trades: make(map[string][]domain.ClosedTrade),
	}, nil
}

// SetSubmitter wires the order path used by ClosePosition. Injected
// after construction because the submitter (the app service) also
// depends on the aggregator.
func (a *Aggregator) SetSubmitter(s ports.OrderSubmitter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submitter = s
}

// Apply folds one execution into the account's position and returns
// the realized P&L delta it produced (zero while opening or adding).
func (a *Aggregator) Apply(ctx context.Context, exec domain.Execution) (float64, error) {
	contract, err := a.prices.Contract(exec.Symbol)
	if err != nil {
		return 0, fmt.Errorf("apply execution %s: %w", exec.ID, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	book := a.bookLocked(exec.AccountID, exec.Symbol)
	incoming := exec.SignedQuantity()
	var realized float64

	// Consume opposite-direction lots FIFO before opening new exposure.
	for incoming != 0 && len(book.lots) > 0 && opposite(book.lots[0].quantity, incoming) {
		head := &book.lots[0]
		matched := min64(abs64(head.quantity), abs64(incoming))

		// P&L of the matched portion, signed by the entry direction.
		entryDir := sign64(head.quantity)
		pnl := contract.PNL(head.price, exec.Price, matched*entryDir)
		realized += pnl
		book.realized += pnl

		a.trades[exec.AccountID] = append(a.trades[exec.AccountID], domain.ClosedTrade{
			AccountID:  exec.AccountID,
			Symbol:     exec.Symbol,
			Quantity:   matched * entryDir,
			EntryPrice: head.price,
			ExitPrice:  exec.Price,
			PNL:        pnl,
			EntryTime:  head.at,
			ExitTime:   exec.Timestamp,
		})

		head.quantity -= matched * entryDir
		incoming -= matched * sign64(incoming)
		if head.quantity == 0 {
			book.lots = book.lots[1:]
		}
	}

	// Any remainder opens (or adds to) exposure in the fill's direction.
	if incoming != 0 {
		if len(book.lots) == 0 {
			book.openedAt = exec.Timestamp
		}
		book.lots = append(book.lots, lot{quantity: incoming, price: exec.Price, at: exec.Timestamp})
	}

	a.logger.Debug(ctx, "Execution applied to position", map[string]interface{}{
		"accountID": exec.AccountID,
		"symbol":    exec.Symbol,
		"net":       netQuantity(book),
		"realized":  realized,
	})
	return realized, nil
}

// Position returns the account's position in one symbol, valued at the
// current price. A flat position with no history is returned as a zero
// value with IsFlat() == true.
func (a *Aggregator) Position(accountID, symbol string) (domain.Position, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	book := a.bookLocked(accountID, symbol)
	return a.snapshotLocked(accountID, symbol, book)
}

// OpenPositions returns every non-flat position of an account.
func (a *Aggregator) OpenPositions(accountID string) ([]domain.Position, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	symbols := make([]string, 0, len(a.books[accountID]))
	for s := range a.books[accountID] {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var out []domain.Position
	for _, symbol := range symbols {
		book := a.books[accountID][symbol]
		if netQuantity(book) == 0 {
			continue
		}
		pos, err := a.snapshotLocked(accountID, symbol, book)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}

// ClosePosition submits a market IOC order for the opposite side and
// full quantity of the current net position. The IOC time-in-force
// guarantees no residual resting order is left behind.
func (a *Aggregator) ClosePosition(ctx context.Context, accountID, symbol string) (*domain.Order, domain.ValidationResult, error) {
	a.mu.Lock()
	book := a.bookLocked(accountID, symbol)
	net := netQuantity(book)
	submitter := a.submitter
	a.mu.Unlock()

	if net == 0 {
		return nil, domain.ValidationResult{}, fmt.Errorf("close position %s/%s: %w", accountID, symbol, ports.ErrNoOpenPosition)
	}
	if submitter == nil {
		return nil, domain.ValidationResult{}, fmt.Errorf("close position %s/%s: no order submitter wired", accountID, symbol)
	}

	side := domain.Sell
	if net < 0 {
		side = domain.Buy
	}
	a.logger.Info(ctx, "Closing position", map[string]interface{}{
		"accountID": accountID,
		"symbol":    symbol,
		"net":       net,
		"side":      side,
	})
	return submitter.SubmitOrder(ctx, domain.OrderRequest{
		AccountID:   accountID,
		Symbol:      symbol,
		Type:        domain.Market,
		Side:        side,
		Quantity:    abs64(net),
		TimeInForce: domain.IOC,
	})
}

// ClosedTrades returns the account's matched entry/exit pairs in the
// order they were realized.
func (a *Aggregator) ClosedTrades(accountID string) []domain.ClosedTrade {
	a.mu.Lock()
	defer a.mu.Unlock()
	src := a.trades[accountID]
	out := make([]domain.ClosedTrade, len(src))
	copy(out, src)
	return out
}

// snapshotLocked values a lot book at the current price.
func (a *Aggregator) snapshotLocked(accountID, symbol string, book *lotBook) (domain.Position, error) {
	pos := domain.Position{
		AccountID:   accountID,
		Symbol:      symbol,
		RealizedPNL: book.realized,
	}
	net := netQuantity(book)
	if net == 0 {
		return pos, nil
	}

	var notional float64
	for _, l := range book.lots {
		notional += l.price * float64(abs64(l.quantity))
	}
	pos.Quantity = net
	pos.AvgEntryPrice = notional / float64(abs64(net))
	pos.OpenedAt = book.openedAt

	price, err := a.prices.LastPrice(symbol)
	if err != nil {
		return domain.Position{}, fmt.Errorf("value position %s/%s: %w", accountID, symbol, err)
	}
	contract, err := a.prices.Contract(symbol)
	if err != nil {
		return domain.Position{}, fmt.Errorf("value position %s/%s: %w", accountID, symbol, err)
	}
	// Sign-correct for shorts: net < 0 flips the delta.
	pos.UnrealizedPNL = contract.PNL(pos.AvgEntryPrice, price, net)
	return pos, nil
}

func (a *Aggregator) bookLocked(accountID, symbol string) *lotBook {
	bySymbol, ok := a.books[accountID]
	if !ok {
		bySymbol = make(map[string]*lotBook)
		a.books[accountID] = bySymbol
	}
	book, ok := bySymbol[symbol]
	if !ok {
		book = &lotBook{}
		bySymbol[symbol] = book
	}
	return book
}

func netQuantity(book *lotBook) int64 {
	var net int64
	for _, l := range book.lots {
		net += l.quantity
	}
	return net
}

func opposite(a, b int64) bool { return (a > 0) != (b > 0) }

func sign64(v int64) int64 {
	if v < 0 {
		return -1
	}
	return 1
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

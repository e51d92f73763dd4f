package domain

import "time"

// Position is a derived view of an account's exposure in one symbol.
// It is recomputed from the account's execution history, never stored
// as independent truth. The sign of Quantity encodes direction
// (positive = long, negative = short).
type Position struct {
	AccountID     string
	Symbol        string
	Quantity      int64   // Net signed contracts
	AvgEntryPrice float64 // Volume-weighted entry of the still-open portion
	RealizedPNL   float64 // Currency P&L from closed portions
	UnrealizedPNL float64 // Currency P&L of the open portion at the current price
	OpenedAt      time.Time
}

// IsFlat reports whether the position has no open quantity.
func (p Position) IsFlat() bool { return p.Quantity == 0 }

// IsLong reports whether the position is net long.
func (p Position) IsLong() bool { return p.Quantity > 0 }

// IsShort reports whether the position is net short.
func (p Position) IsShort() bool { return p.Quantity < 0 }

// ClosedTrade records one matched entry/exit pair produced by FIFO lot
// matching, used for account performance statistics.
type ClosedTrade struct {
	AccountID  string
	Symbol     string
	Quantity   int64 // Matched contracts, signed by the entry direction
	EntryPrice float64
	ExitPrice  float64
	PNL        float64
	EntryTime  time.Time
	ExitTime   time.Time
}

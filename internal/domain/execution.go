package domain

import "time"

// Execution records a single fill against an order. Executions are
// immutable once created; an order accumulates executions until its
// remaining quantity reaches zero or it is cancelled.
type Execution struct {
	ID        string
	OrderID   string
	AccountID string
	Symbol    string
	Side      OrderSide
	Price     float64
	Quantity  int64
	Timestamp time.Time
}

// SignedQuantity returns the quantity signed by side (+buy / -sell).
func (e Execution) SignedQuantity() int64 {
	return e.Quantity * e.Side.Direction()
}

package domain

import (
	"strings"
	"time"
)

// OrderType discriminates the order variants supported by the engine.
type OrderType string

const (
	Market       OrderType = "market"
	Limit        OrderType = "limit"
	Stop         OrderType = "stop"
	StopLimit    OrderType = "stop_limit"
	TrailingStop OrderType = "trailing_stop"
)

// IsValid reports whether the order type is one of the known constants.
func (t OrderType) IsValid() bool {
	switch t {
	case Market, Limit, Stop, StopLimit, TrailingStop:
		return true
	}
	return false
}

// TimeInForce controls what happens to the unfilled remainder of an order.
type TimeInForce string

const (
	// Day orders rest until filled, cancelled or the trading day ends.
	Day TimeInForce = "day"
	// IOC orders fill what they can immediately and cancel the remainder.
	IOC TimeInForce = "ioc"
)

// IsValid reports whether the time-in-force is one of the known constants.
func (t TimeInForce) IsValid() bool {
	return t == Day || t == IOC
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusSubmitted OrderStatus = "submitted"
	StatusWorking   OrderStatus = "working"
	StatusPartial   OrderStatus = "partial"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusRejected  OrderStatus = "rejected"
)

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

// LimitTerms carries the fields meaningful for limit and stop-limit orders.
type LimitTerms struct {
	Price float64 // Worst acceptable fill price
}

// StopTerms carries the fields meaningful for stop and stop-limit orders.
type StopTerms struct {
	Price     float64 // Trigger price
	Triggered bool    // Whether the stop has been touched (stop-limit only)
}

// TrailTerms carries the fields meaningful for trailing stop orders.
// ExtremePrice is the best price achieved since submission; StopPrice is
// recomputed from it every tick and ratchets only in the favorable direction.
type TrailTerms struct {
	Amount       float64 // Trail distance in price units
	ExtremePrice float64 // Best price seen since submission
	StopPrice    float64 // Current effective stop price
}

// Order is a trading order owned by a single account. The type-specific
// terms are carried as variant payloads: exactly the pointers meaningful
// for Type are non-nil, so invalid field combinations cannot be represented.
//
// Invariant: 0 <= RemainingQuantity <= Quantity, and Status together with
// RemainingQuantity is only ever updated under the owning account's lock.
type Order struct {
	ID                string
	AccountID         string
	Symbol            string
	Type              OrderType
	Side              OrderSide
	Quantity          int64 // Contracts requested, always positive
	RemainingQuantity int64 // Contracts not yet filled
	TimeInForce       TimeInForce
	Status            OrderStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Limit *LimitTerms // limit, stop_limit
	Stop  *StopTerms  // stop, stop_limit
	Trail *TrailTerms // trailing_stop
}

// FilledQuantity returns the number of contracts filled so far.
func (o *Order) FilledQuantity() int64 {
	return o.Quantity - o.RemainingQuantity
}

// IsWorking reports whether the order is resting and eligible for
// trigger evaluation. Partially filled resting orders remain working.
func (o *Order) IsWorking() bool {
	return o.Status == StatusWorking || o.Status == StatusPartial
}

// CanCancel reports whether a cancel request is permitted in the
// current state.
func (o *Order) CanCancel() bool {
	switch o.Status {
	case StatusPending, StatusSubmitted, StatusWorking:
		return true
	}
	return false
}

// CanModify reports whether a modify request is permitted in the
// current state.
func (o *Order) CanModify() bool {
	return o.CanCancel()
}

// Clone returns a deep copy of the order, detaching the variant
// payloads so callers can hold the copy without racing the engine.
func (o *Order) Clone() *Order {
	c := *o
	if o.Limit != nil {
		limit := *o.Limit
		c.Limit = &limit
	}
	if o.Stop != nil {
		stop := *o.Stop
		c.Stop = &stop
	}
	if o.Trail != nil {
		trail := *o.Trail
		c.Trail = &trail
	}
	return &c
}

// OrderRequest is the flat submission shape accepted from callers.
// The engine validates it and folds the optional prices into the
// variant payloads of Order.
type OrderRequest struct {
	AccountID   string      `json:"accountId"`
	Symbol      string      `json:"symbol"`
	Type        OrderType   `json:"orderType"`
	Side        OrderSide   `json:"side"`
	Quantity    int64       `json:"quantity"`
	LimitPrice  float64     `json:"limitPrice,omitempty"`
	StopPrice   float64     `json:"stopPrice,omitempty"`
	TrailAmount float64     `json:"trailAmount,omitempty"`
	TimeInForce TimeInForce `json:"timeInForce,omitempty"`
}

// Normalize lowercases the enum-valued fields so wire input is accepted
// case-insensitively ("buy" and "BUY" mean the same side).
func (r OrderRequest) Normalize() OrderRequest {
	r.Type = OrderType(strings.ToLower(string(r.Type)))
	r.Side = OrderSide(strings.ToLower(string(r.Side)))
	r.TimeInForce = TimeInForce(strings.ToLower(string(r.TimeInForce)))
	return r
}

// ModifyRequest carries the replaceable fields of a resting order.
// Nil fields are left unchanged.
type ModifyRequest struct {
	LimitPrice *float64 `json:"limitPrice,omitempty"`
	StopPrice  *float64 `json:"stopPrice,omitempty"`
	Quantity   *int64   `json:"quantity,omitempty"`
}

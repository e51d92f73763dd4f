package domain

// OrderSide represents the side of an order (buy or sell).
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Opposite returns the side that closes exposure opened on this side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Direction returns +1 for buy and -1 for sell, used to sign quantities.
func (s OrderSide) Direction() int64 {
	if s == Buy {
		return 1
	}
	return -1
}

// IsValid reports whether the side is one of the known constants.
func (s OrderSide) IsValid() bool {
	return s == Buy || s == Sell
}

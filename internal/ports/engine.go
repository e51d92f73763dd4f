package ports

import (
	"context"

	"propTradeSim/internal/domain"
)

// PriceSource provides the authoritative last trade price and contract
// specification per symbol. Exactly one instance backs both the chart
// query path and the order evaluation path so all consumers see the
// same prices.
type PriceSource interface {
	// LastPrice returns the most recent synthetic trade price.
	LastPrice(symbol string) (float64, error)
	// Contract returns the immutable contract spec for a symbol.
	Contract(symbol string) (domain.Contract, error)
}

// AccountGate answers whether an account is currently allowed to submit
// new orders. A refusal is expressed as data, not as an error, so UIs
// can render rule-specific messaging.
type AccountGate interface {
	CanSubmit(accountID string) domain.ValidationResult
}

// OrderSubmitter accepts new orders. Implemented by the application
// service so that close-position flows run through the same fill
// pipeline as caller-submitted orders.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, domain.ValidationResult, error)
}

package ports

import (
	"context"

	"propTradeSim/internal/domain"
)

// OrderRepository stores the order book's durable view. The engine
// treats persistence as a side effect performed after the in-memory
// transition is final.
type OrderRepository interface {
	// SaveOrder inserts or replaces an order snapshot.
	SaveOrder(ctx context.Context, order *domain.Order) error
	// FindOrder retrieves an order by ID. Returns nil, nil if not found.
	FindOrder(ctx context.Context, id string) (*domain.Order, error)
	// FindOrdersByAccount retrieves all orders for an account, oldest first.
	FindOrdersByAccount(ctx context.Context, accountID string) ([]*domain.Order, error)
}

// ExecutionRepository stores immutable fill records.
type ExecutionRepository interface {
	// SaveExecution appends a fill record.
	SaveExecution(ctx context.Context, exec *domain.Execution) error
	// FindExecutionsByAccount retrieves an account's fills in chronological order.
	FindExecutionsByAccount(ctx context.Context, accountID string) ([]*domain.Execution, error)
}

// AccountRepository stores account risk state snapshots.
type AccountRepository interface {
	// SaveAccount inserts or replaces an account snapshot.
	SaveAccount(ctx context.Context, account *domain.Account) error
	// FindAccount retrieves an account by ID. Returns nil, nil if not found.
	FindAccount(ctx context.Context, id string) (*domain.Account, error)
	// FindAllAccounts retrieves every stored account.
	FindAllAccounts(ctx context.Context) ([]*domain.Account, error)
}

package ports

import "errors"

// Standard application-level errors.
// Adapters and engine components wrap underlying failures with these
// standard errors; none of them is retried inside the engine.
var (
	// General errors.
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Engine errors.
	ErrUnknownSymbol  = errors.New("unknown contract symbol")
	ErrUnknownAccount = errors.New("unknown account")
	ErrOrderNotFound  = errors.New("order not found")
	ErrInvalidState   = errors.New("operation not permitted in the order's current state")
	ErrNoOpenPosition = errors.New("no open position for symbol")
	ErrMarketData     = errors.New("market data unavailable")

	// Database errors.
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)

package domain

// ViolationCode identifies a single validation or rule failure. Codes are
// stable identifiers callers can branch on; messages are for display.
type ViolationCode string

const (
	// Input shape violations.
	ViolationQuantity     ViolationCode = "invalid_quantity"
	ViolationOrderType    ViolationCode = "invalid_order_type"
	ViolationSide         ViolationCode = "invalid_side"
	ViolationTimeInForce  ViolationCode = "invalid_time_in_force"
	ViolationLimitPrice   ViolationCode = "missing_limit_price"
	ViolationStopPrice    ViolationCode = "missing_stop_price"
	ViolationTrailAmount  ViolationCode = "missing_trail_amount"
	ViolationAccountID    ViolationCode = "missing_account_id"
	ViolationSymbol       ViolationCode = "missing_symbol"

	// Account rule violations.
	ViolationAccountFailed    ViolationCode = "account_failed"
	ViolationAccountSuspended ViolationCode = "account_suspended"
	ViolationAccountExpired   ViolationCode = "account_expired"
	ViolationDailyLossLimit   ViolationCode = "daily_loss_limit_hit"
	ViolationUnknownAccount   ViolationCode = "unknown_account"
)

// Violation is one reason a request was refused.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
}

// ValidationResult is returned alongside (not instead of) transport
// errors so callers can surface rule violations verbatim to users while
// treating transport failures separately.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// OK is the successful validation result.
func OK() ValidationResult {
	return ValidationResult{Valid: true}
}

// Refuse builds a failed validation result from one or more violations.
func Refuse(violations ...Violation) ValidationResult {
	return ValidationResult{Valid: false, Violations: violations}
}

// Add appends a violation and marks the result invalid.
func (r *ValidationResult) Add(code ViolationCode, message string) {
	r.Valid = false
	r.Violations = append(r.Violations, Violation{Code: code, Message: message})
}

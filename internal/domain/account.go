package domain

import "time"

// AccountPhase is an account's position in the evaluation funnel,
// independent of its pass/fail status flag.
type AccountPhase string

const (
	PhaseEvaluation1 AccountPhase = "evaluation_1"
	PhaseEvaluation2 AccountPhase = "evaluation_2"
	PhaseFunded      AccountPhase = "funded"
)

// Next returns the phase the account advances to after passing.
// Funded is the final phase and advances to itself.
func (p AccountPhase) Next() AccountPhase {
	switch p {
	case PhaseEvaluation1:
		return PhaseEvaluation2
	case PhaseEvaluation2:
		return PhaseFunded
	}
	return PhaseFunded
}

// AccountStatus is the pass/fail state machine of an account.
// Suspended and expired are externally imposed overrides.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountPassed    AccountStatus = "passed"
	AccountFailed    AccountStatus = "failed"
	AccountSuspended AccountStatus = "suspended"
	AccountExpired   AccountStatus = "expired"
)

// IsTerminal reports whether the account may no longer trade.
func (s AccountStatus) IsTerminal() bool {
	return s == AccountFailed || s == AccountSuspended || s == AccountExpired
}

// RiskPlan holds the per-account evaluation rules. It is fixed when the
// account is created and survives phase resets.
type RiskPlan struct {
	InitialBalance    float64 // Starting balance of each phase
	MaxDrawdown       float64 // Trailing drawdown allowance in currency
	DailyLossLimitPct float64 // Max intraday loss as a fraction of day-start balance
	ProfitTarget      float64 // Currency profit required to pass
	MinTradingDays    int     // Distinct days with at least one fill required to pass
}

// Account aggregates the mutable risk state of one evaluation account.
// It is owned exclusively by the risk engine: all mutation happens there,
// in response to fills and day rollovers.
type Account struct {
	ID      string
	Plan    RiskPlan
	Phase   AccountPhase
	Status  AccountStatus
	Created time.Time

	CurrentBalance      float64
	HighWaterMark       float64
	CurrentDrawdown     float64 // HighWaterMark - CurrentBalance
	DrawdownThreshold   float64 // Failure level: HighWaterMark - MaxDrawdown
	DayStartBalance     float64
	DailyLossLimitHit   bool
	TradingDay          string // Current trading day (date in the configured boundary zone)
	LastTradedDay       string // Most recent day counted toward TradingDays
	TradingDays         int
	ProfitTargetReached bool
	ResetCount          int
}

// Profit returns the account's profit over the phase's initial balance.
func (a *Account) Profit() float64 {
	return a.CurrentBalance - a.Plan.InitialBalance
}

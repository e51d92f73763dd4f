package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"propTradeSim/internal/domain"
	"propTradeSim/internal/ports"
)

// tradingDayLayout formats a timestamp into the trading-day key used
// for rollovers and trading-day counting.
const tradingDayLayout = "2006-01-02"

// Config holds configuration for the risk engine.
type Config struct {
	Plan domain.RiskPlan
	// DayBoundary is the timezone whose midnight cuts one trading day
	// from the next. Configurable because the exchange close is a
	// business decision, not a code constant.
	DayBoundary *time.Location
	Logger      ports.Logger
}

// Decision reports what an applied fill did to the account's
// evaluation state. The caller reacts to Failed by cancelling the
// account's working orders.
type Decision struct {
	Failed            bool
	Passed            bool
	DailyLossLimitHit bool
}

// Engine drives each account's risk state machine:
// active -> {passed -> funded} | failed, with suspended/expired as
// externally imposed overrides. All account mutation happens here.
type Engine struct {
	cfg    Config
	logger ports.Logger

	mu       sync.Mutex
	accounts map[string]*domain.Account
}

// NewEngine creates a risk engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for risk engine")
	}
	if cfg.Plan.InitialBalance <= 0 {
		return nil, fmt.Errorf("plan InitialBalance must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.Plan.MaxDrawdown <= 0 {
		return nil, fmt.Errorf("plan MaxDrawdown must be positive: %w", ports.ErrConfigurationError)
	}
	if cfg.Plan.DailyLossLimitPct <= 0 || cfg.Plan.DailyLossLimitPct >= 1 {
		return nil, fmt.Errorf("plan DailyLossLimitPct must be between 0 and 1: %w", ports.ErrConfigurationError)
	}
	if cfg.DayBoundary == nil {
		cfg.DayBoundary = time.UTC
	}
	return &Engine{
		cfg:      cfg,
		logger:   cfg.Logger,
		accounts: make(map[string]*domain.Account),
	}, nil
}

// OpenAccount registers a fresh evaluation account on the configured
// plan, starting in evaluation phase one.
func (e *Engine) OpenAccount(ctx context.Context, id string, at time.Time) (*domain.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.accounts[id]; exists {
		return nil, fmt.Errorf("account %s: %w", id, ports.ErrDuplicateEntry)
	}

	plan := e.cfg.Plan
	acct := &domain.Account{
		ID:                id,
		Plan:              plan,
		Phase:             domain.PhaseEvaluation1,
		Status:            domain.AccountActive,
		Created:           at,
		CurrentBalance:    plan.InitialBalance,
		HighWaterMark:     plan.InitialBalance,
		DrawdownThreshold: plan.InitialBalance - plan.MaxDrawdown,
		DayStartBalance:   plan.InitialBalance,
		TradingDay:        e.dayKey(at),
	}
	e.accounts[id] = acct

	e.logger.Info(ctx, "Evaluation account opened", map[string]interface{}{
		"accountID": id,
		"balance":   plan.InitialBalance,
		"target":    plan.ProfitTarget,
	})
	return cloneAccount(acct), nil
}

// Restore loads a previously persisted account into the engine,
// overwriting any in-memory copy. Used at startup.
func (e *Engine) Restore(account *domain.Account) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.accounts[account.ID] = cloneAccount(account)
}

// CanSubmit implements ports.AccountGate: it refuses order submission
// for terminal accounts and while the daily loss limit is in force.
func (e *Engine) CanSubmit(accountID string) domain.ValidationResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.accounts[accountID]
	if !ok {
		return domain.Refuse(domain.Violation{
			Code:    domain.ViolationUnknownAccount,
			Message: fmt.Sprintf("account %s is not registered", accountID),
		})
	}
	switch acct.Status {
	case domain.AccountFailed:
		return domain.Refuse(domain.Violation{
			Code:    domain.ViolationAccountFailed,
			Message: "account failed its evaluation and can no longer trade",
		})
	case domain.AccountSuspended:
		return domain.Refuse(domain.Violation{
			Code:    domain.ViolationAccountSuspended,
			Message: "account is suspended",
		})
	case domain.AccountExpired:
		return domain.Refuse(domain.Violation{
			Code:    domain.ViolationAccountExpired,
			Message: "account evaluation period has expired",
		})
	}
	if acct.DailyLossLimitHit {
		return domain.Refuse(domain.Violation{
			Code:    domain.ViolationDailyLossLimit,
			Message: "daily loss limit hit; trading resumes next trading day",
		})
	}
	return domain.OK()
}

// ApplyFill folds one fill's realized P&L into the account risk state
// and returns the resulting decision. Invariant after every call:
// CurrentDrawdown == HighWaterMark - CurrentBalance.
func (e *Engine) ApplyFill(ctx context.Context, accountID string, realizedPNL float64, at time.Time) (Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.accounts[accountID]
	if !ok {
		return Decision{}, fmt.Errorf("apply fill: account %s: %w", accountID, ports.ErrUnknownAccount)
	}
	if acct.Status.IsTerminal() {
		// Late fills against a terminal account change nothing.
		return Decision{}, nil
	}

	day := e.dayKey(at)
	if day != acct.TradingDay {
		e.rolloverLocked(acct, day)
	}

	// A calendar day with at least one fill counts once, regardless of
	// how many fills land that day.
	if acct.LastTradedDay != day {
		acct.LastTradedDay = day
		acct.TradingDays++
	}

	acct.CurrentBalance += realizedPNL

	// The high-water mark ratchets, and the trailing drawdown threshold
	// with it, until the profit target is reached.
	if acct.CurrentBalance > acct.HighWaterMark && !acct.ProfitTargetReached {
		acct.HighWaterMark = acct.CurrentBalance
		acct.DrawdownThreshold = acct.HighWaterMark - acct.Plan.MaxDrawdown
	}
	acct.CurrentDrawdown = acct.HighWaterMark - acct.CurrentBalance

	var decision Decision

	// Daily loss limit: measured against the balance at the start of
	// the current trading day. Blocks new orders but does not fail the
	// account by itself.
	intradayLoss := acct.DayStartBalance - acct.CurrentBalance
	if !acct.DailyLossLimitHit && intradayLoss >= acct.Plan.DailyLossLimitPct*acct.DayStartBalance {
		acct.DailyLossLimitHit = true
		decision.DailyLossLimitHit = true
		e.logger.Warn(ctx, "Daily loss limit hit", map[string]interface{}{
			"accountID": accountID,
			"loss":      intradayLoss,
		})
	}

	// Max drawdown breach fails the account outright.
	if acct.CurrentBalance <= acct.DrawdownThreshold {
		acct.Status = domain.AccountFailed
		decision.Failed = true
		e.logger.Warn(ctx, "Account failed on max drawdown breach", map[string]interface{}{
			"accountID": accountID,
			"balance":   acct.CurrentBalance,
			"threshold": acct.DrawdownThreshold,
		})
		return decision, nil
	}

	if !acct.ProfitTargetReached && acct.Profit() >= acct.Plan.ProfitTarget {
		acct.ProfitTargetReached = true
	}
	if acct.ProfitTargetReached &&
		acct.TradingDays >= acct.Plan.MinTradingDays &&
		acct.Status == domain.AccountActive &&
		acct.Phase != domain.PhaseFunded {
		acct.Status = domain.AccountPassed
		decision.Passed = true
		e.logger.Info(ctx, "Account passed its evaluation phase", map[string]interface{}{
			"accountID":   accountID,
			"phase":       acct.Phase,
			"balance":     acct.CurrentBalance,
			"tradingDays": acct.TradingDays,
		})
	}
	return decision, nil
}

// Rollover moves every account whose trading day has ended into the
// new day: the daily loss limit resets and the day-start balance is
// re-anchored. Returns true if any account rolled, which is the signal
// to expire day orders.
func (e *Engine) Rollover(ctx context.Context, at time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	day := e.dayKey(at)
	rolled := false
	for _, acct := range e.accounts {
		if acct.TradingDay != day {
			e.rolloverLocked(acct, day)
			rolled = true
		}
	}
	if rolled {
		e.logger.Info(ctx, "Trading day rolled over", map[string]interface{}{"day": day})
	}
	return rolled
}

// rolloverLocked starts a new trading day for one account.
func (e *Engine) rolloverLocked(acct *domain.Account, day string) {
	acct.TradingDay = day
	acct.DayStartBalance = acct.CurrentBalance
	acct.DailyLossLimitHit = false
}

// Advance moves a passed account into its next phase with a full risk
// state reset. Evaluation two follows evaluation one; a funded account
// is final.
func (e *Engine) Advance(ctx context.Context, accountID string) (*domain.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("advance: account %s: %w", accountID, ports.ErrUnknownAccount)
	}
	if acct.Status != domain.AccountPassed {
		return nil, fmt.Errorf("advance: account %s in status %q: %w", accountID, acct.Status, ports.ErrInvalidState)
	}

	acct.Phase = acct.Phase.Next()
	acct.Status = domain.AccountActive
	e.resetLocked(acct)

	e.logger.Info(ctx, "Account advanced to next phase", map[string]interface{}{
		"accountID": accountID,
		"phase":     acct.Phase,
	})
	return cloneAccount(acct), nil
}

// Reset returns the account's risk state to the plan's initial values
// and increments the reset counter. The caller must not reset an
// already-reset account without a new funding event.
func (e *Engine) Reset(ctx context.Context, accountID string) (*domain.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, ok := e.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("reset: account %s: %w", accountID, ports.ErrUnknownAccount)
	}
	acct.Status = domain.AccountActive
	e.resetLocked(acct)
	acct.ResetCount++
	e.logger.Info(ctx, "Account risk state reset", map[string]interface{}{
		"accountID":  accountID,
		"resetCount": acct.ResetCount,
	})
	return cloneAccount(acct), nil
}

// resetLocked restores the plan's initial risk state.
func (e *Engine) resetLocked(acct *domain.Account) {
	plan := acct.Plan
	acct.CurrentBalance = plan.InitialBalance
	acct.HighWaterMark = plan.InitialBalance
	acct.CurrentDrawdown = 0
	acct.DrawdownThreshold = plan.InitialBalance - plan.MaxDrawdown
	acct.DayStartBalance = plan.InitialBalance
	acct.DailyLossLimitHit = false
	acct.TradingDays = 0
	acct.LastTradedDay = ""
	acct.ProfitTargetReached = false
}

// Suspend imposes the external suspended override on an account.
func (e *Engine) Suspend(ctx context.Context, accountID string) error {
	return e.setStatus(ctx, accountID, domain.AccountSuspended)
}

// Expire imposes the external expired override on an account.
func (e *Engine) Expire(ctx context.Context, accountID string) error {
	return e.setStatus(ctx, accountID, domain.AccountExpired)
}

func (e *Engine) setStatus(ctx context.Context, accountID string, status domain.AccountStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, ok := e.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, ports.ErrUnknownAccount)
	}
	acct.Status = status
	e.logger.Warn(ctx, "Account status overridden", map[string]interface{}{
		"accountID": accountID,
		"status":    status,
	})
	return nil
}

// Account returns a copy of the account's current state.
func (e *Engine) Account(accountID string) (*domain.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	acct, ok := e.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, ports.ErrUnknownAccount)
	}
	return cloneAccount(acct), nil
}

// Accounts returns copies of every registered account.
func (e *Engine) Accounts() []*domain.Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.Account, 0, len(e.accounts))
	for _, acct := range e.accounts {
		out = append(out, cloneAccount(acct))
	}
	return out
}

func (e *Engine) dayKey(at time.Time) string {
	return at.In(e.cfg.DayBoundary).Format(tradingDayLayout)
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

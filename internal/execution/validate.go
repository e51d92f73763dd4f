package execution

import (
	"fmt"

	"propTradeSim/internal/domain"
)

// validateRequest checks the shape of a submission. Every problem is
// collected so callers can surface the full list at once.
func validateRequest(req domain.OrderRequest) domain.ValidationResult {
	vr := domain.OK()

	if req.AccountID == "" {
		vr.Add(domain.ViolationAccountID, "accountId is required")
	}
	if req.Symbol == "" {
		vr.Add(domain.ViolationSymbol, "symbol is required")
	}
	if !req.Type.IsValid() {
		vr.Add(domain.ViolationOrderType, fmt.Sprintf("unknown order type %q", req.Type))
	}
	if !req.Side.IsValid() {
		vr.Add(domain.ViolationSide, fmt.Sprintf("unknown side %q", req.Side))
	}
	if req.TimeInForce != "" && !req.TimeInForce.IsValid() {
		vr.Add(domain.ViolationTimeInForce, fmt.Sprintf("unknown time in force %q", req.TimeInForce))
	}
	if req.Quantity <= 0 {
		vr.Add(domain.ViolationQuantity, "quantity must be a positive integer")
	}

	switch req.Type {
	case domain.Limit:
		if req.LimitPrice <= 0 {
			vr.Add(domain.ViolationLimitPrice, "limit orders require a positive limitPrice")
		}
	case domain.Stop:
		if req.StopPrice <= 0 {
			vr.Add(domain.ViolationStopPrice, "stop orders require a positive stopPrice")
		}
	case domain.StopLimit:
		if req.StopPrice <= 0 {
			vr.Add(domain.ViolationStopPrice, "stop-limit orders require a positive stopPrice")
		}
		if req.LimitPrice <= 0 {
			vr.Add(domain.ViolationLimitPrice, "stop-limit orders require a positive limitPrice")
		}
	case domain.TrailingStop:
		if req.TrailAmount <= 0 {
			vr.Add(domain.ViolationTrailAmount, "trailing stop orders require a positive trailAmount")
		}
	}

	return vr
}

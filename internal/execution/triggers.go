package execution

import "propTradeSim/internal/domain"

// triggered reports whether a resting order fires at the given price.
// Trailing stops ratchet their effective stop as a side effect, and a
// stop-limit whose stop is touched converts to a resting limit order.
// Must be called under the owning account's lock.
func triggered(o *domain.Order, price float64) bool {
	switch o.Type {
	case domain.Limit:
		return limitTouched(o.Side, o.Limit.Price, price)
	case domain.Stop:
		return stopTouched(o.Side, o.Stop.Price, price)
	case domain.StopLimit:
		if !o.Stop.Triggered {
			if !stopTouched(o.Side, o.Stop.Price, price) {
				return false
			}
			o.Stop.Triggered = true
		}
		// Once touched, the order rests as a plain limit.
		return limitTouched(o.Side, o.Limit.Price, price)
	case domain.TrailingStop:
		ratchetTrail(o.Side, o.Trail, price)
		return stopTouched(o.Side, o.Trail.StopPrice, price)
	}
	return false
}

// limitTouched: a buy limit fires at or below its price, a sell limit
// at or above. Fills happen at the tick price, which is therefore at
// or better than the limit.
func limitTouched(side domain.OrderSide, limit, price float64) bool {
	if side == domain.Buy {
		return price <= limit
	}
	return price >= limit
}

// stopTouched: a buy stop fires at or above its price, a sell stop at
// or below. Stops execute as market orders once touched.
func stopTouched(side domain.OrderSide, stop, price float64) bool {
	if side == domain.Buy {
		return price >= stop
	}
	return price <= stop
}

// ratchetTrail advances the trail's extreme price and recomputes the
// effective stop. The stop only ever moves in the favorable direction:
// up for a sell trail following rising prices, down for a buy trail
// following falling prices.
func ratchetTrail(side domain.OrderSide, trail *domain.TrailTerms, price float64) {
	if side == domain.Sell {
		if price > trail.ExtremePrice {
			trail.ExtremePrice = price
			trail.StopPrice = trail.ExtremePrice - trail.Amount
		}
		return
	}
	if price < trail.ExtremePrice {
		trail.ExtremePrice = price
		trail.StopPrice = trail.ExtremePrice + trail.Amount
	}
}

// newTrail initializes trailing terms anchored at the submission price.
func newTrail(side domain.OrderSide, amount, lastPrice float64) *domain.TrailTerms {
	t := &domain.TrailTerms{Amount: amount, ExtremePrice: lastPrice}
	if side == domain.Sell {
		t.StopPrice = lastPrice - amount
	} else {
		t.StopPrice = lastPrice + amount
	}
	return t
}

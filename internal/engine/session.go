package engine

import "skoll/internal/common"

// StartClosingAuction enters the closing auction; the uncross fires when
// a flush reaches endTs and the session moves to Closed.
func (e *MatchingEngine) StartClosingAuction(endTs common.Ts) {
	e.rules.setPhase(common.ClosingAuction)
	e.auctionEndTs = endTs
}

// StartTradingAtLast enters the trading-at-last window ending at endTs.
func (e *MatchingEngine) StartTradingAtLast(endTs common.Ts) {
	e.rules.setPhase(common.TradingAtLast)
	e.talEndTs = endTs
}

// Flush materializes every phase transition due at ts. Transitions are
// total functions of time and state and never fail. A single call may
// cascade: halt end rolls into the reopening auction, whose own end then
// uncrosses in the same flush.
func (e *MatchingEngine) Flush(ts common.Ts) []common.Trade {
	if e.rules.Phase() == common.TradingAtLast && ts >= e.talEndTs {
		e.rules.setPhase(common.Continuous)
	}

	if e.rules.Phase() == common.Halted && e.haltEndTs > 0 && ts >= e.haltEndTs {
		// Reopening auction; auctionEndTs was preset at trigger time.
		e.rules.setPhase(common.Auction)
	}

	phase := e.rules.Phase()
	if (phase == common.Auction || phase == common.ClosingAuction) && ts >= e.auctionEndTs {
		trades := e.uncrossAuction(e.auctionEndTs)
		if phase == common.ClosingAuction {
			e.rules.setPhase(common.Closed)
		} else {
			e.rules.setPhase(common.Continuous)
		}
		e.rules.OnTrades(trades)
		return trades
	}
	return nil
}

// maybeTriggerCircuitBreaker halts the market when the most recent trade
// has dropped too far below the reference. The reference latches on the
// first trade ever observed and is never reset.
func (e *MatchingEngine) maybeTriggerCircuitBreaker(trades []common.Trade) {
	cfg := e.rules.cfg
	if !cfg.EnableCircuitBreaker || e.rules.Phase() != common.Continuous || len(trades) == 0 {
		return
	}
	if e.cbRefPrice == nil {
		px := trades[0].Price
		e.cbRefPrice = &px
	}

	last := trades[len(trades)-1]
	floor := *e.cbRefPrice * (10000 - cfg.CBDropBps) / 10000
	if last.Price > floor {
		return
	}

	e.rules.setPhase(common.Halted)
	e.haltEndTs = last.Ts + cfg.CBHaltDurationNs
	e.reopenAuctionEndTs = e.haltEndTs + cfg.CBReopenAuctionDurationNs
	e.auctionEndTs = e.reopenAuctionEndTs

	// Re-enter the frozen book into the reopening auction, identity intact.
	e.auctionQueue = append(e.auctionQueue, e.book.drainAll()...)
}

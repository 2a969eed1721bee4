package engine

import "skoll/internal/common"

// MatchResult is the outcome of one Process call. Rejections are values,
// never panics or errors: Status/Reason describe admission, Trades holds
// everything executed during the call including trades materialized by
// the implicit flush.
type MatchResult struct {
	Trades    []common.Trade
	Resting   *common.Order
	FilledQty common.Qty
	Status    common.OrderStatus
	Reason    common.RejectReason
}

// MatchingEngine is the central state machine: admission, phase routing,
// matching, auction queueing and uncross, circuit breaker, session
// transitions. It is single-threaded; callers serialize access.
type MatchingEngine struct {
	book  *OrderBook
	rules *RuleSet

	nextTradeID common.TradeID

	auctionQueue []common.Order
	auctionEndTs common.Ts
	talEndTs     common.Ts

	cbRefPrice         *common.Price
	haltEndTs          common.Ts
	reopenAuctionEndTs common.Ts
}

func New(rules *RuleSet) *MatchingEngine {
	return &MatchingEngine{
		book:        NewOrderBook(),
		rules:       rules,
		nextTradeID: 1,
	}
}

func (e *MatchingEngine) Book() *OrderBook { return e.book }
func (e *MatchingEngine) Rules() *RuleSet  { return e.rules }

func (e *MatchingEngine) makeTrade(ts common.Ts, px common.Price, q common.Qty, maker, taker common.OrderID) common.Trade {
	t := common.Trade{
		ID:           e.nextTradeID,
		Ts:           ts,
		Price:        px,
		Qty:          q,
		MakerOrderID: maker,
		TakerOrderID: taker,
	}
	e.nextTradeID++
	return t
}

// Process is the single entry point for incoming orders. Due phase
// transitions are flushed first, then the order is admitted, routed by
// phase, matched, and its remainder resolved by time in force.
func (e *MatchingEngine) Process(incoming common.Order) MatchResult {
	out := MatchResult{Status: common.Accepted, Reason: common.ReasonNone}
	flushed := e.Flush(incoming.Ts)

	if d := e.rules.PreAccept(incoming); !d.Accept {
		out.Status = common.Rejected
		out.Reason = d.Reason
		out.Trades = prepend(flushed, out.Trades)
		return out
	}

	switch e.rules.Phase() {
	case common.Closed:
		// Session is over; drop silently.
		out.Trades = prepend(flushed, out.Trades)
		return out

	case common.Halted:
		if e.rules.cfg.QueueOrdersDuringHalt {
			e.auctionQueue = append(e.auctionQueue, incoming)
			out.Trades = prepend(flushed, out.Trades)
			return out
		}
		// EnforceHalt is off: fall through and trade as if continuous.

	case common.TradingAtLast:
		e.processAtLast(&out, incoming)
		out.Trades = prepend(flushed, out.Trades)
		return out

	case common.Auction, common.ClosingAuction:
		e.auctionQueue = append(e.auctionQueue, incoming)
		out.Trades = prepend(flushed, out.Trades)
		return out
	}

	if e.shouldTriggerVolatilityAuction(incoming) {
		e.rules.setPhase(common.Auction)
		e.auctionEndTs = incoming.Ts + e.rules.cfg.VolAuctionDurationNs
		e.auctionQueue = append(e.auctionQueue, incoming)
		out.Trades = prepend(flushed, out.Trades)
		return out
	}

	e.execute(&out, incoming)

	e.rules.OnTrades(out.Trades)
	e.maybeTriggerCircuitBreaker(out.Trades)

	out.Trades = prepend(flushed, out.Trades)
	return out
}

// execute runs the FOK preflight, the matching walk, and remainder
// handling for one admitted order in a trading phase.
func (e *MatchingEngine) execute(out *MatchResult, taker common.Order) {
	if taker.TIF == common.FOK && e.availableLiquidity(taker) < taker.Qty {
		// Unfillable: accepted but killed, book untouched.
		return
	}

	e.matchWalk(out, &taker)
	for i := range out.Trades {
		out.FilledQty += out.Trades[i].Qty
	}

	if taker.Qty <= 0 {
		return
	}
	switch {
	case taker.Type == common.Limit && taker.TIF == common.GTC:
		if e.book.AddRestingLimit(taker) {
			rest := taker
			out.Resting = &rest
		}
	case taker.Type == common.Market && taker.Style == common.MarketToLimit && len(out.Trades) > 0:
		rest := taker
		rest.Type = common.Limit
		rest.TIF = common.GTC
		rest.Price = out.Trades[len(out.Trades)-1].Price
		if e.book.AddRestingLimit(rest) {
			r := rest
			out.Resting = &r
		}
	}
	// IOC residue, FOK residue after STP, and pure-market remainders drop.
}

// matchWalk consumes opposite-side liquidity best-first, FIFO within a
// level, emitting a trade at the maker price for each fill.
func (e *MatchingEngine) matchWalk(out *MatchResult, taker *common.Order) {
	opp := taker.Side.Opposite()
	for taker.Qty > 0 {
		lvl := e.book.bestLevel(opp)
		if lvl == nil {
			break
		}
		if taker.Type == common.Limit {
			if taker.Side == common.Buy && lvl.price > taker.Price {
				break
			}
			if taker.Side == common.Sell && lvl.price < taker.Price {
				break
			}
		}

		maker := lvl.head
		if maker.order.Owner == taker.Owner {
			switch e.rules.cfg.STP {
			case StpCancelTaker:
				taker.Qty = 0
				out.Reason = common.ReasonSelfTradePrevented
				return
			case StpCancelMaker:
				e.book.removeHead(lvl)
				continue
			}
		}

		q := minQty(taker.Qty, maker.order.Qty)
		out.Trades = append(out.Trades, e.makeTrade(taker.Ts, lvl.price, q, maker.order.ID, taker.ID))
		taker.Qty -= q
		e.book.reduceHead(lvl, q)
	}
}

// processAtLast handles the trading-at-last phase: execution is pinned
// to the last trade price and never interacts with bands or the breaker.
func (e *MatchingEngine) processAtLast(out *MatchResult, incoming common.Order) {
	last := e.rules.LastTradePrice()
	if last == nil {
		out.Status = common.Rejected
		out.Reason = common.ReasonNoReferencePrice
		return
	}
	if incoming.Type == common.Limit && incoming.Price != *last {
		out.Status = common.Rejected
		out.Reason = common.ReasonPriceNotAtLast
		return
	}
	incoming.Type = common.Limit
	incoming.Price = *last

	e.execute(out, incoming)
	e.rules.OnTrades(out.Trades)
}

// availableLiquidity sums the opposite-side depth eligible for taker,
// level by level, stopping once the sum reaches taker.Qty (the result may
// exceed it). Used by the FOK preflight.
func (e *MatchingEngine) availableLiquidity(taker common.Order) common.Qty {
	var acc common.Qty
	e.book.levels(taker.Side.Opposite()).Scan(func(lvl *level) bool {
		if taker.Type == common.Limit {
			if taker.Side == common.Buy && lvl.price > taker.Price {
				return false
			}
			if taker.Side == common.Sell && lvl.price < taker.Price {
				return false
			}
		}
		acc += lvl.totalQty
		return acc < taker.Qty
	})
	return acc
}

// referencePrice is the last trade price when known, else the midprice.
func (e *MatchingEngine) referencePrice() *common.Price {
	if last := e.rules.LastTradePrice(); last != nil {
		return last
	}
	return common.Midprice(e.book.BestBid(), e.book.BestAsk())
}

// firstExecutionPrice is the price the first fill of incoming would
// print at: the top of the opposite book, or nil if a limit does not
// cross (or the opposite side is empty).
func (e *MatchingEngine) firstExecutionPrice(incoming common.Order) *common.Price {
	var top *common.Price
	if incoming.Side == common.Buy {
		top = e.book.BestAsk()
		if top != nil && incoming.Type == common.Limit && incoming.Price < *top {
			return nil
		}
	} else {
		top = e.book.BestBid()
		if top != nil && incoming.Type == common.Limit && incoming.Price > *top {
			return nil
		}
	}
	return top
}

func (e *MatchingEngine) breachesPriceBand(exec, ref common.Price) bool {
	bps := e.rules.cfg.BandBps
	lo := ref * (10000 - bps) / 10000
	hi := ref * (10000 + bps) / 10000
	return exec < lo || exec > hi
}

func (e *MatchingEngine) shouldTriggerVolatilityAuction(incoming common.Order) bool {
	cfg := e.rules.cfg
	if !cfg.EnablePriceBands || !cfg.EnableVolatilityInterruption {
		return false
	}
	exec := e.firstExecutionPrice(incoming)
	if exec == nil {
		return false
	}
	ref := e.referencePrice()
	if ref == nil {
		return false
	}
	return e.breachesPriceBand(*exec, *ref)
}

func prepend(head, tail []common.Trade) []common.Trade {
	if len(head) == 0 {
		return tail
	}
	return append(head, tail...)
}

func minQty(a, b common.Qty) common.Qty {
	if a < b {
		return a
	}
	return b
}

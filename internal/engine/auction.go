package engine

import (
	"sort"

	"skoll/internal/common"
)

// computeClearingPrice picks the candidate price maximizing executable
// volume. Candidates are the limit prices present in the auction queue.
// Ties break toward the reference price when one is known, else toward
// the lowest candidate.
func (e *MatchingEngine) computeClearingPrice() (common.Price, bool) {
	seen := make(map[common.Price]struct{})
	candidates := make([]common.Price, 0, len(e.auctionQueue))
	for i := range e.auctionQueue {
		o := &e.auctionQueue[i]
		if o.Type != common.Limit {
			continue
		}
		if _, dup := seen[o.Price]; dup {
			continue
		}
		seen[o.Price] = struct{}{}
		candidates = append(candidates, o.Price)
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	ref := e.referencePrice()

	var bestPx common.Price
	var bestVol common.Qty
	found := false
	for _, px := range candidates {
		vol := e.executableVolumeAt(px)
		if vol <= 0 {
			continue
		}
		better := !found || vol > bestVol
		if found && vol == bestVol && ref != nil &&
			absPrice(px-*ref) < absPrice(bestPx-*ref) {
			better = true
		}
		if better {
			bestPx, bestVol, found = px, vol, true
		}
	}
	return bestPx, found
}

// executableVolumeAt is min(eligible buy qty, eligible sell qty) at px.
// Market orders are always eligible; limits are eligible when they would
// trade at px or better.
func (e *MatchingEngine) executableVolumeAt(px common.Price) common.Qty {
	var buys, sells common.Qty
	for i := range e.auctionQueue {
		o := &e.auctionQueue[i]
		eligible := o.Type == common.Market ||
			(o.Side == common.Buy && o.Price >= px) ||
			(o.Side == common.Sell && o.Price <= px)
		if !eligible {
			continue
		}
		if o.Side == common.Buy {
			buys += o.Qty
		} else {
			sells += o.Qty
		}
	}
	return minQty(buys, sells)
}

// uncrossAuction matches the queued interest at a single clearing price.
// Residual and ineligible limits re-enter the book; market residue is
// dropped. Uncross trades conventionally print maker=sell, taker=buy;
// consumers must not infer the aggressor from that pair.
func (e *MatchingEngine) uncrossAuction(uncrossTs common.Ts) []common.Trade {
	if len(e.auctionQueue) == 0 {
		return nil
	}

	// The clearing price is computed over the queue, so read it before
	// the queue is taken.
	clearing, ok := e.computeClearingPrice()
	queue := e.auctionQueue
	e.auctionQueue = nil
	if !ok {
		// No crossing interest: everything limit rests, markets drop.
		e.restLeftovers(queue)
		return nil
	}

	var buys, sells []*common.Order
	for i := range queue {
		o := &queue[i]
		eligible := o.Type == common.Market ||
			(o.Side == common.Buy && o.Price >= clearing) ||
			(o.Side == common.Sell && o.Price <= clearing)
		if !eligible {
			continue
		}
		if o.Side == common.Buy {
			buys = append(buys, o)
		} else {
			sells = append(sells, o)
		}
	}
	byArrival := func(s []*common.Order) {
		sort.SliceStable(s, func(i, j int) bool {
			if s[i].Ts != s[j].Ts {
				return s[i].Ts < s[j].Ts
			}
			return s[i].ID < s[j].ID
		})
	}
	byArrival(buys)
	byArrival(sells)

	var trades []common.Trade
	bi, si := 0, 0
	for bi < len(buys) && si < len(sells) {
		b, s := buys[bi], sells[si]
		q := minQty(b.Qty, s.Qty)
		trades = append(trades, e.makeTrade(uncrossTs, clearing, q, s.ID, b.ID))
		b.Qty -= q
		s.Qty -= q
		if b.Qty == 0 {
			bi++
		}
		if s.Qty == 0 {
			si++
		}
	}

	e.restLeftovers(queue)
	return trades
}

// restLeftovers re-enters every queued limit with remaining quantity
// into the book, in queue order, and drops market residue.
func (e *MatchingEngine) restLeftovers(queue []common.Order) {
	for i := range queue {
		o := queue[i]
		if o.Type != common.Limit || o.Qty <= 0 {
			continue
		}
		_ = e.book.AddRestingLimit(o)
	}
}

func absPrice(p common.Price) common.Price {
	if p < 0 {
		return -p
	}
	return p
}

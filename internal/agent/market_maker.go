package agent

import "skoll/internal/common"

// MarketMakerParams controls the two-sided quote.
type MarketMakerParams struct {
	RefreshNs    common.Ts // re-quote interval in exchange time
	SpreadTicks  common.Price
	QuoteQty     common.Qty
	SkewPerUnit  int64 // ticks of quote shift per unit of inventory
	MaxSkewTicks int64
	TickSize     common.Price
	LotSize      common.Qty
	MinQty       common.Qty
}

func DefaultMarketMakerParams() MarketMakerParams {
	return MarketMakerParams{
		RefreshNs:    50_000_000,
		SpreadTicks:  4,
		QuoteQty:     20,
		SkewPerUnit:  1,
		MaxSkewTicks: 10,
		TickSize:     1,
		LotSize:      1,
		MinQty:       1,
	}
}

// MarketMaker keeps one bid and one ask around the reference price,
// skewed against its inventory. On each refresh it cancels the previous
// pair before quoting anew.
type MarketMaker struct {
	owner common.OwnerID
	p     MarketMakerParams

	localSeq      uint32
	nextRefreshTs common.Ts
	bidID         common.OrderID
	askID         common.OrderID
}

func NewMarketMaker(owner common.OwnerID, p MarketMakerParams) *MarketMaker {
	return &MarketMaker{owner: owner, p: p}
}

func (m *MarketMaker) Owner() common.OwnerID { return m.owner }

// Seed satisfies Agent; the quoting policy itself is deterministic.
func (m *MarketMaker) Seed(uint64) {}

func (m *MarketMaker) nextID() common.OrderID {
	m.localSeq++
	return ScopedOrderID(m.owner, m.localSeq)
}

func (m *MarketMaker) Step(ts common.Ts, view MarketView, self State, out *[]Action) {
	tick := m.p.TickSize
	if tick <= 0 {
		tick = 1
	}
	lot := m.p.LotSize
	if lot <= 0 {
		lot = 1
	}

	if ts < m.nextRefreshTs {
		return
	}
	m.nextRefreshTs = ts + m.p.RefreshNs

	// Cancel old quotes; failures just mean they were already filled.
	if m.bidID != 0 {
		*out = append(*out, Cancel(m.bidID))
	}
	if m.askID != 0 {
		*out = append(*out, Cancel(m.askID))
	}

	ref := 100 * tick
	switch {
	case view.Mid != nil:
		ref = *view.Mid
	case view.LastTrade != nil:
		ref = *view.LastTrade
	}

	// Inventory skew: long inventory pushes quotes down, short up.
	skew := self.Position * m.p.SkewPerUnit
	if skew > m.p.MaxSkewTicks {
		skew = m.p.MaxSkewTicks
	}
	if skew < -m.p.MaxSkewTicks {
		skew = -m.p.MaxSkewTicks
	}

	half := m.p.SpreadTicks / 2
	rem := m.p.SpreadTicks - half

	bidPx := clampPrice(ref-half-common.Price(skew), tick)
	askPx := clampPrice(ref+rem-common.Price(skew), tick)

	// Snap to the grid: bid down, ask up.
	bidPx = (bidPx / tick) * tick
	askPx = ((askPx + tick - 1) / tick) * tick
	if askPx <= bidPx {
		askPx = bidPx + tick
	}

	qty := m.p.QuoteQty
	if qty < m.p.MinQty {
		qty = m.p.MinQty
	}
	if qty%lot != 0 {
		qty = (qty/lot + 1) * lot
	}

	bid := common.Order{
		ID: m.nextID(), Ts: ts, Side: common.Buy, Type: common.Limit,
		Price: bidPx, Qty: qty, Owner: m.owner, TIF: common.GTC,
	}
	ask := common.Order{
		ID: m.nextID(), Ts: ts, Side: common.Sell, Type: common.Limit,
		Price: askPx, Qty: qty, Owner: m.owner, TIF: common.GTC,
	}
	m.bidID = bid.ID
	m.askID = ask.ID
	*out = append(*out, Submit(bid), Submit(ask))
}

func clampPrice(px, tick common.Price) common.Price {
	if px < tick {
		return tick
	}
	return px
}

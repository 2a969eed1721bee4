package agent

import "skoll/internal/common"

// NoiseTraderConfig shapes the random flow. Tick, lot, and minimum
// quantity mirror the exchange grid so generated orders pass admission.
type NoiseTraderConfig struct {
	IntensityPerStep float64 // probability of acting on a given tick
	ProbMarket       float64 // market-vs-limit mixture
	MaxOffsetTicks   int64   // limit placement distance from reference
	MinQty           common.Qty
	MaxQty           common.Qty
	TickSize         common.Price
	LotSize          common.Qty
	DefaultMid       common.Price // reference before any quote exists
}

func DefaultNoiseTraderConfig() NoiseTraderConfig {
	return NoiseTraderConfig{
		IntensityPerStep: 0.30,
		ProbMarket:       0.15,
		MaxOffsetTicks:   5,
		MinQty:           1,
		MaxQty:           10,
		TickSize:         1,
		LotSize:          1,
		DefaultMid:       100,
	}
}

// NoiseTrader submits uninformed flow: mostly passive limits placed a
// few ticks off the reference, occasionally an aggressive market order.
type NoiseTrader struct {
	owner    common.OwnerID
	cfg      NoiseTraderConfig
	rng      *Rng
	localSeq uint32
}

func NewNoiseTrader(owner common.OwnerID, cfg NoiseTraderConfig) *NoiseTrader {
	return &NoiseTrader{owner: owner, cfg: cfg, rng: NewRng(1)}
}

func (n *NoiseTrader) Owner() common.OwnerID { return n.owner }

func (n *NoiseTrader) Seed(seed uint64) { n.rng = NewRng(seed) }

func (n *NoiseTrader) snapToTick(p common.Price) common.Price {
	tick := n.cfg.TickSize
	if tick <= 0 {
		tick = 1
	}
	return (p / tick) * tick
}

func (n *NoiseTrader) snapToLot(q common.Qty) common.Qty {
	lot := n.cfg.LotSize
	if lot <= 0 {
		lot = 1
	}
	if q < n.cfg.MinQty {
		q = n.cfg.MinQty
	}
	return (q / lot) * lot
}

func (n *NoiseTrader) nextID() common.OrderID {
	n.localSeq++
	return ScopedOrderID(n.owner, n.localSeq)
}

func (n *NoiseTrader) Step(ts common.Ts, view MarketView, _ State, out *[]Action) {
	if n.rng.Uniform01() > n.cfg.IntensityPerStep {
		return
	}

	ref := n.cfg.DefaultMid
	if view.Mid != nil {
		ref = *view.Mid
	}

	side := common.Buy
	if n.rng.Uniform01() < 0.5 {
		side = common.Sell
	}

	qty := n.snapToLot(common.Qty(n.rng.IntN(n.cfg.MinQty, n.cfg.MaxQty)))
	if qty <= 0 {
		qty = maxQty(n.cfg.MinQty, n.cfg.LotSize)
	}

	o := common.Order{
		ID:    n.nextID(),
		Ts:    ts,
		Side:  side,
		Owner: n.owner,
		Qty:   qty,
	}

	if n.rng.Uniform01() < n.cfg.ProbMarket {
		o.Type = common.Market
		o.Price = 0
		o.TIF = common.IOC
		o.Style = common.PureMarket
	} else {
		o.Type = common.Limit
		off := n.rng.IntN(1, maxInt64(1, n.cfg.MaxOffsetTicks))
		px := ref
		if side == common.Buy {
			px = ref - off
		} else {
			px = ref + off
		}
		px = n.snapToTick(px)
		if px <= 0 {
			px = n.snapToTick(ref)
		}
		o.Price = px
		o.TIF = common.GTC
	}

	*out = append(*out, Submit(o))
}

func maxQty(a, b common.Qty) common.Qty {
	if a > b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

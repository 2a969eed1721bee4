package sim

import (
	"skoll/internal/agent"
	"skoll/internal/common"
)

// FlowParams shapes the synthetic Poisson order flow.
type FlowParams struct {
	// Arrival intensities, events per second.
	LambdaLimit  float64
	LambdaMarket float64
	LambdaCancel float64

	// Limit placement distance from the reference mid, in ticks.
	MaxOffsetTicks int64

	MinQty common.Qty
	MaxQty common.Qty

	// ReferenceMid is the fixed anchor for every limit placement; the
	// generator does not see the book, so its mid is never used.
	ReferenceMid common.Price
}

func DefaultFlowParams() FlowParams {
	return FlowParams{
		LambdaLimit:    50.0,
		LambdaMarket:   5.0,
		LambdaCancel:   10.0,
		MaxOffsetTicks: 20,
		MinQty:         1,
		MaxQty:         20,
		ReferenceMid:   10000,
	}
}

// FlowGenerator produces a deterministic event stream: exponential
// inter-arrival times from the combined intensity, event kind by
// intensity mixture, limits placed away from the mid so the book tends
// to stay two-sided.
type FlowGenerator struct {
	rng    *agent.Rng
	p      FlowParams
	nextID common.OrderID
}

func NewFlowGenerator(seed uint64, p FlowParams) *FlowGenerator {
	return &FlowGenerator{rng: agent.NewRng(seed), p: p, nextID: 1}
}

func (g *FlowGenerator) sampleSide() common.Side {
	if g.rng.Uniform01() < 0.5 {
		return common.Buy
	}
	return common.Sell
}

func (g *FlowGenerator) sampleQty() common.Qty {
	return common.Qty(g.rng.IntN(g.p.MinQty, g.p.MaxQty))
}

func (g *FlowGenerator) limitPriceAround(mid common.Price, side common.Side) common.Price {
	off := g.rng.IntN(1, max64(1, g.p.MaxOffsetTicks))
	if side == common.Buy {
		return mid - off
	}
	return mid + off
}

// sampleCancelID picks an already issued id at random; many cancels will
// miss, which the simulator just counts.
func (g *FlowGenerator) sampleCancelID() (common.OrderID, bool) {
	if g.nextID <= 5 {
		return 0, false
	}
	return common.OrderID(g.rng.IntN(1, int64(g.nextID-1))), true
}

// Generate emits events in [t0, t0 + horizonSeconds).
func (g *FlowGenerator) Generate(t0 common.Ts, horizonSeconds float64) []Event {
	var out []Event
	horizonNs := horizonSeconds * 1e9

	lambdaTotal := g.p.LambdaLimit + g.p.LambdaMarket + g.p.LambdaCancel
	if lambdaTotal <= 0 {
		return out
	}

	t := 0.0
	for {
		t += g.rng.Exp(lambdaTotal) * 1e9
		if t >= horizonNs {
			break
		}
		ts := t0 + common.Ts(t)

		u := g.rng.Uniform01() * lambdaTotal
		switch {
		case u < g.p.LambdaLimit:
			side := g.sampleSide()
			qty := g.sampleQty()
			px := g.limitPriceAround(g.p.ReferenceMid, side)
			out = append(out, AddLimit(g.issueID(), ts, side, px, qty, 1))
		case u < g.p.LambdaLimit+g.p.LambdaMarket:
			out = append(out, AddMarket(g.issueID(), ts, g.sampleSide(), g.sampleQty(), 2))
		default:
			if id, ok := g.sampleCancelID(); ok {
				out = append(out, Cancel(id, ts))
			}
		}
	}
	return out
}

func (g *FlowGenerator) issueID() common.OrderID {
	id := g.nextID
	g.nextID++
	return id
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

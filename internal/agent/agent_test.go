package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/common"
)

func TestSplitmix64_KnownStream(t *testing.T) {
	// Reference values for the canonical splitmix64 sequence from seed 0.
	state := uint64(0)
	assert.Equal(t, uint64(0xe220a8397b1dcdaf), Splitmix64(&state))
	assert.Equal(t, uint64(0x6e789e6aa1b965f4), Splitmix64(&state))
	assert.Equal(t, uint64(0x06c45d188009454f), Splitmix64(&state))
}

func TestRng_DeterministicPerSeed(t *testing.T) {
	a := NewRng(42)
	b := NewRng(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}

	c := NewRng(43)
	assert.NotEqual(t, NewRng(42).Next(), c.Next())
}

func TestRng_IntNBounds(t *testing.T) {
	r := NewRng(7)
	for i := 0; i < 1000; i++ {
		v := r.IntN(3, 9)
		assert.GreaterOrEqual(t, v, int64(3))
		assert.LessOrEqual(t, v, int64(9))
	}
	assert.Equal(t, int64(5), r.IntN(5, 5))
	assert.Equal(t, int64(5), r.IntN(5, 2))
}

func TestDeriveSeed_VariesByIndex(t *testing.T) {
	s1, s2 := uint64(99), uint64(99)
	a0 := DeriveSeed(&s1, 0)
	b0 := DeriveSeed(&s2, 0)
	assert.Equal(t, a0, b0, "same world seed, same index, same stream")

	s3 := uint64(99)
	_ = DeriveSeed(&s3, 0)
	a1 := DeriveSeed(&s3, 1)
	assert.NotEqual(t, a0, a1)
}

func TestNoiseTrader_DeterministicAndOnGrid(t *testing.T) {
	cfg := DefaultNoiseTraderConfig()
	cfg.IntensityPerStep = 1.0 // always act
	cfg.TickSize = 5
	cfg.LotSize = 2
	cfg.MinQty = 2

	mid := common.Price(100)
	view := MarketView{Ts: 10, Mid: &mid}

	run := func() []Action {
		nt := NewNoiseTrader(3, cfg)
		nt.Seed(1234)
		var out []Action
		for ts := common.Ts(0); ts < 50; ts++ {
			view.Ts = ts
			nt.Step(ts, view, State{Owner: 3}, &out)
		}
		return out
	}

	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	assert.Equal(t, a, b, "same seed, same actions")

	for _, act := range a {
		require.Equal(t, ActionSubmit, act.Type)
		o := act.Order
		assert.Equal(t, common.OwnerID(3), o.Owner)
		assert.Positive(t, o.Qty)
		assert.Zero(t, o.Qty%cfg.LotSize, "qty on lot")
		if o.Type == common.Limit {
			assert.Zero(t, o.Price%cfg.TickSize, "price on tick")
			assert.Equal(t, common.GTC, o.TIF)
		} else {
			assert.Equal(t, common.IOC, o.TIF)
			assert.Zero(t, o.Price)
		}
	}
}

func TestNoiseTrader_ScopedIDsNeverCollide(t *testing.T) {
	cfg := DefaultNoiseTraderConfig()
	cfg.IntensityPerStep = 1.0

	nt1 := NewNoiseTrader(1, cfg)
	nt2 := NewNoiseTrader(2, cfg)
	nt1.Seed(5)
	nt2.Seed(5)

	var out []Action
	for ts := common.Ts(0); ts < 100; ts++ {
		nt1.Step(ts, MarketView{Ts: ts}, State{}, &out)
		nt2.Step(ts, MarketView{Ts: ts}, State{}, &out)
	}

	seen := make(map[common.OrderID]struct{})
	for _, act := range out {
		_, dup := seen[act.Order.ID]
		assert.False(t, dup)
		seen[act.Order.ID] = struct{}{}
	}
}

func TestMarketMaker_QuotesAroundMidAndRefreshes(t *testing.T) {
	p := DefaultMarketMakerParams()
	p.RefreshNs = 10
	p.SpreadTicks = 4
	mm := NewMarketMaker(2, p)

	mid := common.Price(100)
	view := MarketView{Ts: 0, Mid: &mid}

	// 1. First step quotes both sides, no cancels yet.
	var out []Action
	mm.Step(0, view, State{Owner: 2}, &out)
	require.Len(t, out, 2)
	bid, ask := out[0].Order, out[1].Order
	assert.Equal(t, common.Buy, bid.Side)
	assert.Equal(t, common.Sell, ask.Side)
	assert.Equal(t, common.Price(98), bid.Price)
	assert.Equal(t, common.Price(102), ask.Price)
	assert.Less(t, bid.Price, ask.Price)

	// 2. Before the refresh interval nothing happens.
	out = out[:0]
	mm.Step(5, view, State{Owner: 2}, &out)
	assert.Empty(t, out)

	// 3. On refresh the old pair is cancelled before re-quoting.
	out = out[:0]
	mm.Step(10, view, State{Owner: 2}, &out)
	require.Len(t, out, 4)
	assert.Equal(t, ActionCancel, out[0].Type)
	assert.Equal(t, bid.ID, out[0].ID)
	assert.Equal(t, ActionCancel, out[1].Type)
	assert.Equal(t, ask.ID, out[1].ID)
	assert.Equal(t, ActionSubmit, out[2].Type)
	assert.Equal(t, ActionSubmit, out[3].Type)
}

func TestMarketMaker_InventorySkewShiftsQuotes(t *testing.T) {
	p := DefaultMarketMakerParams()
	p.RefreshNs = 1
	mid := common.Price(100)
	view := MarketView{Mid: &mid}

	flat := NewMarketMaker(2, p)
	long := NewMarketMaker(2, p)

	var flatOut, longOut []Action
	flat.Step(0, view, State{Owner: 2, Position: 0}, &flatOut)
	long.Step(0, view, State{Owner: 2, Position: 5}, &longOut)

	require.Len(t, flatOut, 2)
	require.Len(t, longOut, 2)
	// Long inventory leans quotes down to shed the position.
	assert.Less(t, longOut[0].Order.Price, flatOut[0].Order.Price)
	assert.Less(t, longOut[1].Order.Price, flatOut[1].Order.Price)
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/common"
)

func TestVolatilityInterruption_TriggersAndUncrosses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BandBps = 100 // 1%
	cfg.VolAuctionDurationNs = 5
	cfg.EnableCircuitBreaker = false
	eng := newTestEngine(cfg)

	// 1. Seed the reference trade at 10000.
	require.NotNil(t, eng.Process(limitOrder(1, 1, common.Sell, 10000, 1, 2)).Resting)
	res := eng.Process(marketOrder(2, 2, common.Buy, 1, 3))
	require.Len(t, res.Trades, 1)

	// 2. Only far-away liquidity remains; an aggressive buy breaches the band.
	require.NotNil(t, eng.Process(limitOrder(3, 3, common.Sell, 12000, 10, 9)).Resting)

	res = eng.Process(marketOrder(10, 10, common.Buy, 5, 7))
	assert.Empty(t, res.Trades)
	assert.Equal(t, common.Accepted, res.Status)
	assert.Equal(t, common.Auction, eng.Rules().Phase())

	// 3. Two-sided interest arrives during the auction and just queues.
	assert.Empty(t, eng.Process(limitOrder(11, 11, common.Buy, 11800, 5, 1)).Trades)
	assert.Empty(t, eng.Process(limitOrder(12, 12, common.Buy, 11900, 5, 1)).Trades)
	assert.Empty(t, eng.Process(limitOrder(13, 13, common.Sell, 11800, 6, 2)).Trades)
	assert.Empty(t, eng.Process(limitOrder(14, 14, common.Sell, 11900, 2, 2)).Trades)

	// 4. A benign order past end_ts flushes the uncross first.
	res = eng.Process(limitOrder(15, 20, common.Buy, 1, 1, 8))
	assert.Equal(t, common.Continuous, eng.Rules().Phase())
	require.NotEmpty(t, res.Trades)

	// All uncross trades print at one clearing price with the uncross ts.
	clearing := res.Trades[0].Price
	for _, tr := range res.Trades {
		assert.Equal(t, clearing, tr.Price)
		assert.Equal(t, common.Ts(15), tr.Ts, "uncross trades carry auction end ts")
	}
	assert.Equal(t, common.Price(11900), clearing, "volume-maximizing price")

	var vol common.Qty
	for _, tr := range res.Trades {
		vol += tr.Qty
	}
	assert.Equal(t, common.Qty(8), vol)

	// 5. Residual and ineligible limits rest; the aggressor market residue
	// is gone.
	bids := eng.Book().Depth(common.Buy, 3)
	require.Len(t, bids, 3)
	assert.Equal(t, common.Price(11900), bids[0].Price)
	assert.Equal(t, common.Qty(2), bids[0].TotalQty)
	assert.Equal(t, common.Price(11800), bids[1].Price)
	assert.Equal(t, common.Qty(5), bids[1].TotalQty)
	assert.False(t, eng.Book().IsCrossed())
}

func TestUncross_MakerSellTakerBuyConvention(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCircuitBreaker = false
	eng := newTestEngine(cfg)

	eng.StartClosingAuction(100)
	eng.Process(limitOrder(1, 10, common.Sell, 100, 5, 1))
	eng.Process(limitOrder(2, 11, common.Buy, 100, 5, 2))

	trades := eng.Flush(100)
	require.Len(t, trades, 1)
	assert.Equal(t, common.OrderID(1), trades[0].MakerOrderID, "sell side is maker by convention")
	assert.Equal(t, common.OrderID(2), trades[0].TakerOrderID)
	assert.Equal(t, common.Closed, eng.Rules().Phase())
}

func TestUncross_NoClearingPriceRestsLimitsDropsMarkets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCircuitBreaker = false
	eng := newTestEngine(cfg)

	// One-sided interest: no price can cross.
	eng.StartClosingAuction(100)
	eng.Process(limitOrder(1, 10, common.Buy, 95, 5, 1))
	eng.Process(limitOrder(2, 11, common.Buy, 96, 5, 1))
	eng.Process(marketOrder(3, 12, common.Buy, 7, 2))

	trades := eng.Flush(100)
	assert.Empty(t, trades)
	assert.Equal(t, common.Closed, eng.Rules().Phase())

	bids := eng.Book().Depth(common.Buy, 5)
	require.Len(t, bids, 2)
	assert.Equal(t, common.Price(96), bids[0].Price)
	assert.True(t, eng.Book().Empty(common.Sell))
}

func TestUncross_TieBreaksTowardReference(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCircuitBreaker = false
	eng := newTestEngine(cfg)

	// Reference trade at 100.
	eng.Process(limitOrder(1, 1, common.Sell, 100, 1, 1))
	eng.Process(marketOrder(2, 2, common.Buy, 1, 2))

	// Both 99 and 103 clear the same volume; 99 is closer to 100.
	eng.StartClosingAuction(50)
	eng.Process(limitOrder(3, 10, common.Buy, 103, 4, 1))
	eng.Process(limitOrder(4, 11, common.Sell, 99, 4, 2))

	trades := eng.Flush(50)
	require.NotEmpty(t, trades)
	assert.Equal(t, common.Price(99), trades[0].Price)
}

func TestUncross_AuctionTimePriority(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCircuitBreaker = false
	eng := newTestEngine(cfg)

	eng.StartClosingAuction(100)
	// Two sells at the same eligible price; the earlier one fills first.
	eng.Process(limitOrder(1, 10, common.Sell, 100, 3, 1))
	eng.Process(limitOrder(2, 12, common.Sell, 100, 3, 2))
	eng.Process(limitOrder(3, 11, common.Buy, 100, 4, 3))

	trades := eng.Flush(100)
	require.Len(t, trades, 2)
	assert.Equal(t, common.OrderID(1), trades[0].MakerOrderID)
	assert.Equal(t, common.Qty(3), trades[0].Qty)
	assert.Equal(t, common.OrderID(2), trades[1].MakerOrderID)
	assert.Equal(t, common.Qty(1), trades[1].Qty)
}

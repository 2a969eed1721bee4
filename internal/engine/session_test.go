package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/common"
)

func seedLastTrade(t *testing.T, eng *MatchingEngine, px common.Price) {
	t.Helper()
	require.NotNil(t, eng.Process(limitOrder(9001, 1, common.Sell, px, 1, 101)).Resting)
	res := eng.Process(marketOrder(9002, 2, common.Buy, 1, 102))
	require.Len(t, res.Trades, 1)
}

func TestTradingAtLast_PinsExecutionToLastPrice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCircuitBreaker = false
	eng := newTestEngine(cfg)

	seedLastTrade(t, eng, 100)
	require.NotNil(t, eng.Process(limitOrder(1, 3, common.Sell, 100, 5, 1)).Resting)

	eng.StartTradingAtLast(50)

	// 1. Off-last limits are rejected.
	res := eng.Process(limitOrder(2, 10, common.Buy, 99, 5, 2))
	assert.Equal(t, common.Rejected, res.Status)
	assert.Equal(t, common.ReasonPriceNotAtLast, res.Reason)

	// 2. A market order is coerced to a limit at last and executes there.
	res = eng.Process(marketOrder(3, 11, common.Buy, 3, 2))
	require.Len(t, res.Trades, 1)
	assert.Equal(t, common.Price(100), res.Trades[0].Price)

	// 3. The window expires on flush and continuous trading resumes.
	assert.Empty(t, eng.Flush(50))
	assert.Equal(t, common.Continuous, eng.Rules().Phase())
}

func TestTradingAtLast_RequiresReferencePrice(t *testing.T) {
	eng := newTestEngine(DefaultConfig())
	eng.StartTradingAtLast(50)

	res := eng.Process(limitOrder(1, 10, common.Buy, 100, 5, 2))
	assert.Equal(t, common.Rejected, res.Status)
	assert.Equal(t, common.ReasonNoReferencePrice, res.Reason)
}

func TestCircuitBreaker_TriggersHaltAndDrainsBook(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CBDropBps = 1000
	cfg.CBHaltDurationNs = 10
	cfg.CBReopenAuctionDurationNs = 5
	eng := newTestEngine(cfg)

	// 1. Reference latches at 10000 on the first trade.
	seedLastTrade(t, eng, 10000)

	// 2. Build a book, then print at exactly the 10% floor.
	require.NotNil(t, eng.Process(limitOrder(1, 3, common.Buy, 9000, 5, 1)).Resting)
	require.NotNil(t, eng.Process(limitOrder(2, 4, common.Sell, 10500, 5, 2)).Resting)

	res := eng.Process(marketOrder(3, 5, common.Sell, 1, 3))
	require.Len(t, res.Trades, 1)
	assert.Equal(t, common.Price(9000), res.Trades[0].Price)
	assert.Equal(t, common.Halted, eng.Rules().Phase())

	// The frozen book moved into the reopening queue wholesale.
	assert.True(t, eng.Book().Empty(common.Buy))
	assert.True(t, eng.Book().Empty(common.Sell))
	assert.Len(t, eng.auctionQueue, 2)

	// 3. New entry during the halt is rejected.
	res = eng.Process(limitOrder(4, 6, common.Buy, 9000, 1, 4))
	assert.Equal(t, common.Rejected, res.Status)
	assert.Equal(t, common.ReasonMarketHalted, res.Reason)

	// 4. Flush past halt end cascades into the reopen auction and its
	// uncross, and the surviving quotes re-enter the book.
	trades := eng.Flush(100)
	assert.Equal(t, common.Continuous, eng.Rules().Phase())
	assert.Empty(t, trades, "frozen quotes did not cross")
	require.Len(t, eng.Book().Depth(common.Buy, 1), 1)
	require.Len(t, eng.Book().Depth(common.Sell, 1), 1)
	assert.Equal(t, common.Price(9000), eng.Book().Depth(common.Buy, 1)[0].Price)
	assert.Equal(t, common.Price(10500), eng.Book().Depth(common.Sell, 1)[0].Price)
}

func TestCircuitBreaker_ReferenceNeverResets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CBDropBps = 1000
	cfg.CBHaltDurationNs = 1
	cfg.CBReopenAuctionDurationNs = 1
	eng := newTestEngine(cfg)

	seedLastTrade(t, eng, 10000)
	require.NotNil(t, eng.cbRefPrice)
	ref := *eng.cbRefPrice

	// Trade well above the floor: no trigger, reference unchanged.
	require.NotNil(t, eng.Process(limitOrder(1, 3, common.Sell, 10200, 1, 1)).Resting)
	res := eng.Process(marketOrder(2, 4, common.Buy, 1, 2))
	require.Len(t, res.Trades, 1)
	assert.Equal(t, common.Continuous, eng.Rules().Phase())
	assert.Equal(t, ref, *eng.cbRefPrice)
}

func TestFlush_TransitionsAreIdempotentWhenNotDue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCircuitBreaker = false
	eng := newTestEngine(cfg)

	eng.StartClosingAuction(100)
	assert.Empty(t, eng.Flush(99))
	assert.Equal(t, common.ClosingAuction, eng.Rules().Phase())

	assert.Empty(t, eng.Flush(100))
	assert.Equal(t, common.Closed, eng.Rules().Phase())
}

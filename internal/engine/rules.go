package engine

import "skoll/internal/common"

// Config enumerates the session rules. All prices are ticks, all
// durations exchange-time nanoseconds.
type Config struct {
	EnforceHalt           bool
	QueueOrdersDuringHalt bool

	// Admission grid
	TickSize common.Price
	LotSize  common.Qty
	MinQty   common.Qty

	// Self-trade prevention
	STP StpMode

	// Price bands + volatility interruption
	EnablePriceBands             bool
	BandBps                      int64
	EnableVolatilityInterruption bool
	VolAuctionDurationNs         common.Ts

	// Circuit breaker
	EnableCircuitBreaker      bool
	CBDropBps                 int64
	CBHaltDurationNs          common.Ts
	CBReopenAuctionDurationNs common.Ts
}

type StpMode uint8

const (
	StpNone StpMode = iota
	StpCancelTaker
	StpCancelMaker
)

// DefaultConfig mirrors the live defaults: 12.5% bands with a 5s
// volatility auction, circuit breaker at a 10% drop with a 10s halt and
// 5s reopening auction.
func DefaultConfig() Config {
	return Config{
		EnforceHalt:                  true,
		TickSize:                     1,
		LotSize:                      1,
		MinQty:                       1,
		EnablePriceBands:             true,
		BandBps:                      1250,
		EnableVolatilityInterruption: true,
		VolAuctionDurationNs:         5_000_000_000,
		EnableCircuitBreaker:         true,
		CBDropBps:                    1000,
		CBHaltDurationNs:             10_000_000_000,
		CBReopenAuctionDurationNs:    5_000_000_000,
	}
}

// Decision is the outcome of admission validation.
type Decision struct {
	Accept bool
	Reason common.RejectReason
}

// RuleSet owns admission validation, the current market phase, and the
// last-trade memory. Only the MatchingEngine transitions phases.
type RuleSet struct {
	cfg       Config
	phase     common.MarketPhase
	lastTrade *common.Price
}

func NewRuleSet(cfg Config) *RuleSet {
	return &RuleSet{cfg: cfg, phase: common.Continuous}
}

func (r *RuleSet) Config() Config { return r.cfg }

func (r *RuleSet) ConfigMut() *Config { return &r.cfg }

func (r *RuleSet) Phase() common.MarketPhase { return r.phase }

func (r *RuleSet) setPhase(p common.MarketPhase) { r.phase = p }

// LastTradePrice returns the most recent trade price, or nil before the
// first trade.
func (r *RuleSet) LastTradePrice() *common.Price {
	if r.lastTrade == nil {
		return nil
	}
	px := *r.lastTrade
	return &px
}

// PreAccept validates an incoming order. First failure wins; the check
// order is fixed: validity, halt, tick grid, minimum quantity, lot grid.
func (r *RuleSet) PreAccept(o common.Order) Decision {
	if !o.Valid() {
		return Decision{false, common.ReasonInvalidOrder}
	}
	if r.phase == common.Halted && r.cfg.EnforceHalt && !r.cfg.QueueOrdersDuringHalt {
		return Decision{false, common.ReasonMarketHalted}
	}
	if o.Type == common.Limit && r.cfg.TickSize > 0 && o.Price%r.cfg.TickSize != 0 {
		return Decision{false, common.ReasonPriceNotOnTick}
	}
	if o.Qty < r.cfg.MinQty {
		return Decision{false, common.ReasonQtyBelowMinimum}
	}
	if r.cfg.LotSize > 0 && o.Qty%r.cfg.LotSize != 0 {
		return Decision{false, common.ReasonQtyNotOnLot}
	}
	return Decision{Accept: true, Reason: common.ReasonNone}
}

// OnTrades updates the last-trade memory.
func (r *RuleSet) OnTrades(trades []common.Trade) {
	for i := range trades {
		px := trades[i].Price
		r.lastTrade = &px
	}
}

// Package world hosts the live harness: a single worker goroutine owns
// the matching engine, participants, ledger, and bounded read caches,
// while external callers enqueue commands and read snapshots under a
// shared lock.
package world

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skoll/internal/agent"
	"skoll/internal/common"
	"skoll/internal/engine"
)

const (
	maxCacheTrades = 50_000
	maxCacheTops   = 200_000
	depthLevels    = 20
)

// Config tunes the tick loop.
type Config struct {
	// DtNs is the exchange-time step per tick.
	DtNs common.Ts
	// WallClock makes the worker sleep DtNs of real time per tick and
	// keep serving reads after the horizon. Off, the loop runs flat out
	// and the worker exits at the horizon (offline/batch mode).
	WallClock bool
}

type commandType uint8

const (
	cmdSubmit commandType = iota
	cmdCancel
	cmdModifyQty
)

type command struct {
	typ    commandType
	order  common.Order
	id     common.OrderID
	newQty common.Qty
}

// Ack answers a submit before the order is applied: the id is assigned
// immediately and admission runs against the current rule state, so a
// Rejected ack means the command was dropped, not queued.
type Ack struct {
	ID     common.OrderID
	Status common.OrderStatus
	Reason common.RejectReason
}

// BookTop is one top-of-book observation.
type BookTop struct {
	Ts      common.Ts
	BestBid *common.Price
	BestAsk *common.Price
	Mid     *common.Price
}

// Snapshot is the read projection served to gateways.
type Snapshot struct {
	Ts           common.Ts
	BestBid      *common.Price
	BestAsk      *common.Price
	Mid          *common.Price
	LastTrade    *common.Price
	Phase        common.MarketPhase
	RecentTrades []common.Trade // newest first
}

// MidPoint is one element of the mid series.
type MidPoint struct {
	Ts  common.Ts
	Mid *common.Price
}

// BookDepth is a bounded L2 view of both sides.
type BookDepth struct {
	Bids []common.LevelSummary
	Asks []common.LevelSummary
}

// AccountRow is one owner's ledger line at a point in time.
type AccountRow struct {
	Owner common.OwnerID
	Account
}

// LiveWorld couples the engine to in-process participants and external
// order entry under a single-writer discipline. The worker goroutine is
// the only mutator; mu guards everything below it.
type LiveWorld struct {
	mu     sync.Mutex
	eng    *engine.MatchingEngine
	agents []agent.Agent
	ledger *Ledger

	pending  []command
	localSeq uint32

	curTs     common.Ts
	horizonNs common.Ts
	dtNs      common.Ts
	wallClock bool
	seed      uint64

	trades  []common.Trade // oldest first, bounded
	tops    []BookTop      // oldest first, bounded
	topsCap int
	depth   BookDepth

	t       *tomb.Tomb
	started bool
}

func NewLiveWorld(eng *engine.MatchingEngine) *LiveWorld {
	return &LiveWorld{
		eng:    eng,
		ledger: NewLedger(),
	}
}

// AddAgent registers a participant. Insertion order is part of the
// determinism contract; call before Start.
func (w *LiveWorld) AddAgent(a agent.Agent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.agents = append(w.agents, a)
}

// Start seeds the participants and launches the worker. Participant
// seeds derive from the world seed via splitmix64 mixed with insertion
// index, so a fixed configuration replays identically.
func (w *LiveWorld) Start(seed uint64, horizonSeconds float64, cfg Config) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.seed = seed
	w.horizonNs = common.Ts(horizonSeconds * 1e9)
	w.dtNs = cfg.DtNs
	if w.dtNs <= 0 {
		w.dtNs = 1
	}
	w.wallClock = cfg.WallClock

	w.topsCap = int(w.horizonNs/w.dtNs) + 1
	if w.topsCap > maxCacheTops {
		w.topsCap = maxCacheTops
	}

	sm := seed
	for i, a := range w.agents {
		a.Seed(agent.DeriveSeed(&sm, i))
	}

	w.t = &tomb.Tomb{}
	w.t.Go(w.loop)
	log.Info().
		Uint64("seed", seed).
		Float64("horizon_s", horizonSeconds).
		Int64("dt_ns", w.dtNs).
		Int("agents", len(w.agents)).
		Msg("live world started")
}

// Stop signals the worker and joins it. Outstanding queued commands are
// discarded.
func (w *LiveWorld) Stop() {
	w.mu.Lock()
	t := w.t
	w.mu.Unlock()
	if t == nil {
		return
	}
	t.Kill(nil)
	_ = t.Wait()
	log.Info().Msg("live world stopped")
}

// Wait blocks until the worker exits (horizon reached in batch mode, or
// Stop was called).
func (w *LiveWorld) Wait() error {
	w.mu.Lock()
	t := w.t
	w.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Wait()
}

func (w *LiveWorld) loop() error {
	var ticker *time.Ticker
	if w.wallClock {
		ticker = time.NewTicker(time.Duration(w.dtNs))
		defer ticker.Stop()
	}

	for {
		w.mu.Lock()
		stepped := false
		if w.curTs <= w.horizonNs {
			w.tick(w.curTs)
			w.curTs += w.dtNs
			stepped = true
		}
		w.mu.Unlock()

		if !w.wallClock {
			// Batch mode: run flat out and exit at the horizon.
			if !stepped {
				return nil
			}
			select {
			case <-w.t.Dying():
				return nil
			default:
			}
			continue
		}

		// Past the horizon the worker idles but keeps serving reads.
		select {
		case <-w.t.Dying():
			return nil
		case <-ticker.C:
		}
	}
}

// tick runs one deterministic step under the lock: flush, manual
// commands in FIFO order, participant steps in insertion order, then the
// top-of-book record.
func (w *LiveWorld) tick(ts common.Ts) {
	w.applyTrades(w.eng.Flush(ts))

	pending := w.pending
	w.pending = nil
	for i := range pending {
		w.applyCommand(ts, pending[i])
	}

	view := w.makeView(ts)
	for _, a := range w.agents {
		self := agent.State{Owner: a.Owner()}
		if acct, ok := w.ledger.Account(a.Owner()); ok {
			self.CashTicks = acct.CashTicks
			self.Position = acct.Position
		}

		actions := make([]agent.Action, 0, 8)
		a.Step(ts, view, self, &actions)
		for i := range actions {
			w.applyAction(ts, actions[i])
		}
	}

	w.recordTop(ts)
	w.depth = BookDepth{
		Bids: w.eng.Book().Depth(common.Buy, depthLevels),
		Asks: w.eng.Book().Depth(common.Sell, depthLevels),
	}
}

func (w *LiveWorld) applyCommand(ts common.Ts, c command) {
	switch c.typ {
	case cmdSubmit:
		o := c.order
		o.Ts = ts
		w.ledger.Register(o.ID, o.Owner, o.Side)
		res := w.eng.Process(o)
		w.applyTrades(res.Trades)
	case cmdCancel:
		_ = w.eng.Book().Cancel(c.id)
	case cmdModifyQty:
		_ = w.eng.Book().ModifyQty(c.id, c.newQty)
	}
}

func (w *LiveWorld) applyAction(ts common.Ts, act agent.Action) {
	switch act.Type {
	case agent.ActionSubmit:
		o := act.Order
		o.Ts = ts
		if o.ID == 0 {
			o.ID = w.nextManualID(o.Owner)
		}
		w.ledger.Register(o.ID, o.Owner, o.Side)
		res := w.eng.Process(o)
		w.applyTrades(res.Trades)
	case agent.ActionCancel:
		_ = w.eng.Book().Cancel(act.ID)
	case agent.ActionModifyQty:
		_ = w.eng.Book().ModifyQty(act.ID, act.NewQty)
	}
}

func (w *LiveWorld) applyTrades(trades []common.Trade) {
	if len(trades) == 0 {
		return
	}
	w.trades = append(w.trades, trades...)
	if over := len(w.trades) - maxCacheTrades; over > 0 {
		w.trades = w.trades[over:]
	}
	mid := common.Midprice(w.eng.Book().BestBid(), w.eng.Book().BestAsk())
	w.ledger.ApplyTrades(trades, mid)
}

func (w *LiveWorld) makeView(ts common.Ts) agent.MarketView {
	bb := w.eng.Book().BestBid()
	ba := w.eng.Book().BestAsk()
	return agent.MarketView{
		Ts:        ts,
		BestBid:   bb,
		BestAsk:   ba,
		Mid:       common.Midprice(bb, ba),
		LastTrade: w.eng.Rules().LastTradePrice(),
	}
}

func (w *LiveWorld) recordTop(ts common.Ts) {
	bb := w.eng.Book().BestBid()
	ba := w.eng.Book().BestAsk()
	w.tops = append(w.tops, BookTop{
		Ts:      ts,
		BestBid: bb,
		BestAsk: ba,
		Mid:     common.Midprice(bb, ba),
	})
	if over := len(w.tops) - w.topsCap; over > 0 {
		w.tops = w.tops[over:]
	}
}

func (w *LiveWorld) nextManualID(owner common.OwnerID) common.OrderID {
	w.localSeq++
	return agent.ScopedOrderID(owner, w.localSeq)
}

// SubmitOrder assigns an id when the caller left it zero, admits the
// order against the current rules, and enqueues it for the next tick.
func (w *LiveWorld) SubmitOrder(o common.Order) Ack {
	w.mu.Lock()
	defer w.mu.Unlock()

	if o.ID == 0 {
		o.ID = w.nextManualID(o.Owner)
	}
	if d := w.eng.Rules().PreAccept(o); !d.Accept {
		return Ack{ID: o.ID, Status: common.Rejected, Reason: d.Reason}
	}
	w.pending = append(w.pending, command{typ: cmdSubmit, order: o})
	return Ack{ID: o.ID, Status: common.Accepted, Reason: common.ReasonNone}
}

// CancelOrder enqueues a cancel; true means enqueued, not cancelled.
func (w *LiveWorld) CancelOrder(id common.OrderID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, command{typ: cmdCancel, id: id})
	return true
}

// ModifyQty enqueues a reduce-only modification.
func (w *LiveWorld) ModifyQty(id common.OrderID, newQty common.Qty) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, command{typ: cmdModifyQty, id: id, newQty: newQty})
	return true
}

// Snapshot copies the current top, last trade, phase, and up to
// maxTrades recent trades, newest first.
func (w *LiveWorld) Snapshot(maxTrades int) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	bb := w.eng.Book().BestBid()
	ba := w.eng.Book().BestAsk()
	s := Snapshot{
		Ts:        w.curTs,
		BestBid:   bb,
		BestAsk:   ba,
		Mid:       common.Midprice(bb, ba),
		LastTrade: w.eng.Rules().LastTradePrice(),
		Phase:     w.eng.Rules().Phase(),
	}
	n := maxTrades
	if n > len(w.trades) {
		n = len(w.trades)
	}
	s.RecentTrades = make([]common.Trade, 0, n)
	for i := 0; i < n; i++ {
		s.RecentTrades = append(s.RecentTrades, w.trades[len(w.trades)-1-i])
	}
	return s
}

// MidSeries returns the recorded mid points inside the trailing window.
func (w *LiveWorld) MidSeries(windowNs common.Ts) []MidPoint {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.curTs - windowNs
	out := make([]MidPoint, 0, len(w.tops))
	for i := range w.tops {
		if w.tops[i].Ts < cutoff {
			continue
		}
		out = append(out, MidPoint{Ts: w.tops[i].Ts, Mid: w.tops[i].Mid})
	}
	return out
}

// TopSeries copies the recorded top-of-book points, oldest first.
func (w *LiveWorld) TopSeries() []BookTop {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]BookTop, len(w.tops))
	copy(out, w.tops)
	return out
}

// Trades copies the trade cache, oldest first.
func (w *LiveWorld) Trades() []common.Trade {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]common.Trade, len(w.trades))
	copy(out, w.trades)
	return out
}

// BookDepth serves the cached top-N depth, truncated to levels.
func (w *LiveWorld) BookDepth(levels int) BookDepth {
	w.mu.Lock()
	defer w.mu.Unlock()

	clip := func(s []common.LevelSummary) []common.LevelSummary {
		if levels < len(s) {
			s = s[:levels]
		}
		out := make([]common.LevelSummary, len(s))
		copy(out, s)
		return out
	}
	return BookDepth{Bids: clip(w.depth.Bids), Asks: clip(w.depth.Asks)}
}

// Accounts snapshots the ledger, ordered by owner id.
func (w *LiveWorld) Accounts() []AccountRow {
	w.mu.Lock()
	defer w.mu.Unlock()

	owners := w.ledger.Owners()
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	out := make([]AccountRow, 0, len(owners))
	for _, o := range owners {
		acct, _ := w.ledger.Account(o)
		out = append(out, AccountRow{Owner: o, Account: acct})
	}
	return out
}

// Phase reads the current market phase.
func (w *LiveWorld) Phase() common.MarketPhase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.eng.Rules().Phase()
}

// Now reads the current exchange time.
func (w *LiveWorld) Now() common.Ts {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.curTs
}

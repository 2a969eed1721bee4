package sim

import (
	"sort"

	"skoll/internal/common"
	"skoll/internal/engine"
)

// BookTop is the top-of-book observation recorded after every event.
type BookTop struct {
	Ts      common.Ts
	BestBid *common.Price
	BestAsk *common.Price
	Mid     *common.Price
}

// Result collects everything a replay produced.
type Result struct {
	Trades         []common.Trade
	Tops           []BookTop
	CancelFailures uint32
	ModifyFailures uint32
}

// Simulator replays a timestamped event log through a matching engine.
type Simulator struct {
	eng *engine.MatchingEngine
}

func NewSimulator(eng *engine.MatchingEngine) *Simulator {
	return &Simulator{eng: eng}
}

func (s *Simulator) Engine() *engine.MatchingEngine { return s.eng }

// Run stable-sorts the events by (ts, input index) and applies each in
// turn, recording the top of book after every event. Cancel and modify
// failures are counted, never fatal.
func (s *Simulator) Run(events []Event) Result {
	var out Result

	order := make([]int, len(events))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := &events[order[a]], &events[order[b]]
		if ea.Ts != eb.Ts {
			return ea.Ts < eb.Ts
		}
		return order[a] < order[b]
	})

	for _, idx := range order {
		ev := &events[idx]
		switch ev.Type {
		case EventAddLimit:
			res := s.eng.Process(common.Order{
				ID: ev.ID, Ts: ev.Ts, Side: ev.Side, Type: common.Limit,
				Price: ev.Price, Qty: ev.Qty, Owner: ev.Owner, TIF: common.GTC,
			})
			out.Trades = append(out.Trades, res.Trades...)
		case EventAddMarket:
			res := s.eng.Process(common.Order{
				ID: ev.ID, Ts: ev.Ts, Side: ev.Side, Type: common.Market,
				Qty: ev.Qty, Owner: ev.Owner, TIF: common.IOC, Style: common.PureMarket,
			})
			out.Trades = append(out.Trades, res.Trades...)
		case EventCancel:
			if !s.eng.Book().Cancel(ev.ID) {
				out.CancelFailures++
			}
		case EventModify:
			if !s.eng.Book().ModifyQty(ev.ID, ev.NewQty) {
				out.ModifyFailures++
			}
		}
		out.Tops = append(out.Tops, s.makeTop(ev.Ts))
	}
	return out
}

func (s *Simulator) makeTop(ts common.Ts) BookTop {
	bb := s.eng.Book().BestBid()
	ba := s.eng.Book().BestAsk()
	return BookTop{Ts: ts, BestBid: bb, BestAsk: ba, Mid: common.Midprice(bb, ba)}
}

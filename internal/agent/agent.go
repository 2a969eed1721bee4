// Package agent defines the participant contract for the live runtime
// and ships the two stock policies: a noise trader and a market maker.
package agent

import "skoll/internal/common"

// MarketView is the read-only slice of market state a participant sees
// each tick. Optional prices are nil when the corresponding side of the
// book is empty or nothing has traded yet.
type MarketView struct {
	Ts        common.Ts
	BestBid   *common.Price
	BestAsk   *common.Price
	Mid       *common.Price
	LastTrade *common.Price
	Depth     []common.LevelSummary
}

// State is the participant's own account as tracked by the ledger.
type State struct {
	Owner     common.OwnerID
	CashTicks int64
	Position  int64
}

type ActionType uint8

const (
	ActionSubmit ActionType = iota
	ActionCancel
	ActionModifyQty
)

// Action is one instruction a participant emits from Step.
type Action struct {
	Type   ActionType
	Order  common.Order // Submit
	ID     common.OrderID
	NewQty common.Qty
}

func Submit(o common.Order) Action {
	return Action{Type: ActionSubmit, Order: o}
}

func Cancel(id common.OrderID) Action {
	return Action{Type: ActionCancel, ID: id}
}

func ModifyQty(id common.OrderID, newQty common.Qty) Action {
	return Action{Type: ActionModifyQty, ID: id, NewQty: newQty}
}

// Agent is a synthetic participant. Step must be deterministic given
// the seed stream: it may only read the supplied view and its own
// private state, and appends any actions to out.
type Agent interface {
	Owner() common.OwnerID
	Seed(seed uint64)
	Step(ts common.Ts, view MarketView, self State, out *[]Action)
}

// ScopedOrderID packs an owner into the high 32 bits and a local
// sequence number into the low 32, so ids never collide across
// participants or with manual entry.
func ScopedOrderID(owner common.OwnerID, seq uint32) common.OrderID {
	return (owner&0xFFFF_FFFF)<<32 | common.OrderID(seq)
}

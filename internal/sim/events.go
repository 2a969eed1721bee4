// Package sim is the offline harness: a deterministic replay driver
// over a timestamped event log, the synthetic order-flow generator that
// feeds it, and the CSV writers for its outputs.
package sim

import "skoll/internal/common"

type EventType uint8

const (
	EventAddLimit EventType = iota
	EventAddMarket
	EventCancel
	EventModify
)

// Event is one entry of the replay log. Fields are interpreted by Type:
// AddLimit uses Side/Price/Qty/Owner, AddMarket ignores Price, Cancel
// only needs ID, Modify needs ID and NewQty.
type Event struct {
	Type   EventType
	ID     common.OrderID
	Ts     common.Ts
	Side   common.Side
	Price  common.Price
	Qty    common.Qty
	Owner  common.OwnerID
	NewQty common.Qty
}

func AddLimit(id common.OrderID, ts common.Ts, side common.Side, px common.Price, qty common.Qty, owner common.OwnerID) Event {
	return Event{Type: EventAddLimit, ID: id, Ts: ts, Side: side, Price: px, Qty: qty, Owner: owner}
}

func AddMarket(id common.OrderID, ts common.Ts, side common.Side, qty common.Qty, owner common.OwnerID) Event {
	return Event{Type: EventAddMarket, ID: id, Ts: ts, Side: side, Qty: qty, Owner: owner}
}

func Cancel(id common.OrderID, ts common.Ts) Event {
	return Event{Type: EventCancel, ID: id, Ts: ts}
}

func Modify(id common.OrderID, ts common.Ts, newQty common.Qty) Event {
	return Event{Type: EventModify, ID: id, Ts: ts, NewQty: newQty}
}

package engine

import (
	"github.com/tidwall/btree"

	"skoll/internal/common"
)

// level is one price level: a FIFO of resting orders plus cached totals.
type level struct {
	price    common.Price
	side     common.Side
	head     *bookEntry
	tail     *bookEntry
	totalQty common.Qty
	count    uint32
}

// bookEntry is an intrusive FIFO node. The locator maps order id to its
// entry, which makes cancel and reduce O(1) plus a tree probe to erase
// empty levels.
type bookEntry struct {
	order common.Order
	lvl   *level
	next  *bookEntry
	prev  *bookEntry
}

func (l *level) enqueue(o common.Order) *bookEntry {
	e := &bookEntry{order: o, lvl: l}
	if l.head == nil {
		l.head = e
		l.tail = e
	} else {
		l.tail.next = e
		e.prev = l.tail
		l.tail = e
	}
	l.totalQty += o.Qty
	l.count++
	return e
}

func (l *level) unlink(e *bookEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	l.totalQty -= e.order.Qty
	l.count--
	e.next = nil
	e.prev = nil
	e.lvl = nil
}

type sideLevels = btree.BTreeG[*level]

// OrderBook is a double-sided price-time-priority book. Bids are sorted
// best (highest) first, asks best (lowest) first. It only ever stores
// resting limit orders; marketable flow is matched by the engine before
// anything is inserted here.
type OrderBook struct {
	bids    *sideLevels
	asks    *sideLevels
	locator map[common.OrderID]*bookEntry
}

func NewOrderBook() *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *level) bool {
		return a.price > b.price
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *level) bool {
		return a.price < b.price
	})
	return &OrderBook{
		bids:    bids,
		asks:    asks,
		locator: make(map[common.OrderID]*bookEntry),
	}
}

func (b *OrderBook) levels(side common.Side) *sideLevels {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

// wouldCross reports whether inserting o as a resting order would cross
// the opposite best: buy crosses if price >= best ask, sell crosses if
// price <= best bid.
func (b *OrderBook) wouldCross(o common.Order) bool {
	if o.Type != common.Limit {
		return true // book only stores resting limits
	}
	if o.Side == common.Buy {
		if ba := b.BestAsk(); ba != nil && o.Price >= *ba {
			return true
		}
	} else {
		if bb := b.BestBid(); bb != nil && o.Price <= *bb {
			return true
		}
	}
	return false
}

// AddRestingLimit appends o to the tail of its price level. It rejects
// invalid or non-limit orders, orders that would cross the opposite
// best, and duplicate ids. Returning false leaves the book unchanged.
func (b *OrderBook) AddRestingLimit(o common.Order) bool {
	if !o.Valid() || o.Type != common.Limit {
		return false
	}
	if b.wouldCross(o) {
		return false
	}
	if _, dup := b.locator[o.ID]; dup {
		return false
	}

	levels := b.levels(o.Side)
	lvl, ok := levels.Get(&level{price: o.Price})
	if !ok {
		lvl = &level{price: o.Price, side: o.Side}
		levels.Set(lvl)
	}
	b.locator[o.ID] = lvl.enqueue(o)
	return true
}

// Cancel removes a resting order by id.
func (b *OrderBook) Cancel(id common.OrderID) bool {
	e, ok := b.locator[id]
	if !ok {
		return false
	}
	lvl := e.lvl
	lvl.unlink(e)
	delete(b.locator, id)
	if lvl.head == nil {
		b.levels(lvl.side).Delete(lvl)
	}
	return true
}

// ModifyQty reduces a resting order's remaining quantity in place.
// Reduce-only: it fails unless 0 < newQty < current. Queue position is
// unchanged; a reduction is not a re-priority event.
func (b *OrderBook) ModifyQty(id common.OrderID, newQty common.Qty) bool {
	e, ok := b.locator[id]
	if !ok {
		return false
	}
	if newQty <= 0 || newQty >= e.order.Qty {
		return false
	}
	e.lvl.totalQty -= e.order.Qty - newQty
	e.order.Qty = newQty
	return true
}

func (b *OrderBook) BestBid() *common.Price {
	lvl, ok := b.bids.Min()
	if !ok {
		return nil
	}
	px := lvl.price
	return &px
}

func (b *OrderBook) BestAsk() *common.Price {
	lvl, ok := b.asks.Min()
	if !ok {
		return nil
	}
	px := lvl.price
	return &px
}

// IsCrossed should stay false for any book built through AddRestingLimit.
func (b *OrderBook) IsCrossed() bool {
	bb, ba := b.BestBid(), b.BestAsk()
	return bb != nil && ba != nil && *bb >= *ba
}

func (b *OrderBook) Empty(side common.Side) bool {
	return b.levels(side).Len() == 0
}

func (b *OrderBook) LevelCount(side common.Side) int {
	return b.levels(side).Len()
}

// Depth returns the top-n levels of a side in best-first order.
func (b *OrderBook) Depth(side common.Side, n int) []common.LevelSummary {
	out := make([]common.LevelSummary, 0, n)
	if n <= 0 {
		return out
	}
	b.levels(side).Scan(func(lvl *level) bool {
		out = append(out, common.LevelSummary{
			Price:      lvl.price,
			TotalQty:   lvl.totalQty,
			OrderCount: lvl.count,
		})
		return len(out) < n
	})
	return out
}

// bestLevel gives the engine in-place access to the top of a side for
// the matching walk. Engine-only.
func (b *OrderBook) bestLevel(side common.Side) *level {
	lvl, ok := b.levels(side).Min()
	if !ok {
		return nil
	}
	return lvl
}

// removeHead drops the fully consumed head maker of lvl and erases the
// level if it became empty. Engine-only.
func (b *OrderBook) removeHead(lvl *level) {
	e := lvl.head
	delete(b.locator, e.order.ID)
	lvl.unlink(e)
	if lvl.head == nil {
		b.levels(lvl.side).Delete(lvl)
	}
}

// reduceHead takes qty out of the head maker of lvl, removing it when
// fully consumed. Engine-only.
func (b *OrderBook) reduceHead(lvl *level, qty common.Qty) {
	e := lvl.head
	e.order.Qty -= qty
	lvl.totalQty -= qty
	if e.order.Qty == 0 {
		b.removeHead(lvl)
	}
}

// drainAll removes every resting order from both sides, best-first bids
// then best-first asks, and clears the locator. Used by the circuit
// breaker to move the frozen book into the reopening auction.
func (b *OrderBook) drainAll() []common.Order {
	out := make([]common.Order, 0, len(b.locator))
	collect := func(lvl *level) bool {
		for e := lvl.head; e != nil; e = e.next {
			out = append(out, e.order)
		}
		return true
	}
	b.bids.Scan(collect)
	b.asks.Scan(collect)

	b.bids = btree.NewBTreeG(func(a, c *level) bool { return a.price > c.price })
	b.asks = btree.NewBTreeG(func(a, c *level) bool { return a.price < c.price })
	b.locator = make(map[common.OrderID]*bookEntry)
	return out
}

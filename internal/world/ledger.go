package world

import "skoll/internal/common"

// Account is one owner's running position and realized cash, in ticks
// and units.
type Account struct {
	CashTicks int64
	Position  int64
	MtmTicks  int64
}

// OrderMeta remembers who placed an order and on which side, captured at
// admission so fills attribute the right buyer and seller even after the
// order leaves the book.
type OrderMeta struct {
	Owner common.OwnerID
	Side  common.Side
}

// Ledger tracks per-owner accounts. It is owned by the LiveWorld worker
// and never locked on its own.
type Ledger struct {
	accounts map[common.OwnerID]*Account
	meta     map[common.OrderID]OrderMeta
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[common.OwnerID]*Account),
		meta:     make(map[common.OrderID]OrderMeta),
	}
}

// Register records order attribution ahead of processing.
func (l *Ledger) Register(id common.OrderID, owner common.OwnerID, side common.Side) {
	l.meta[id] = OrderMeta{Owner: owner, Side: side}
}

func (l *Ledger) account(owner common.OwnerID) *Account {
	a, ok := l.accounts[owner]
	if !ok {
		a = &Account{}
		l.accounts[owner] = a
	}
	return a
}

// Account returns a copy of the owner's account.
func (l *Ledger) Account(owner common.OwnerID) (Account, bool) {
	a, ok := l.accounts[owner]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

// ApplyTrades books each fill to its buyer and seller and marks the
// touched accounts to the supplied mid. Trades whose orders were never
// registered are skipped; that indicates a wiring bug upstream.
func (l *Ledger) ApplyTrades(trades []common.Trade, mid *common.Price) {
	for i := range trades {
		t := &trades[i]
		takerMeta, okT := l.meta[t.TakerOrderID]
		makerMeta, okM := l.meta[t.MakerOrderID]
		if !okT || !okM {
			continue
		}

		buyerOwner, sellerOwner := takerMeta.Owner, makerMeta.Owner
		if takerMeta.Side == common.Sell {
			buyerOwner, sellerOwner = makerMeta.Owner, takerMeta.Owner
		}

		buyer := l.account(buyerOwner)
		seller := l.account(sellerOwner)
		notional := t.Price * t.Qty

		buyer.Position += t.Qty
		buyer.CashTicks -= notional
		seller.Position -= t.Qty
		seller.CashTicks += notional

		buyer.markToMarket(mid)
		seller.markToMarket(mid)
	}
}

func (a *Account) markToMarket(mid *common.Price) {
	if mid == nil {
		a.MtmTicks = a.CashTicks
		return
	}
	a.MtmTicks = a.CashTicks + a.Position**mid
}

// Owners returns every owner with an account, unordered.
func (l *Ledger) Owners() []common.OwnerID {
	out := make([]common.OwnerID, 0, len(l.accounts))
	for o := range l.accounts {
		out = append(out, o)
	}
	return out
}

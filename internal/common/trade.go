package common

// Trade records one fill between a resting maker and an incoming taker.
// Ids come from a strictly monotonic per-engine counter starting at 1.
type Trade struct {
	ID           TradeID
	Ts           Ts
	Price        Price
	Qty          Qty
	MakerOrderID OrderID
	TakerOrderID OrderID
}

func (t Trade) Valid() bool {
	return t.Qty > 0 && t.Price >= 0
}

package gateway

import (
	"errors"

	"skoll/internal/common"
)

var (
	ErrUnknownSide = errors.New("unknown side")
	ErrUnknownType = errors.New("unknown order type")
	ErrUnknownTIF  = errors.New("unknown time in force")
)

// orderRequest is the POST /api/order payload. Enums are strings on the
// wire; market orders coerce price to 0 and default to IOC.
type orderRequest struct {
	ID    uint64 `json:"id"`
	Side  string `json:"side" binding:"required"`
	Type  string `json:"type" binding:"required"`
	TIF   string `json:"tif"`
	Price int64  `json:"price"`
	Qty   int64  `json:"qty" binding:"required"`
	Owner uint64 `json:"owner"`
}

type orderResponse struct {
	OrderID  uint64 `json:"order_id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
}

type cancelRequest struct {
	ID uint64 `json:"id" binding:"required"`
}

type modifyRequest struct {
	ID  uint64 `json:"id" binding:"required"`
	Qty int64  `json:"qty" binding:"required"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type tradeJSON struct {
	ID    uint64 `json:"id"`
	Ts    int64  `json:"ts"`
	Price int64  `json:"price"`
	Qty   int64  `json:"qty"`
	Maker uint64 `json:"maker_order_id"`
	Taker uint64 `json:"taker_order_id"`
}

type snapshotJSON struct {
	Ts           int64       `json:"ts"`
	BestBid      *int64      `json:"best_bid"`
	BestAsk      *int64      `json:"best_ask"`
	Mid          *int64      `json:"mid"`
	LastTrade    *int64      `json:"last_trade"`
	Phase        string      `json:"phase"`
	RecentTrades []tradeJSON `json:"recent_trades"`
}

type depthLevelJSON struct {
	Price  int64  `json:"price"`
	Qty    int64  `json:"qty"`
	Orders uint32 `json:"orders"`
}

type depthJSON struct {
	MaxCum int64            `json:"max_cum"`
	Bids   []depthLevelJSON `json:"bids"`
	Asks   []depthLevelJSON `json:"asks"`
}

type midPointJSON struct {
	Ts  int64  `json:"ts"`
	Mid *int64 `json:"mid"`
}

func parseSide(s string) (common.Side, error) {
	switch s {
	case "Buy", "buy", "BUY":
		return common.Buy, nil
	case "Sell", "sell", "SELL":
		return common.Sell, nil
	}
	return common.Buy, ErrUnknownSide
}

func parseOrderType(s string) (common.OrderType, error) {
	switch s {
	case "Limit", "limit", "LIMIT":
		return common.Limit, nil
	case "Market", "market", "MARKET":
		return common.Market, nil
	}
	return common.Limit, ErrUnknownType
}

func parseTIF(s string) (common.TimeInForce, error) {
	switch s {
	case "", "GTC", "gtc":
		return common.GTC, nil
	case "IOC", "ioc":
		return common.IOC, nil
	case "FOK", "fok":
		return common.FOK, nil
	}
	return common.GTC, ErrUnknownTIF
}

// toOrder validates and converts a wire request into a domain order.
func (r orderRequest) toOrder() (common.Order, error) {
	side, err := parseSide(r.Side)
	if err != nil {
		return common.Order{}, err
	}
	typ, err := parseOrderType(r.Type)
	if err != nil {
		return common.Order{}, err
	}
	tif, err := parseTIF(r.TIF)
	if err != nil {
		return common.Order{}, err
	}

	o := common.Order{
		ID:    r.ID,
		Side:  side,
		Type:  typ,
		Price: r.Price,
		Qty:   r.Qty,
		Owner: r.Owner,
		TIF:   tif,
	}
	if o.Type == common.Market {
		o.Price = 0
		o.Style = common.PureMarket
		if o.TIF == common.GTC {
			o.TIF = common.IOC
		}
	}
	return o, nil
}

func toTradeJSON(t common.Trade) tradeJSON {
	return tradeJSON{
		ID: t.ID, Ts: t.Ts, Price: t.Price, Qty: t.Qty,
		Maker: t.MakerOrderID, Taker: t.TakerOrderID,
	}
}

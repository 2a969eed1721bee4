package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"skoll/internal/common"
	"skoll/internal/world"
)

// WriteTradesCSV emits trade_id,ts,price,qty,maker_id,taker_id rows.
func WriteTradesCSV(w io.Writer, trades []common.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"trade_id", "ts", "price", "qty", "maker_id", "taker_id"}); err != nil {
		return err
	}
	for i := range trades {
		t := &trades[i]
		rec := []string{
			strconv.FormatUint(t.ID, 10),
			strconv.FormatInt(t.Ts, 10),
			strconv.FormatInt(t.Price, 10),
			strconv.FormatInt(t.Qty, 10),
			strconv.FormatUint(t.MakerOrderID, 10),
			strconv.FormatUint(t.TakerOrderID, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTopCSV emits ts,best_bid,best_ask,mid rows with empty fields for
// missing sides.
func WriteTopCSV(w io.Writer, tops []BookTop) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ts", "best_bid", "best_ask", "mid"}); err != nil {
		return err
	}
	opt := func(p *common.Price) string {
		if p == nil {
			return ""
		}
		return strconv.FormatInt(*p, 10)
	}
	for i := range tops {
		t := &tops[i]
		rec := []string{strconv.FormatInt(t.Ts, 10), opt(t.BestBid), opt(t.BestAsk), opt(t.Mid)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAccountsCSV emits ts,owner,cash_ticks,position,mtm_ticks rows.
func WriteAccountsCSV(w io.Writer, ts common.Ts, rows []world.AccountRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ts", "owner", "cash_ticks", "position", "mtm_ticks"}); err != nil {
		return err
	}
	for i := range rows {
		r := &rows[i]
		rec := []string{
			strconv.FormatInt(ts, 10),
			strconv.FormatUint(r.Owner, 10),
			strconv.FormatInt(r.CashTicks, 10),
			strconv.FormatInt(r.Position, 10),
			strconv.FormatInt(r.MtmTicks, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile is a small helper for the CLI: create path and stream the
// writer fn into it.
func WriteFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

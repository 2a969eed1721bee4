// Command loadgen hammers a running gateway with randomized order entry:
// passive limits around the current mid, a slice of market orders, and
// best-effort cancels of its own earlier orders.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skoll/internal/agent"
)

type orderReq struct {
	Side  string `json:"side"`
	Type  string `json:"type"`
	TIF   string `json:"tif,omitempty"`
	Price int64  `json:"price,omitempty"`
	Qty   int64  `json:"qty"`
	Owner uint64 `json:"owner"`
}

type orderResp struct {
	OrderID  uint64 `json:"order_id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
}

type snapshotResp struct {
	Mid *int64 `json:"mid"`
}

func main() {
	var (
		addr  = flag.String("addr", "http://localhost:8080", "gateway base url")
		n     = flag.Int("n", 1000, "orders to send")
		rate  = flag.Duration("rate", 2*time.Millisecond, "delay between orders")
		owner = flag.Uint64("owner", 7777, "owner id for generated flow")
		seed  = flag.Uint64("seed", 1, "rng seed")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rng := agent.NewRng(*seed)
	client := &http.Client{Timeout: 2 * time.Second}

	var sent, accepted, rejected, cancels int
	var openIDs []uint64

	for i := 0; i < *n; i++ {
		time.Sleep(*rate)

		// Occasionally cancel something we previously rested.
		if len(openIDs) > 0 && rng.Uniform01() < 0.15 {
			id := openIDs[rng.IntN(0, int64(len(openIDs)-1))]
			cancelOne(client, *addr, id)
			cancels++
			continue
		}

		mid := fetchMid(client, *addr)
		req := buildOrder(rng, mid, *owner)
		resp, err := postOrder(client, *addr, req)
		if err != nil {
			log.Error().Err(err).Msg("order post failed")
			continue
		}
		sent++
		if resp.Accepted {
			accepted++
			if req.Type == "Limit" {
				openIDs = append(openIDs, resp.OrderID)
			}
		} else {
			rejected++
		}
	}

	log.Info().
		Int("sent", sent).
		Int("accepted", accepted).
		Int("rejected", rejected).
		Int("cancels", cancels).
		Msg("loadgen complete")
}

func buildOrder(rng *agent.Rng, mid int64, owner uint64) orderReq {
	side := "Buy"
	if rng.Uniform01() < 0.5 {
		side = "Sell"
	}
	qty := rng.IntN(1, 10)

	if rng.Uniform01() < 0.2 {
		return orderReq{Side: side, Type: "Market", Qty: qty, Owner: owner}
	}

	off := rng.IntN(1, 8)
	px := mid - off
	if side == "Sell" {
		px = mid + off
	}
	if px < 1 {
		px = 1
	}
	return orderReq{Side: side, Type: "Limit", TIF: "GTC", Price: px, Qty: qty, Owner: owner}
}

func fetchMid(client *http.Client, addr string) int64 {
	resp, err := client.Get(addr + "/api/snapshot?max_trades=0")
	if err != nil {
		return 100
	}
	defer resp.Body.Close()
	var snap snapshotResp
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil || snap.Mid == nil {
		return 100
	}
	return *snap.Mid
}

func postOrder(client *http.Client, addr string, req orderReq) (orderResp, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return orderResp{}, err
	}
	resp, err := client.Post(addr+"/api/order", "application/json", bytes.NewReader(buf))
	if err != nil {
		return orderResp{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return orderResp{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	var out orderResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return orderResp{}, err
	}
	return out, nil
}

func cancelOne(client *http.Client, addr string, id uint64) {
	buf, _ := json.Marshal(map[string]uint64{"id": id})
	resp, err := client.Post(addr+"/api/cancel", "application/json", bytes.NewReader(buf))
	if err != nil {
		return
	}
	resp.Body.Close()
}

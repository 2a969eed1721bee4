package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/common"
	"skoll/internal/engine"
	"skoll/internal/world"
)

func newTestServer(t *testing.T) (*world.LiveWorld, *httptest.Server) {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.EnableCircuitBreaker = false
	w := world.NewLiveWorld(engine.New(engine.NewRuleSet(cfg)))

	reg := prometheus.NewRegistry()
	srv := NewServer(w, reg)
	ts := httptest.NewServer(srv.Router(reg))
	t.Cleanup(ts.Close)
	return w, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandleOrder_AcceptsLimit(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/order", map[string]any{
		"side": "Buy", "type": "Limit", "price": 100, "qty": 5, "owner": 7,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	out := decode[orderResponse](t, resp)
	assert.True(t, out.Accepted)
	assert.Equal(t, "None", out.Reason)
	assert.NotZero(t, out.OrderID)
}

func TestHandleOrder_RejectsViaRules(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/order", map[string]any{
		"side": "Buy", "type": "Limit", "price": 100, "qty": -3,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[orderResponse](t, resp)
	assert.False(t, out.Accepted)
	assert.Equal(t, "InvalidOrder", out.Reason)
}

func TestHandleOrder_BadEnumIs400(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/order", map[string]any{
		"side": "Sideways", "type": "Limit", "price": 100, "qty": 5,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleCancelAndModify(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/cancel", map[string]any{"id": 42})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[okResponse](t, resp).OK)

	resp = postJSON(t, ts.URL+"/api/modify", map[string]any{"id": 42, "qty": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[okResponse](t, resp).OK)
}

func TestHandleSnapshotAndDepthAfterRun(t *testing.T) {
	w, ts := newTestServer(t)

	// Queue a resting pair, then drive the world to the horizon.
	postJSON(t, ts.URL+"/api/order", map[string]any{
		"side": "Buy", "type": "Limit", "price": 99, "qty": 5, "owner": 1,
	}).Body.Close()
	postJSON(t, ts.URL+"/api/order", map[string]any{
		"side": "Sell", "type": "Limit", "price": 101, "qty": 7, "owner": 2,
	}).Body.Close()

	w.Start(1, 2e-9, world.Config{DtNs: 1})
	require.NoError(t, w.Wait())

	resp, err := http.Get(ts.URL + "/api/snapshot?max_trades=10")
	require.NoError(t, err)
	snap := decode[snapshotJSON](t, resp)
	require.NotNil(t, snap.BestBid)
	require.NotNil(t, snap.BestAsk)
	assert.Equal(t, int64(99), *snap.BestBid)
	assert.Equal(t, int64(101), *snap.BestAsk)
	assert.Equal(t, int64(100), *snap.Mid)
	assert.Equal(t, "Continuous", snap.Phase)

	resp, err = http.Get(ts.URL + "/api/depth?levels=5")
	require.NoError(t, err)
	depth := decode[depthJSON](t, resp)
	require.Len(t, depth.Bids, 1)
	require.Len(t, depth.Asks, 1)
	assert.Equal(t, int64(99), depth.Bids[0].Price)
	assert.Equal(t, int64(7), depth.Asks[0].Qty)
	assert.Equal(t, int64(7), depth.MaxCum)
}

func TestHealthzAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Continuous", body["phase"])

	postJSON(t, ts.URL+"/api/order", map[string]any{
		"side": "Buy", "type": "Limit", "price": 100, "qty": 5,
	}).Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "skoll_orders_accepted_total 1")
	assert.Contains(t, string(raw), "skoll_market_phase 0")
}

func TestWire_MarketOrderCoercion(t *testing.T) {
	req := orderRequest{Side: "Buy", Type: "Market", Price: 12345, Qty: 3}
	o, err := req.toOrder()
	require.NoError(t, err)
	assert.Equal(t, common.Market, o.Type)
	assert.Zero(t, o.Price, "market price coerces to 0")
	assert.Equal(t, common.IOC, o.TIF, "market defaults to IOC")
	assert.Equal(t, common.PureMarket, o.Style)
}

func TestWire_ParseEnums(t *testing.T) {
	side, err := parseSide("sell")
	require.NoError(t, err)
	assert.Equal(t, common.Sell, side)

	_, err = parseSide("hold")
	assert.ErrorIs(t, err, ErrUnknownSide)

	tif, err := parseTIF("")
	require.NoError(t, err)
	assert.Equal(t, common.GTC, tif)

	_, err = parseOrderType("Stop")
	assert.ErrorIs(t, err, ErrUnknownType)
}

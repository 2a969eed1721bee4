// Package gateway exposes the live world over HTTP/JSON: read snapshots,
// POST command endpoints, a websocket stream, and prometheus metrics.
// The gateway never mutates engine state directly; every mutation goes
// through the world's command queue.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"skoll/internal/common"
	"skoll/internal/world"
)

const (
	defaultSnapshotTrades = 250
	maxDepthLevels        = 200
	streamPollInterval    = 50 * time.Millisecond
	wsSendBuffer          = 64
)

// streamEvent is one websocket payload: a top-of-book point or a trade.
type streamEvent struct {
	Type  string     `json:"type"`
	Ts    int64      `json:"ts"`
	Top   *streamTop `json:"top,omitempty"`
	Trade *tradeJSON `json:"trade,omitempty"`
}

type streamTop struct {
	BestBid *int64 `json:"best_bid"`
	BestAsk *int64 `json:"best_ask"`
	Mid     *int64 `json:"mid"`
}

// Server fronts one LiveWorld.
type Server struct {
	w        *world.LiveWorld
	metrics  *Metrics
	events   *hub[streamEvent]
	upgrader websocket.Upgrader

	httpSrv *http.Server
	t       *tomb.Tomb

	lastTradeID common.TradeID
}

func NewServer(w *world.LiveWorld, reg *prometheus.Registry) *Server {
	s := &Server{
		w:       w,
		metrics: NewMetrics(reg, w),
		events:  newHub[streamEvent](),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	return s
}

// Router builds the gin handler tree.
func (s *Server) Router(reg *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "phase": s.w.Phase().String()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/snapshot", s.handleSnapshot)
		api.GET("/depth", s.handleDepth)
		api.GET("/mid_series", s.handleMidSeries)
		api.POST("/order", s.handleOrder)
		api.POST("/cancel", s.handleCancel)
		api.POST("/modify", s.handleModify)
	}
	r.GET("/ws", s.handleStream)
	return r
}

// Run starts the HTTP listener and the stream pump, blocking until ctx
// is cancelled.
func (s *Server) Run(ctx context.Context, addr string, reg *prometheus.Registry) error {
	s.t, _ = tomb.WithContext(ctx)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Router(reg)}

	s.t.Go(s.pumpStream)
	s.t.Go(func() error {
		<-s.t.Dying()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	})

	log.Info().Str("addr", addr).Msg("gateway listening")
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	s.t.Kill(err)
	if werr := s.t.Wait(); err == nil {
		err = werr
	}
	return err
}

// pumpStream polls the world and fans fresh trades and the current top
// out to websocket subscribers.
func (s *Server) pumpStream() error {
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.t.Dying():
			return nil
		case <-ticker.C:
		}

		snap := s.w.Snapshot(defaultSnapshotTrades)

		// Snapshot trades are newest-first; emit the unseen tail oldest-first.
		fresh := make([]common.Trade, 0, 4)
		for _, tr := range snap.RecentTrades {
			if tr.ID <= s.lastTradeID {
				break
			}
			fresh = append(fresh, tr)
		}
		for i := len(fresh) - 1; i >= 0; i-- {
			tj := toTradeJSON(fresh[i])
			s.events.Broadcast(streamEvent{Type: "trade", Ts: fresh[i].Ts, Trade: &tj})
			s.metrics.TradesStreamed.Inc()
			s.lastTradeID = fresh[i].ID
		}

		s.events.Broadcast(streamEvent{
			Type: "top",
			Ts:   snap.Ts,
			Top:  &streamTop{BestBid: snap.BestBid, BestAsk: snap.BestAsk, Mid: snap.Mid},
		})
	}
}

func (s *Server) handleSnapshot(c *gin.Context) {
	maxTrades := intQuery(c, "max_trades", defaultSnapshotTrades)
	snap := s.w.Snapshot(maxTrades)

	out := snapshotJSON{
		Ts:           snap.Ts,
		BestBid:      snap.BestBid,
		BestAsk:      snap.BestAsk,
		Mid:          snap.Mid,
		LastTrade:    snap.LastTrade,
		Phase:        snap.Phase.String(),
		RecentTrades: make([]tradeJSON, 0, len(snap.RecentTrades)),
	}
	for _, tr := range snap.RecentTrades {
		out.RecentTrades = append(out.RecentTrades, toTradeJSON(tr))
	}
	noCache(c)
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDepth(c *gin.Context) {
	levels := intQuery(c, "levels", 5)
	if levels <= 0 || levels > maxDepthLevels {
		levels = 5
	}
	d := s.w.BookDepth(levels)

	out := depthJSON{MaxCum: 1}
	var acc int64
	for _, l := range d.Bids {
		acc += l.TotalQty
		if acc > out.MaxCum {
			out.MaxCum = acc
		}
		out.Bids = append(out.Bids, depthLevelJSON{Price: l.Price, Qty: l.TotalQty, Orders: l.OrderCount})
	}
	acc = 0
	for _, l := range d.Asks {
		acc += l.TotalQty
		if acc > out.MaxCum {
			out.MaxCum = acc
		}
		out.Asks = append(out.Asks, depthLevelJSON{Price: l.Price, Qty: l.TotalQty, Orders: l.OrderCount})
	}
	noCache(c)
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleMidSeries(c *gin.Context) {
	windowNs := int64Query(c, "window_ns", 60_000_000_000)
	series := s.w.MidSeries(windowNs)

	out := make([]midPointJSON, 0, len(series))
	for _, p := range series {
		out = append(out, midPointJSON{Ts: p.Ts, Mid: p.Mid})
	}
	noCache(c)
	c.JSON(http.StatusOK, gin.H{"points": out})
}

func (s *Server) handleOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Owner == 0 {
		req.Owner = manualOwner
	}

	o, err := req.toOrder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ack := s.w.SubmitOrder(o)
	if ack.Status == common.Accepted {
		s.metrics.OrdersAccepted.Inc()
	} else {
		s.metrics.OrdersRejected.WithLabelValues(ack.Reason.String()).Inc()
	}

	c.JSON(http.StatusOK, orderResponse{
		OrderID:  ack.ID,
		Accepted: ack.Status == common.Accepted,
		Reason:   ack.Reason.String(),
	})
}

func (s *Server) handleCancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.metrics.CancelsTotal.Inc()
	c.JSON(http.StatusOK, okResponse{OK: s.w.CancelOrder(req.ID)})
}

func (s *Server) handleModify(c *gin.Context) {
	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.metrics.ModifiesTotal.Inc()
	c.JSON(http.StatusOK, okResponse{OK: s.w.ModifyQty(req.ID, req.Qty)})
}

// handleStream upgrades to websocket and forwards hub events until the
// client goes away.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.events.Subscribe(wsSendBuffer)
	defer s.events.Unsubscribe(sub)

	// Reader goroutine just detects close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// manualOwner attributes gateway flow that supplies no owner id.
const manualOwner = 999

func noCache(c *gin.Context) {
	c.Header("Cache-Control", "no-store, max-age=0")
	c.Header("Pragma", "no-cache")
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

func int64Query(c *gin.Context, key string, def int64) int64 {
	v, err := strconv.ParseInt(c.DefaultQuery(key, strconv.FormatInt(def, 10)), 10, 64)
	if err != nil {
		return def
	}
	return v
}

// requestID tags each request so log lines correlate.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.Method == http.MethodGet {
			return // reads are too chatty to log
		}
		id, _ := c.Get("request_id")
		log.Info().
			Str("request_id", id.(string)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"skoll/internal/world"
)

// Metrics instruments the order-entry surface and the world it fronts.
type Metrics struct {
	OrdersAccepted prometheus.Counter
	OrdersRejected *prometheus.CounterVec
	CancelsTotal   prometheus.Counter
	ModifiesTotal  prometheus.Counter
	TradesStreamed prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer, w *world.LiveWorld) *Metrics {
	m := &Metrics{
		OrdersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skoll_orders_accepted_total",
			Help: "Orders acknowledged as accepted at enqueue time.",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skoll_orders_rejected_total",
			Help: "Orders rejected at admission, by reason.",
		}, []string{"reason"}),
		CancelsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skoll_cancels_total",
			Help: "Cancel commands enqueued.",
		}),
		ModifiesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skoll_modifies_total",
			Help: "Modify commands enqueued.",
		}),
		TradesStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skoll_trades_streamed_total",
			Help: "Trades pushed to websocket subscribers.",
		}),
	}

	reg.MustRegister(
		m.OrdersAccepted, m.OrdersRejected,
		m.CancelsTotal, m.ModifiesTotal, m.TradesStreamed,
	)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "skoll_market_phase",
		Help: "Current market phase as its enum value.",
	}, func() float64 { return float64(w.Phase()) }))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "skoll_exchange_ts_ns",
		Help: "Current exchange time in nanoseconds.",
	}, func() float64 { return float64(w.Now()) }))

	return m
}

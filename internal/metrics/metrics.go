package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bartermarket"

var (
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "operations_total",
		Help:      "Ledger operations by kind and outcome.",
	}, []string{"kind", "outcome"})

	CoinsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "coins_total",
		Help:      "Coins credited or debited.",
	}, []string{"kind"})

	TradeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trades",
		Name:      "transitions_total",
		Help:      "Trade state transitions by resulting status.",
	}, []string{"status"})

	ListingsChanged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "listings",
		Name:      "changes_total",
		Help:      "Listing lifecycle events.",
	}, []string{"event"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "messages",
		Name:      "sent_total",
		Help:      "Messages accepted by the relay.",
	})

	NotificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "emitted_total",
		Help:      "Notifications by type and outcome.",
	}, []string{"type", "outcome"})

	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Open websocket connections.",
	})
)

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

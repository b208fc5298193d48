package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the chat collectors. A nil *Metrics is valid and records
// nothing, which keeps tests free of registry setup.
type Metrics struct {
	mutations           *prometheus.CounterVec
	snapshots           prometheus.Counter
	readReceipts        *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "mutations_total",
			Help:      "Conversation mutations by operation and result.",
		}, []string{"op", "result"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "snapshots_delivered_total",
			Help:      "Conversation snapshots delivered to subscribers.",
		}),
		readReceipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "read_receipts_total",
			Help:      "Automatic mark-read attempts by result.",
		}, []string{"result"}),
		activeSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "active_subscriptions",
			Help:      "Open conversation subscriptions.",
		}),
	}
	reg.MustRegister(m.mutations, m.snapshots, m.readReceipts, m.activeSubscriptions)
	return m
}

func (m *Metrics) Mutation(op string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) SnapshotDelivered() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

func (m *Metrics) ReadReceipt(err error) {
	if m == nil {
		return
	}
	m.readReceipts.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.activeSubscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.activeSubscriptions.Dec()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

package obs

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Mutation("send", nil)
	m.Mutation("send", nil)
	m.Mutation("edit", errors.New("boom"))
	m.ReadReceipt(nil)
	m.SubscriptionOpened()
	m.SubscriptionOpened()
	m.SubscriptionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("send", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("edit", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readReceipts.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSubscriptions))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Mutation("send", nil)
		m.SnapshotDelivered()
		m.ReadReceipt(nil)
		m.SubscriptionOpened()
		m.SubscriptionClosed()
	})
}

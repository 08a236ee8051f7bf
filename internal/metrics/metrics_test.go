package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	m := NewRegistry()

	m.OrdersCreated.Inc()
	m.OrderCreateFailures.WithLabelValues("insufficient_stock").Add(2)
	m.Notifications.WithLabelValues("order_placed", "sent").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrderCreateFailures.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("order_placed", "sent")))
}

func TestRegistry_Handler(t *testing.T) {
	m := NewRegistry()
	m.StockConflicts.Inc()
	StartTimer().ObserveTo(m.OrderCreateLatency)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dapur_stock_conflicts_total 1")
	assert.Contains(t, string(body), "dapur_order_create_seconds_count 1")
}

func TestTimer(t *testing.T) {
	timer := StartTimer()
	assert.GreaterOrEqual(t, int64(timer.Duration()), int64(0))
}

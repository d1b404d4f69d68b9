// Package metrics exposes order book health and fill quality to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amirphl/depthbook/internal/orderbook"
	"github.com/amirphl/depthbook/internal/slippage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "depthbook"

type Metrics struct {
	registry *prometheus.Registry

	DepthExceeded *prometheus.CounterVec
	BookDepth     *prometheus.GaugeVec
	BookLevels    *prometheus.GaugeVec
	FillAverage   *prometheus.GaugeVec
	SlippageBps   *prometheus.GaugeVec
	DepthUpdates  *prometheus.CounterVec
	WSReconnects  *prometheus.CounterVec
	QueryLatency  *prometheus.HistogramVec
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DepthExceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "depth_exceeded_total",
			Help: "Price stat queries that asked for more than the book holds",
		}, []string{"symbol", "side"}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "book_depth",
			Help: "Total quantity on one side of the book",
		}, []string{"symbol", "side"}),
		BookLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "book_levels",
			Help: "Number of price levels on one side of the book",
		}, []string{"symbol", "side"}),
		FillAverage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fill_average_price",
			Help: "Volume weighted average fill price for a requested quantity",
		}, []string{"symbol", "side", "quantity"}),
		SlippageBps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "slippage_bps",
			Help: "Average fill price against best filled price in bps",
		}, []string{"symbol", "side", "quantity"}),
		DepthUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "depth_updates_total",
			Help: "Depth snapshots applied from the feed",
		}, []string{"symbol", "side"}),
		WSReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ws_reconnects_total",
			Help: "Depth websocket reconnects",
		}, []string{"symbol", "side"}),
		QueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "query_latency_seconds",
			Help:    "Latency of book queries",
			Buckets: prometheus.ExponentialBuckets(1e-7, 4, 12),
		}, []string{"op"}),
	}
	m.registry.MustRegister(
		m.DepthExceeded, m.BookDepth, m.BookLevels, m.FillAverage, m.SlippageBps,
		m.DepthUpdates, m.WSReconnects, m.QueryLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBook records the size of book.
func (m *Metrics) ObserveBook(symbol string, book *orderbook.SideOrderBook) {
	side := book.Side().String()
	start := time.Now()
	depth := book.Depth()
	m.QueryLatency.WithLabelValues("quantity").Observe(time.Since(start).Seconds())
	m.BookDepth.WithLabelValues(symbol, side).Set(depth)
	m.BookLevels.WithLabelValues(symbol, side).Set(float64(book.Len()))
}

// ObserveEstimate records the fill of one requested quantity.
func (m *Metrics) ObserveEstimate(symbol string, est slippage.Estimate) {
	qty := strconv.FormatFloat(est.Quantity, 'f', -1, 64)
	if est.Stats.DepthExceeded {
		m.DepthExceeded.WithLabelValues(symbol, est.Side).Inc()
	}
	if est.Stats.Average != nil {
		m.FillAverage.WithLabelValues(symbol, est.Side, qty).Set(*est.Stats.Average)
	}
	if est.Bps != nil {
		m.SlippageBps.WithLabelValues(symbol, est.Side, qty).Set(*est.Bps)
	}
}

// Timed runs fn and records its latency under op.
func (m *Metrics) Timed(op string, fn func()) {
	start := time.Now()
	fn()
	m.QueryLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's prometheus instruments on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal       prometheus.Counter
	ScanDuration     prometheus.Histogram
	TokensScanned    prometheus.Counter
	HighRiskTokens   prometheus.Counter
	ClassifyFailures prometheus.Counter
	StaleScans       prometheus.Counter

	TradeAttempts *prometheus.CounterVec // labels: op, outcome
	OpenPositions prometheus.Gauge
	TxWindowSize  prometheus.Gauge
}

// NewMetrics creates and registers all instruments.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helix_scans_total",
			Help: "Completed scan cycles.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "helix_scan_duration_seconds",
			Help:    "Scan cycle duration.",
			Buckets: prometheus.DefBuckets,
		}),
		TokensScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helix_tokens_scanned_total",
			Help: "Tokens classified across all scan cycles.",
		}),
		HighRiskTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helix_tokens_high_risk_total",
			Help: "Tokens classified as high risk.",
		}),
		ClassifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helix_classify_failures_total",
			Help: "Risk lookups that fell back to the neutral default.",
		}),
		StaleScans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helix_scans_stale_total",
			Help: "Scan cycles discarded because their generation was superseded.",
		}),
		TradeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helix_trade_attempts_total",
			Help: "Trade attempts by operation and outcome.",
		}, []string{"op", "outcome"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helix_open_positions",
			Help: "Currently open positions.",
		}),
		TxWindowSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helix_transaction_window_size",
			Help: "Entries in the transaction history window.",
		}),
	}

	reg.MustRegister(
		m.ScansTotal, m.ScanDuration, m.TokensScanned, m.HighRiskTokens,
		m.ClassifyFailures, m.StaleScans, m.TradeAttempts,
		m.OpenPositions, m.TxWindowSize,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the store's collectors on a private registry so several
// instances can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	Settlements         *prometheus.CounterVec
	SettlementMissing   prometheus.Counter
	SettlementDuration  prometheus.Histogram
	CheckoutRejected    *prometheus.CounterVec
	CheckoutSessions    prometheus.Counter
	ProductsArchived    *prometheus.CounterVec
	ImageDeleteFailures prometheus.Counter
	SweepRuns           *prometheus.CounterVec
	Requests            *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sawtooth_settlements_total",
			Help: "Payment sessions settled, by outcome (applied, duplicate, failed)",
		}, []string{"outcome"}),
		SettlementMissing: f.NewCounter(prometheus.CounterOpts{
			Name: "sawtooth_settlement_missing_products_total",
			Help: "Paid line items that referenced a product no longer in the ledger",
		}),
		SettlementDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sawtooth_settlement_duration_seconds",
			Help:    "Settlement transaction duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5},
		}),
		CheckoutRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sawtooth_checkout_rejected_total",
			Help: "Checkout attempts refused by the availability check, by reason",
		}, []string{"reason"}),
		CheckoutSessions: f.NewCounter(prometheus.CounterOpts{
			Name: "sawtooth_checkout_sessions_total",
			Help: "Hosted checkout sessions created",
		}),
		ProductsArchived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sawtooth_products_archived_total",
			Help: "Products moved to archived, by trigger (admin, sweep)",
		}, []string{"trigger"}),
		ImageDeleteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "sawtooth_image_delete_failures_total",
			Help: "Image deletions that failed after an archive committed",
		}),
		SweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sawtooth_sweep_runs_total",
			Help: "Auto-archival sweep runs, by result",
		}, []string{"result"}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sawtooth_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveSettlement(outcome string, missing int, took time.Duration) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(outcome).Inc()
	m.SettlementMissing.Add(float64(missing))
	m.SettlementDuration.Observe(took.Seconds())
}

func (m *Metrics) RejectCheckout(reason string) {
	if m == nil {
		return
	}
	m.CheckoutRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) CheckoutCreated() {
	if m == nil {
		return
	}
	m.CheckoutSessions.Inc()
}

func (m *Metrics) Archived(trigger string, n int) {
	if m == nil {
		return
	}
	m.ProductsArchived.WithLabelValues(trigger).Add(float64(n))
}

func (m *Metrics) ImageDeleteFailed(n int) {
	if m == nil {
		return
	}
	m.ImageDeleteFailures.Add(float64(n))
}

func (m *Metrics) Sweep(result string) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) Request(method, route string, code int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// WidgetMetrics exposes counters/histograms for the widget backend.
type WidgetMetrics struct {
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	domainChecks   *prometheus.CounterVec
	noncesIssued   prometheus.Counter
	oauthExchanges *prometheus.CounterVec
	fareLookups    *prometheus.CounterVec
}

func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rideclick",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status code",
		}, []string{"route", "code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rideclick",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		domainChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rideclick",
			Subsystem: "registry",
			Name:      "domain_checks_total",
			Help:      "API key domain checks by outcome",
		}, []string{"result"}),
		noncesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rideclick",
			Subsystem: "nonce",
			Name:      "issued_total",
			Help:      "Nonces handed out by /init",
		}),
		oauthExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rideclick",
			Subsystem: "oauth2",
			Name:      "exchanges_total",
			Help:      "Authorization code exchanges by outcome",
		}, []string{"result"}),
		fareLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rideclick",
			Subsystem: "uber",
			Name:      "fare_lookups_total",
			Help:      "Upfront fare lookups by outcome",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency, m.domainChecks, m.noncesIssued, m.oauthExchanges, m.fareLookups)
	return m
}

func (m *WidgetMetrics) ObserveRequest(route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(route).Observe(seconds)
}

func (m *WidgetMetrics) ObserveDomainCheck(allowed bool, err error) {
	if m == nil {
		return
	}
	result := "denied"
	switch {
	case err != nil:
		result = "error"
	case allowed:
		result = "allowed"
	}
	m.domainChecks.WithLabelValues(result).Inc()
}

func (m *WidgetMetrics) ObserveNonceIssued() {
	if m == nil {
		return
	}
	m.noncesIssued.Inc()
}

func (m *WidgetMetrics) ObserveOAuthExchange(err error) {
	if m == nil {
		return
	}
	m.oauthExchanges.WithLabelValues(outcome(err)).Inc()
}

func (m *WidgetMetrics) ObserveFareLookup(err error) {
	if m == nil {
		return
	}
	m.fareLookups.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

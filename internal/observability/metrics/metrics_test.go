package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue finds the counter in reg named name whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric.GetLabel(), want) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, lp := range pairs {
		if v, ok := want[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

func TestWidgetMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWidgetMetrics(reg)

	m.ObserveRequest("/init", 200, 0.01)
	m.ObserveRequest("/init", 200, 0.02)
	m.ObserveRequest("/init", 401, 0.01)
	m.ObserveDomainCheck(true, nil)
	m.ObserveDomainCheck(false, nil)
	m.ObserveDomainCheck(false, errors.New("redis down"))
	m.ObserveNonceIssued()
	m.ObserveOAuthExchange(nil)
	m.ObserveFareLookup(errors.New("boom"))

	assert.Equal(t, 2.0, counterValue(t, reg, "rideclick_http_requests_total", map[string]string{"route": "/init", "code": "200"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "rideclick_http_requests_total", map[string]string{"route": "/init", "code": "401"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "rideclick_registry_domain_checks_total", map[string]string{"result": "error"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "rideclick_nonce_issued_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "rideclick_uber_fare_lookups_total", map[string]string{"result": "error"}))
}

func TestWidgetMetricsDefaultRegistry(t *testing.T) {
	m := NewWidgetMetrics(nil)
	m.ObserveNonceIssued()
	prometheus.DefaultRegisterer.Unregister(m.requestsTotal)
	prometheus.DefaultRegisterer.Unregister(m.requestLatency)
	prometheus.DefaultRegisterer.Unregister(m.domainChecks)
	prometheus.DefaultRegisterer.Unregister(m.noncesIssued)
	prometheus.DefaultRegisterer.Unregister(m.oauthExchanges)
	prometheus.DefaultRegisterer.Unregister(m.fareLookups)
}

func TestWidgetMetricsNilSafe(t *testing.T) {
	var m *WidgetMetrics
	m.ObserveRequest("/init", 200, 0.1)
	m.ObserveDomainCheck(true, nil)
	m.ObserveNonceIssued()
	m.ObserveOAuthExchange(nil)
	m.ObserveFareLookup(nil)
}

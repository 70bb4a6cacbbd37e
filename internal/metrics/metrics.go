// Package metrics registers drain's Prometheus collectors and renders them
// as the body of a built-in dynamic endpoint (no separate listener, no
// net/http mux), per SPEC_FULL.md §4.9.
package metrics

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Collectors bundles the counters/histogram/gauge the rest of the codebase
// increments as requests/connections/CGI invocations/endpoint invocations
// happen.
type Collectors struct {
	Registry *prometheus.Registry

	RequestsTotal          *prometheus.CounterVec
	RequestDuration        *prometheus.HistogramVec
	ActiveConnections      prometheus.Gauge
	CGIInvocationsTotal    *prometheus.CounterVec
	EndpointInvocationsTotal *prometheus.CounterVec
}

// New registers a fresh set of collectors against a new registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		Registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drain_requests_total",
			Help: "Total HTTP requests handled, by method and response status.",
		}, []string{"method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "drain_request_duration_seconds",
			Help: "Request handling latency in seconds, by method.",
		}, []string{"method"}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drain_active_connections",
			Help: "Number of currently open client connections.",
		}),
		CGIInvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drain_cgi_invocations_total",
			Help: "Total CGI subprocess invocations, by outcome.",
		}, []string{"outcome"}),
		EndpointInvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drain_endpoint_invocations_total",
			Help: "Total dynamic endpoint invocations, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}

	reg.MustRegister(
		c.RequestsTotal,
		c.RequestDuration,
		c.ActiveConnections,
		c.CGIInvocationsTotal,
		c.EndpointInvocationsTotal,
	)

	return c
}

// Render encodes the current metric values in Prometheus's text exposition
// format, the body served by the built-in "metrics" dynamic endpoint.
func (c *Collectors) Render() ([]byte, string, error) {
	families, err := c.Registry.Gather()
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, "", err
		}
	}

	return buf.Bytes(), string(expfmt.NewFormat(expfmt.TypeTextPlain)), nil
}

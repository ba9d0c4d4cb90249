package lnurlpay

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const outcomeOK = "ok"

// metrics counts served requests per endpoint and outcome.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lnurlpay",
				Name:      "requests_total",
				Help: "Number of requests served, by " +
					"endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
	}
	m.registry.MustRegister(m.requests)

	return m
}

// observe records one request. A nil error counts as success.
func (m *metrics) observe(endpoint string, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = errorKind(err).String()
	}

	m.requests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

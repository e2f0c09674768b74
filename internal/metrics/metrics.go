// Package metrics holds the Prometheus collectors of the front-end.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeTransport = "transport_error"
	OutcomeMalformed = "malformed"
)

// Metrics is the set of collectors. A nil *Metrics records nothing.
type Metrics struct {
	upstream      *prometheus.CounterVec
	requests      *prometheus.HistogramVec
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	queries       *prometheus.HistogramVec
	gatherer      prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
// PRE: reg also implements prometheus.Gatherer (a *prometheus.Registry or the default registerer)
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fes_upstream_requests_total",
			Help: "Requests to the evaluation API by source and outcome.",
		}, []string{"source", "outcome"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fes_http_request_duration_seconds",
			Help:    "Duration of served HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fes_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fes_registrations_total",
			Help: "Registration submissions by outcome.",
		}, []string{"outcome"}),
		queries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fes_db_query_duration_seconds",
			Help:    "Duration of local database operations.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		}, []string{"op"}),
	}
	reg.MustRegister(m.upstream, m.requests, m.logins, m.registrations, m.queries)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// ObserveUpstream counts one API call.
func (m *Metrics) ObserveUpstream(source, outcome string) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(source, outcome).Inc()
}

// ObserveRequest records a served request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveLogin counts a login attempt.
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// ObserveRegistration counts a registration submission.
func (m *Metrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

// ObserveQuery records a local database operation.
func (m *Metrics) ObserveQuery(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(op).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

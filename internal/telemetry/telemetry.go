// Package telemetry exposes prometheus metrics for the classification
// pipeline and the relocation crawler. All observation helpers are nil-safe
// so components can take an optional *Metrics.
package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the counters for one process.
type Metrics struct {
	registry *prometheus.Registry

	classifications *prometheus.CounterVec
	identityMatches *prometheus.CounterVec
	crawlPages      prometheus.Counter
	crawls          *prometheus.CounterVec
}

// New builds a Metrics with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formwatch_classifications_total",
			Help: "Change classifications produced, by kind.",
		}, []string{"kind"}),
		identityMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formwatch_identity_matches_total",
			Help: "Identity match decisions produced, by kind.",
		}, []string{"kind"}),
		crawlPages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formwatch_crawl_pages_total",
			Help: "Pages fetched by relocation crawls.",
		}),
		crawls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formwatch_crawls_total",
			Help: "Relocation crawls completed, by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(m.classifications, m.identityMatches, m.crawlPages, m.crawls)
	return m
}

// ObserveClassification counts one change classification.
func (m *Metrics) ObserveClassification(kind string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(kind).Inc()
}

// ObserveIdentityMatch counts one identity decision.
func (m *Metrics) ObserveIdentityMatch(kind string) {
	if m == nil {
		return
	}
	m.identityMatches.WithLabelValues(kind).Inc()
}

// ObserveCrawlPage counts one fetched page.
func (m *Metrics) ObserveCrawlPage() {
	if m == nil {
		return
	}
	m.crawlPages.Inc()
}

// ObserveCrawl counts one completed crawl with its outcome
// ("matched" or "unmatched").
func (m *Metrics) ObserveCrawl(outcome string) {
	if m == nil {
		return
	}
	m.crawls.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ListenAndServe starts a blocking metrics listener on the given port.
func (m *Metrics) ListenAndServe(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

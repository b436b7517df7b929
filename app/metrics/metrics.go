package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "i79_incidents"

// Metrics holds the counters for one pipeline run on a dedicated registry,
// exported as a node-exporter textfile.
type Metrics struct {
	registry *prometheus.Registry

	ArticlesFetched    *prometheus.CounterVec // labels: source
	ItemsSkipped       *prometheus.CounterVec // labels: source
	SourceFailures     *prometheus.CounterVec // labels: source
	SourceRequests     *prometheus.CounterVec // labels: source
	FilterRejections   *prometheus.CounterVec // labels: reason
	OverrideWarnings   prometheus.Counter
	WindowDropped      prometheus.Counter
	IncidentsPublished prometheus.Gauge
	RunDuration        prometheus.Gauge
	LastSuccess        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ArticlesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_fetched_total",
			Help:      "Raw articles returned by each source adapter.",
		}, []string{"source"}),
		ItemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Malformed items skipped by each source adapter.",
		}, []string{"source"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Sources that were unavailable after all retries.",
		}, []string{"source"}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "HTTP requests counted against each source's budget.",
		}, []string{"source"}),
		FilterRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_rejections_total",
			Help:      "Articles dropped by the relevance filter, by reason.",
		}, []string{"reason"}),
		OverrideWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "override_warnings_total",
			Help:      "Overrides that referenced an unknown incident id.",
		}),
		WindowDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_dropped_total",
			Help:      "Records dropped for being older than the lookback window.",
		}),
		IncidentsPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "incidents_published",
			Help:      "Incidents in the published artifact.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last pipeline run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that published an artifact.",
		}),
	}

	m.registry.MustRegister(
		m.ArticlesFetched,
		m.ItemsSkipped,
		m.SourceFailures,
		m.SourceRequests,
		m.FilterRejections,
		m.OverrideWarnings,
		m.WindowDropped,
		m.IncidentsPublished,
		m.RunDuration,
		m.LastSuccess,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes the registry in the text exposition format, replacing
// path atomically.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

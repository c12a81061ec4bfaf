package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "scanpay"

// Metrics of the authorization workflow. A nil *Metrics discards every observation
type Metrics struct {
	Scans               *prometheus.CounterVec
	FeeLookups          *prometheus.CounterVec
	Submissions         *prometheus.CounterVec
	SubmissionLatencyMS prometheus.Histogram
}

func New(registerer prometheus.Registerer) (m *Metrics) {
	m = &Metrics{
		Scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scans_total",
			Help:      "Decoded payloads by normalization outcome.",
		}, []string{"outcome"}),
		FeeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fee_lookups_total",
			Help:      "Fee resolutions by outcome.",
		}, []string{"outcome"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "submissions_total",
			Help:      "Transfer submissions by classified outcome.",
		}, []string{"category"}),
		SubmissionLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "submission_duration_ms",
			Help:      "Transfer submission latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}),
	}
	registerer.MustRegister(m.Scans, m.FeeLookups, m.Submissions, m.SubmissionLatencyMS)
	return m
}

func (m *Metrics) ObserveScan(outcome string) {
	if m == nil {
		return
	}
	m.Scans.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFeeLookup(outcome string) {
	if m == nil {
		return
	}
	m.FeeLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSubmission(category string, took time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(category).Inc()
	m.SubmissionLatencyMS.Observe(float64(took.Milliseconds()))
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors recorded by the engine. A nil *Metrics is valid
// and records nothing, so components can take it as an optional dependency.
type Metrics struct {
	Registry        *prometheus.Registry
	LLMCalls        *prometheus.CounterVec
	LLMLatency      *prometheus.HistogramVec
	PagesSummarized *prometheus.CounterVec
	SearchResults   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osint_llm_calls_total",
			Help: "Provider attempts made by the dispatcher.",
		}, []string{"provider", "outcome"}),
		LLMLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "osint_llm_call_seconds",
			Help:    "Provider call latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"provider"}),
		PagesSummarized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "osint_pages_summarized_total",
			Help: "Fetch-summarize worker results.",
		}, []string{"outcome"}),
		SearchResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "osint_search_results_total",
			Help: "Links returned by the search collaborator.",
		}),
	}
	reg.MustRegister(
		m.LLMCalls, m.LLMLatency, m.PagesSummarized, m.SearchResults,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveLLMCall(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(provider, outcome).Inc()
	m.LLMLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePage(outcome string) {
	if m == nil {
		return
	}
	m.PagesSummarized.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSearch(results int) {
	if m == nil {
		return
	}
	m.SearchResults.Add(float64(results))
}

// Package metrics holds the Prometheus collectors shared by the agent and its API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oceanus_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "oceanus_api_request_duration_seconds",
			Help: "Duration of API requests",
		},
		[]string{"method", "endpoint"},
	)
	DiagnosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oceanus_diagnoses_total",
			Help: "Workflow runs that claimed an exception, by final status",
		},
		[]string{"status"},
	)
	NodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oceanus_workflow_node_duration_seconds",
			Help:    "Duration of each workflow node",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"node"},
	)
	LLMCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oceanus_llm_calls_total",
			Help: "Total number of LLM provider calls",
		},
		[]string{"operation", "status"},
	)
	KnowledgeAccumulated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oceanus_knowledge_cases_accumulated_total",
			Help: "High-confidence diagnoses added to the knowledge base",
		},
	)
	PendingExceptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oceanus_pending_exceptions",
			Help: "Exceptions waiting for diagnosis",
		},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oceanus_embedding_cache_hits_total",
			Help: "Total number of embedding cache hits",
		},
	)
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oceanus_embedding_cache_misses_total",
			Help: "Total number of embedding cache misses",
		},
	)
)

func init() {
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(DiagnosesTotal)
	prometheus.MustRegister(NodeDuration)
	prometheus.MustRegister(LLMCallsTotal)
	prometheus.MustRegister(KnowledgeAccumulated)
	prometheus.MustRegister(PendingExceptions)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// ObserveNode records how long a workflow node took.
func ObserveNode(node string, start time.Time) {
	NodeDuration.WithLabelValues(node).Observe(time.Since(start).Seconds())
}

// RecordLLMCall counts one provider call by outcome.
func RecordLLMCall(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	LLMCallsTotal.WithLabelValues(operation, status).Inc()
}

// Package metrics exposes Prometheus collectors for the registry,
// dispatcher, poller and HTTP layers, replacing the teacher's
// hand-rolled counters/histograms with the real client library the
// rest of the pack (ghjramos-aistore, Cmerrill1713-universal-ai-tools)
// already depends on for this exact concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics, recorded by middleware.Logger; gRPC calls
	// are not counted here.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modelserver_requests_total",
		Help: "Total number of inference and management requests.",
	}, []string{"route", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modelserver_request_duration_seconds",
		Help:    "Request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	RequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modelserver_requests_in_flight",
		Help: "Number of requests currently being handled.",
	})

	// Registry (component F) metrics.
	ModelsLoaded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "modelserver_models_loaded",
		Help: "Number of models currently present in the registry, by framework.",
	}, []string{"framework"})

	RegistryLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modelserver_registry_loads_total",
		Help: "Total number of model load attempts, by framework and outcome.",
	}, []string{"framework", "outcome"})

	// Poller (component G) metrics.
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modelserver_poll_cycles_total",
		Help: "Total number of reconciliation cycles run, by outcome.",
	}, []string{"outcome"})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "modelserver_poll_duration_seconds",
		Help:    "Duration of a single store reconciliation cycle.",
		Buckets: prometheus.DefBuckets,
	})

	// Dispatcher (component H) metrics.
	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modelserver_inference_duration_seconds",
		Help:    "Duration of a single Predict call, by framework.",
		Buckets: prometheus.DefBuckets,
	}, []string{"framework"})

	InferenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modelserver_inference_errors_total",
		Help: "Total number of failed Predict calls, by framework and error kind.",
	}, []string{"framework", "kind"})

	WorkerPoolQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modelserver_worker_pool_queue_depth",
		Help: "Number of predict jobs waiting for a free worker.",
	})
)

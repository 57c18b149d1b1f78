package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
	HTTPRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected by the rate limiter."},
	)

	// SolverRuns counts finished runs by algorithm and final status
	SolverRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solver_runs_total", Help: "Solver runs by algorithm and status."},
		[]string{"algorithm", "status"},
	)
	SolverDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "solver_run_duration_seconds", Help: "Wall time of a solver run.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}},
		[]string{"algorithm"},
	)
	SolverIterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solver_iterations_total", Help: "Colony iterations completed."},
		[]string{"algorithm"},
	)
	SolverLastBestCost = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "solver_last_best_cost", Help: "Best cost of the most recently finished run."},
		[]string{"algorithm"},
	)
	PheromoneResets = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "solver_pheromone_resets_total", Help: "Max-Min stagnation resets of the pheromone field."},
	)
	RunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "solver_runs_in_flight", Help: "Runs currently being solved."},
	)

	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers every collector on Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration, HTTPRateLimited)
		Registry.MustRegister(SolverRuns, SolverDuration, SolverIterations, SolverLastBestCost, PheromoneResets, RunsInFlight)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// ObserveRun records the outcome of one solver run.
func ObserveRun(algorithm, status string, seconds, bestCost float64) {
	SolverRuns.WithLabelValues(algorithm, status).Inc()
	SolverDuration.WithLabelValues(algorithm).Observe(seconds)
	if bestCost > 0 {
		SolverLastBestCost.WithLabelValues(algorithm).Set(bestCost)
	}
}

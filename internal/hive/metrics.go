package hive

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mirrors etalazz-vsa's telemetry/churn package: package-level
// collectors registered in init() via prometheus.MustRegister, served on
// a dedicated /metrics endpoint.
var (
	jobsRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keyforge_hive_jobs_registered_total",
		Help: "Total jobs accepted by register_job, including dedup hits.",
	})
	jobsDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keyforge_hive_jobs_deduped_total",
		Help: "register_job calls that matched an existing job_id.",
	})
	resultsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keyforge_hive_results_accepted_total",
		Help: "submit_result calls that improved a job's best score.",
	})
	resultsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keyforge_hive_results_rejected_total",
		Help: "submit_result calls that did not improve a job's best score.",
	})
	activeNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keyforge_hive_active_nodes",
		Help: "Nodes that have sent a heartbeat within the staleness threshold.",
	})
	heartbeatLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "keyforge_hive_heartbeat_latency_seconds",
		Help:    "Time to process a heartbeat request.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(jobsRegistered, jobsDeduped, resultsAccepted, resultsRejected, activeNodes, heartbeatLatency)
}

// ServeMetrics starts a dedicated metrics HTTP server on addr, following
// etalazz-vsa's startMetricsEndpoint shape, returning the server so the
// caller can Shutdown it alongside the main Hive server.
func ServeMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server stopped: %v\n", err)
		}
	}()
	return srv
}

// ShutdownMetrics gracefully stops a metrics server started by ServeMetrics.
func ShutdownMetrics(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}

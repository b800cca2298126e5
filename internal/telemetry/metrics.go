package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	AnalysesTriggered = prometheus.NewCounter(prometheus.CounterOpts{Name: "analyses_triggered_total", Help: "Analysis tasks accepted via the API"})
	AnalysesCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "analyses_completed_total", Help: "Analysis tasks that finished successfully"})
	AnalysesFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "analyses_failed_total", Help: "Analysis tasks that ended in a failed state"})
	AuthRejects       = prometheus.NewCounter(prometheus.CounterOpts{Name: "auth_rejects_total", Help: "Requests rejected by the API key check"})
	TasksEvicted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "tasks_evicted_total", Help: "Terminal tasks removed by the retention sweep"})
	AnalysesInFlight  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "analyses_inflight", Help: "Analysis tasks currently executing"})
	TasksTracked      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "tasks_tracked", Help: "Task records currently held in memory"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysesTriggered,
			AnalysesCompleted,
			AnalysesFailed,
			AuthRejects,
			TasksEvicted,
			AnalysesInFlight,
			TasksTracked,
		)
	})
	return promhttp.Handler()
}

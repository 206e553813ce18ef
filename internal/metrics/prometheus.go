package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aegis_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aegis_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Position metrics
	HealthFactor = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aegis_position_health_factor",
			Help: "Health factor of the monitored position",
		},
	)

	LoanToValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aegis_position_loan_to_value",
			Help: "Loan-to-value ratio of the monitored position",
		},
	)

	LiquidationRiskScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aegis_position_liquidation_risk_score",
			Help: "Continuous liquidation risk score in [0,1]",
		},
	)

	// Alert metrics
	AlertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_alerts_raised_total",
			Help: "Total number of alerts raised",
		},
		[]string{"level"},
	)

	// Emergency metrics
	EmergencyTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_emergency_triggers_total",
			Help: "Total number of emergency procedure triggers",
		},
		[]string{"executed"}, // executed: true|false
	)

	// Source metrics
	SourceCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_source_calls_total",
			Help: "Total number of position source calls",
		},
		[]string{"method", "status"}, // status: success|error
	)

	SourceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aegis_source_latency_seconds",
			Help:    "Position source call latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	prometheus.MustRegister(HealthFactor)
	prometheus.MustRegister(LoanToValue)
	prometheus.MustRegister(LiquidationRiskScore)

	prometheus.MustRegister(AlertsRaised)
	prometheus.MustRegister(EmergencyTriggers)

	prometheus.MustRegister(SourceCalls)
	prometheus.MustRegister(SourceLatency)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordSourceCall records a position source call
func RecordSourceCall(method string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	SourceCalls.WithLabelValues(method, status).Inc()
	SourceLatency.WithLabelValues(method).Observe(latency.Seconds())
}

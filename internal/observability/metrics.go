package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	operationTotal    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	providerErrors    *prometheus.CounterVec
	eventsTotal       *prometheus.CounterVec
	sessionConnected  prometheus.Gauge
	providerRebinds   prometheus.Counter

	gatewayClients  prometheus.Gauge
	gatewayRequests *prometheus.CounterVec
	hookRuns        *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			operationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "wallet_operation_total",
					Help: "Total wallet operations by operation and status.",
				},
				[]string{"operation", "status"},
			),
			operationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "wallet_operation_duration_seconds",
					Help:    "Wallet operation duration in seconds by operation.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation"},
			),
			providerErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "wallet_provider_errors_total",
					Help: "Total decoded provider errors by kind.",
				},
				[]string{"kind"},
			),
			eventsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "wallet_events_total",
					Help: "Total provider events received by event name.",
				},
				[]string{"event"},
			),
			sessionConnected: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "wallet_session_connected",
					Help: "Wallet session connected state (1 connected, 0 disconnected).",
				},
			),
			providerRebinds: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "wallet_provider_rebinds_total",
					Help: "Total event bridge rebinds after the located provider changed.",
				},
			),
			gatewayClients: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "gateway_connected_clients",
					Help: "Current number of connected gateway clients.",
				},
			),
			gatewayRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gateway_requests_total",
					Help: "Total gateway RPC requests by method and status.",
				},
				[]string{"method", "status"},
			),
			hookRuns: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "hook_runs_total",
					Help: "Total lifecycle hook executions by event and status.",
				},
				[]string{"event", "status"},
			),
		}

		prometheus.MustRegister(
			m.operationTotal,
			m.operationDuration,
			m.providerErrors,
			m.eventsTotal,
			m.sessionConnected,
			m.providerRebinds,
			m.gatewayClients,
			m.gatewayRequests,
			m.hookRuns,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordOperation(operation string, duration time.Duration, success bool) {
	m := getMetrics()
	m.operationTotal.WithLabelValues(operation, statusLabel(success)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordProviderError(kind string) {
	m := getMetrics()
	m.providerErrors.WithLabelValues(kind).Inc()
}

func RecordEvent(event string) {
	m := getMetrics()
	m.eventsTotal.WithLabelValues(event).Inc()
}

func SetSessionConnected(connected bool) {
	m := getMetrics()
	value := 0.0
	if connected {
		value = 1.0
	}
	m.sessionConnected.Set(value)
}

func RecordRebind() {
	m := getMetrics()
	m.providerRebinds.Inc()
}

func SetGatewayClients(count int) {
	m := getMetrics()
	m.gatewayClients.Set(float64(count))
}

func RecordGatewayRequest(method string, success bool) {
	m := getMetrics()
	m.gatewayRequests.WithLabelValues(method, statusLabel(success)).Inc()
}

func RecordHookRun(event string, success bool) {
	m := getMetrics()
	m.hookRuns.WithLabelValues(event, statusLabel(success)).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsGenerator interface {
	AddUptime(float64)

	IncNumOperationsBuilt()
	IncNumOperationsSubmitted(string)
	IncNumOperationsFinalized(string)
	IncNumRelayRetries(string)
	IncNumSweeperLoop()
}

// OrchestratorMetrics contains instrumented metrics that should be incremented
// by the orchestrator using the methods below
type OrchestratorMetrics struct {
	uptime prometheus.Counter

	numOperationsBuilt     prometheus.Counter
	numOperationsSubmitted *prometheus.CounterVec
	// if numOperationsFinalized lags numOperationsSubmitted forever, the sweeper is stuck
	numOperationsFinalized *prometheus.CounterVec
	numRelayRetries        *prometheus.CounterVec
	numSweeperLoop         prometheus.Counter
}

const orchNamespace = "orchestrator"

func NewOrchestratorMetrics(reg prometheus.Registerer) *OrchestratorMetrics {
	return &OrchestratorMetrics{
		uptime: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: orchNamespace,
				Name:      "uptime_milliseconds_total",
				Help:      "The elapse time in milliseconds since the node is booted",
			}),

		numOperationsBuilt: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: orchNamespace,
				Name:      "num_operations_built_total",
				Help:      "The number of operations assembled by the builder endpoint",
			}),

		numOperationsSubmitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: orchNamespace,
				Name:      "num_operations_submitted_total",
				Help:      "The number of operations handed to the relay endpoint, by outcome",
			}, []string{"status"}),

		numOperationsFinalized: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: orchNamespace,
				Name:      "num_operations_finalized_total",
				Help:      "The number of submissions the receipt sweeper resolved, by final status",
			}, []string{"status"}),

		numRelayRetries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: orchNamespace,
				Name:      "num_relay_retries_total",
				Help:      "The number of relay attempts that were retried, by failure kind",
			}, []string{"kind"}),

		numSweeperLoop: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: orchNamespace,
				Name:      "num_sweeper_loop_total",
				Help:      "The number of receipt sweeper loops. If it isn't increasing, the sweeper is stuck",
			}),
	}
}

func (m *OrchestratorMetrics) AddUptime(total float64) {
	m.uptime.Add(total)
}

func (m *OrchestratorMetrics) IncNumOperationsBuilt() {
	m.numOperationsBuilt.Inc()
}

func (m *OrchestratorMetrics) IncNumOperationsSubmitted(status string) {
	m.numOperationsSubmitted.WithLabelValues(status).Inc()
}

func (m *OrchestratorMetrics) IncNumOperationsFinalized(status string) {
	m.numOperationsFinalized.WithLabelValues(status).Inc()
}

func (m *OrchestratorMetrics) IncNumRelayRetries(kind string) {
	m.numRelayRetries.WithLabelValues(kind).Inc()
}

func (m *OrchestratorMetrics) IncNumSweeperLoop() {
	m.numSweeperLoop.Inc()
}

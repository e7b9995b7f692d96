package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gateway-fm/jointsim/internal/ledger"
	"github.com/gateway-fm/jointsim/internal/sim"
)

// PrometheusMetrics holds all Prometheus metrics for the simulator.
// It observes both the simulation phases and every ledger call.
type PrometheusMetrics struct {
	// Counters
	ParticipantsRegistered prometheus.Counter
	RelationshipsCreated   prometheus.Counter
	TransfersTotal         *prometheus.CounterVec
	PhaseErrors            *prometheus.CounterVec

	// Gauges
	SuccessRatio prometheus.Gauge
	Phase        *prometheus.GaugeVec

	// Histograms
	InitialBalance prometheus.Histogram
	LedgerLatency  *prometheus.HistogramVec
}

var (
	_ sim.Observer        = (*PrometheusMetrics)(nil)
	_ ledger.CallObserver = (*PrometheusMetrics)(nil)
)

// NewPrometheusMetrics creates and registers all Prometheus metrics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &PrometheusMetrics{
		ParticipantsRegistered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jointsim_participants_registered_total",
				Help: "Participants registered by the provisioner",
			},
		),

		RelationshipsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jointsim_relationships_created_total",
				Help: "Relationships created by the fabricator",
			},
		),

		TransfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jointsim_transfers_total",
				Help: "Counted transfer attempts by outcome",
			},
			[]string{"outcome"},
		),

		PhaseErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jointsim_phase_errors_total",
				Help: "Phases that ended with an error",
			},
			[]string{"phase"},
		),

		SuccessRatio: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "jointsim_success_ratio",
				Help: "Success ratio at the latest sample",
			},
		),

		Phase: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jointsim_phase",
				Help: "Current phase (1 if active, 0 otherwise)",
			},
			[]string{"phase"},
		),

		InitialBalance: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jointsim_initial_balance",
				Help:    "Initial balance of created relationships",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
		),

		LedgerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jointsim_ledger_call_latency_seconds",
				Help:    "Ledger call latency by contract method, including confirmation",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "status"},
		),
	}
}

// knownMethods is a fixed set of ledger methods to prevent cardinality explosion
var knownMethods = map[string]bool{
	ledger.MethodUsers:         true,
	ledger.MethodRegisterUser:  true,
	ledger.MethodJointAccounts: true,
	ledger.MethodCreateAcc:     true,
	ledger.MethodSendAmount:    true,
}

// ObserveLedgerCall implements ledger.CallObserver.
func (m *PrometheusMetrics) ObserveLedgerCall(method string, d time.Duration, err error) {
	if !knownMethods[method] {
		method = "other"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.LedgerLatency.WithLabelValues(method, status).Observe(d.Seconds())
}

// PhaseStarted implements sim.Observer.
func (m *PrometheusMetrics) PhaseStarted(phase sim.Phase) {
	for _, p := range []sim.Phase{sim.PhaseProvision, sim.PhaseFabricate, sim.PhaseSimulate} {
		if p == phase {
			m.Phase.WithLabelValues(string(p)).Set(1)
		} else {
			m.Phase.WithLabelValues(string(p)).Set(0)
		}
	}
}

// PhaseFinished implements sim.Observer.
func (m *PrometheusMetrics) PhaseFinished(phase sim.Phase, err error) {
	m.Phase.WithLabelValues(string(phase)).Set(0)
	if err != nil {
		m.PhaseErrors.WithLabelValues(string(phase)).Inc()
	}
}

// ParticipantRegistered implements sim.Observer.
func (m *PrometheusMetrics) ParticipantRegistered(uint64) {
	m.ParticipantsRegistered.Inc()
}

// RelationshipCreated implements sim.Observer.
func (m *PrometheusMetrics) RelationshipCreated(_, _, balance uint64) {
	m.RelationshipsCreated.Inc()
	m.InitialBalance.Observe(float64(balance))
}

// TransferAttempted implements sim.Observer.
func (m *PrometheusMetrics) TransferAttempted(a sim.TransferAttempt) {
	m.TransfersTotal.WithLabelValues(a.Outcome.String()).Inc()
}

// RatioSampled implements sim.Observer.
func (m *PrometheusMetrics) RatioSampled(s sim.Sample) {
	m.SuccessRatio.Set(s.Ratio)
}

package compliance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics records nothing.
//
// Metrics:
//   - compliance_pipeline_runs_total{status}
//   - compliance_analyzer_invocations_total{analyzer,state}
//   - compliance_analyzer_duration_seconds{analyzer}
//   - compliance_conflicts_total
//   - compliance_deliveries_total{result}
//   - compliance_config_reloads_total{table,result}
type Metrics struct {
	runs        *prometheus.CounterVec
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	conflicts   prometheus.Counter
	deliveries  *prometheus.CounterVec
	reloads     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg (nil skips registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_pipeline_runs_total",
			Help: "Completed pipeline runs by overall status",
		}, []string{"status"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_analyzer_invocations_total",
			Help: "Analyzer invocations by terminal state",
		}, []string{"analyzer", "state"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_analyzer_duration_seconds",
			Help:    "Analyzer invocation latency",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"analyzer"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compliance_conflicts_total",
			Help: "Cross-discipline conflicts detected",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_deliveries_total",
			Help: "Report deliveries by result",
		}, []string{"result"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_config_reloads_total",
			Help: "Configuration table reloads",
		}, []string{"table", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.invocations, m.duration, m.conflicts, m.deliveries, m.reloads)
	}
	return m
}

func (m *Metrics) observeRun(status domain.Status) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeInvocation(analyzer string, state domain.ExecState, d time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(analyzer, string(state)).Inc()
	m.duration.WithLabelValues(analyzer).Observe(d.Seconds())
}

func (m *Metrics) observeConflicts(n int) {
	if m == nil || n == 0 {
		return
	}
	m.conflicts.Add(float64(n))
}

func (m *Metrics) observeDelivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) observeReload(table string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(table, result).Inc()
}

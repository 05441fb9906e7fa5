package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vogiaan1904/clinicqueue-sync/internal/models"
)

const namespace = "clinicqueue"

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	reg *prometheus.Registry

	pushEvents      *prometheus.CounterVec
	pushDropped     *prometheus.CounterVec
	pushTransitions *prometheus.CounterVec
	pushState       *prometheus.GaugeVec
	commands        *prometheus.CounterVec
	reverts         *prometheus.CounterVec
	waiting         *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		pushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_events_total",
			Help:      "Push events received, by event name and whether they changed state.",
		}, []string{"event", "result"}),
		pushDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_events_dropped_total",
			Help:      "Push events dropped because their payload could not be decoded.",
		}, []string{"event"}),
		pushTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_state_transitions_total",
			Help:      "Push connection lifecycle transitions, by target state.",
		}, []string{"state"}),
		pushState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_connection_state",
			Help:      "1 for the current push connection state, 0 otherwise.",
		}, []string{"state"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Dispatched commands by kind and outcome.",
		}, []string{"command", "outcome"}),
		reverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverts_total",
			Help:      "Corrective snapshot re-fetches after failed commands.",
		}, []string{"result"}),
		waiting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting_tokens",
			Help:      "Tokens currently waiting, per doctor.",
		}, []string{"doctor_id", "department_id"}),
	}

	m.reg.MustRegister(
		m.pushEvents,
		m.pushDropped,
		m.pushTransitions,
		m.pushState,
		m.commands,
		m.reverts,
		m.waiting,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) PushEvent(event string, applied bool) {
	if m == nil {
		return
	}
	result := "noop"
	if applied {
		result = "applied"
	}
	m.pushEvents.WithLabelValues(event, result).Inc()
}

func (m *Metrics) PushDropped(event string) {
	if m == nil {
		return
	}
	m.pushDropped.WithLabelValues(event).Inc()
}

// PushState records a transition into state; states lists every label so
// the previous state's gauge drops back to 0.
func (m *Metrics) PushState(state string, states []string) {
	if m == nil {
		return
	}
	m.pushTransitions.WithLabelValues(state).Inc()
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.pushState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) Command(command, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) Revert(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reverts.WithLabelValues(result).Inc()
}

// ObserveQueue is a queue.ChangeListener-compatible gauge update.
func (m *Metrics) ObserveQueue(st models.DoctorQueueState) {
	if m == nil {
		return
	}
	m.waiting.WithLabelValues(st.DoctorID, st.DepartmentID).Set(float64(len(st.Waiting)))
}

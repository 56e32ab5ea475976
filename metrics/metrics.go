// Package metrics exposes Prometheus counters for shell sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "liminal"

// Metrics holds the shell pump counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	SessionsStarted prometheus.Counter
	Exits           prometheus.Counter
	OutputBytes     prometheus.Counter
	InputBytes      prometheus.Counter
	Errors          *prometheus.CounterVec
}

// New creates the counters and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shell",
			Name:      "sessions_started_total",
			Help:      "Shell sessions successfully spawned.",
		}),
		Exits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shell",
			Name:      "exits_total",
			Help:      "Shell sessions whose process exit was observed.",
		}),
		OutputBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shell",
			Name:      "output_bytes_total",
			Help:      "Bytes read from shell stdout and stderr.",
		}),
		InputBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shell",
			Name:      "input_bytes_total",
			Help:      "Bytes written to shell stdin.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shell",
			Name:      "errors_total",
			Help:      "Shell pump failures by operation.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.SessionsStarted, m.Exits, m.OutputBytes, m.InputBytes, m.Errors)
	}
	return m
}

// SessionStarted counts a spawned shell
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// Exited counts an observed process exit
func (m *Metrics) Exited() {
	if m == nil {
		return
	}
	m.Exits.Inc()
}

// Output counts bytes read from stdout and stderr
func (m *Metrics) Output(n int) {
	if m == nil {
		return
	}
	m.OutputBytes.Add(float64(n))
}

// Input counts bytes written to stdin
func (m *Metrics) Input(n int) {
	if m == nil {
		return
	}
	m.InputBytes.Add(float64(n))
}

// Error counts a failure of the named operation
func (m *Metrics) Error(op string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(op).Inc()
}

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionStarted()
	m.Output(10)
	m.Output(5)
	m.Input(3)
	m.Error("write")
	m.Exited()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsStarted))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.OutputBytes))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.InputBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exits))

	expected := `
# HELP liminal_shell_exits_total Shell sessions whose process exit was observed.
# TYPE liminal_shell_exits_total counter
liminal_shell_exits_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "liminal_shell_exits_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionStarted()
		m.Output(1)
		m.Input(1)
		m.Error("spawn")
		m.Exited()
	})
}

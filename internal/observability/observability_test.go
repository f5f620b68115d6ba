package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.NormalizeErrors.WithLabelValues("schema").Inc()
	m.ModelRuns.WithLabelValues("HyMod").Add(2)

	assert.InDelta(t, 1, testutil.ToFloat64(m.NormalizeErrors.WithLabelValues("schema")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ModelRuns.WithLabelValues("HyMod")), 0)

	// Each call returns independent collectors.
	other := NewMetricsForTesting()
	assert.InDelta(t, 0, testutil.ToFloat64(other.ModelRuns.WithLabelValues("HyMod")), 0)
}

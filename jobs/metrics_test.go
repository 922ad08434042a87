package jobs

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track(TaskTokenSweep).End(nil))
	failure := errors.New("boom")
	assert.Equal(t, failure, metrics.Track(TaskTokenSweep).End(failure))

	metrics.AddFlagged(4)
	metrics.AddFlagged(-1)

	families, err := registry.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetCounter() != nil {
				counts[family.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), counts["taskgate_jobs_total"])
	assert.Equal(t, float64(1), counts["taskgate_jobs_failures_total"])
	assert.Equal(t, float64(4), counts["taskgate_refresh_tokens_flagged_total"])
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	assert.NoError(t, metrics.Track(TaskTokenSweep).End(nil))
	metrics.AddFlagged(10)
}

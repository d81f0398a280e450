package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectorsOnFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })

	CronRuns.WithLabelValues("metrics-test", "succeeded").Inc()
	require.Equal(t, 1.0, testutil.ToFloat64(CronRuns.WithLabelValues("metrics-test", "succeeded")))

	// registering twice on the same registry is a programming error
	require.Panics(t, func() { RegisterCollectors(reg) })
}

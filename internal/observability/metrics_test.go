package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestBatchJobs_CountsLifecycleEvents(t *testing.T) {
	m := NewUnregisteredMetrics()

	// one job that finished and one that failed
	m.BatchJobs.WithLabelValues("running").Inc()
	m.BatchJobs.WithLabelValues("done").Inc()
	m.BatchJobs.WithLabelValues("running").Inc()
	m.BatchJobs.WithLabelValues("error").Inc()

	expected := `
# HELP pandal_finder_batch_jobs_total Batch job lifecycle events by status.
# TYPE pandal_finder_batch_jobs_total counter
pandal_finder_batch_jobs_total{status="done"} 1
pandal_finder_batch_jobs_total{status="error"} 1
pandal_finder_batch_jobs_total{status="running"} 2
`
	require.NoError(t, testutil.CollectAndCompare(m.BatchJobs, strings.NewReader(expected)))
}

func TestNewUnregisteredMetrics_Independent(t *testing.T) {
	a, b := NewUnregisteredMetrics(), NewUnregisteredMetrics()
	a.DatasetSize.Set(3)

	require.Equal(t, 3.0, testutil.ToFloat64(a.DatasetSize))
	require.Equal(t, 0.0, testutil.ToFloat64(b.DatasetSize))
}

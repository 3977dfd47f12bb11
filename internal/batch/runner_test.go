package batch

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pandal-finder/internal/dataset"
	"pandal-finder/internal/models"
	"pandal-finder/internal/observability"
)

var testPandals = []models.Pandal{
	{Row: 1, Name: "A", Area: "X", Loc: models.Coordinate{Lat: 22.60, Lon: 88.40}},
	{Row: 2, Name: "B", Area: "Y", Loc: models.Coordinate{Lat: 22.50, Lon: 88.30}},
}

func newTestRunner(t *testing.T) (*Runner, *observability.Metrics, clockwork.Clock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.October, 1, 18, 30, 0, 0, time.UTC))
	m := observability.NewUnregisteredMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRunner(NewStore(), testPandals, 1.3, t.TempDir(), clock, logger, m), m, clock
}

func waitFinished(t *testing.T, job *Job) View {
	t.Helper()
	require.Eventually(t, func() bool {
		return job.Snapshot().Status != StatusRunning
	}, 5*time.Second, 10*time.Millisecond)
	return job.Snapshot()
}

func TestRunner_Success(t *testing.T) {
	r, m, clock := newTestRunner(t)
	input := filepath.Join(t.TempDir(), "points.csv")
	require.NoError(t, os.WriteFile(input, []byte("name,latitude,longitude\nHome,22.59,88.39\nOffice,22.51,88.31\nBad,x,88.3\n"), 0o600))

	job := r.Submit(input)
	assert.Same(t, job, r.Store().Get(job.ID))

	v := waitFinished(t, job)
	require.Equal(t, StatusDone, v.Status, v.Error)
	assert.Equal(t, 100, v.Progress)
	assert.Equal(t, clock.Now(), v.CreatedAt)
	require.NotNil(t, v.Result)
	assert.Equal(t, 2, v.Result.Rows)
	assert.Equal(t, 1, v.Result.Skipped)
	assert.Equal(t, job.ID+"_nearest.xlsx", v.Result.Filename)
	assert.Contains(t, v.Logs[0], "[18:30:00] Processing file: points.csv")

	f, err := excelize.OpenFile(v.Result.Output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(dataset.BatchSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Home", rows[1][1])
	assert.Equal(t, "A", rows[1][5])
	assert.Equal(t, "B", rows[2][5])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchJobs.WithLabelValues("running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchJobs.WithLabelValues("done")))
}

func TestRunner_MissingInput(t *testing.T) {
	r, m, _ := newTestRunner(t)

	job := r.Submit(filepath.Join(t.TempDir(), "nope.csv"))

	v := waitFinished(t, job)
	assert.Equal(t, StatusError, v.Status)
	assert.Contains(t, v.Error, "dataset not found")
	assert.Nil(t, v.Result)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchJobs.WithLabelValues("error")))
}

func TestRunner_NoValidPoints(t *testing.T) {
	r, _, _ := newTestRunner(t)
	input := filepath.Join(t.TempDir(), "points.csv")
	require.NoError(t, os.WriteFile(input, []byte("latitude,longitude\n"), 0o600))

	v := waitFinished(t, r.Submit(input))
	assert.Equal(t, StatusError, v.Status)
	assert.Contains(t, v.Error, "Calculation error")
}

func TestStore_GetUnknown(t *testing.T) {
	assert.Nil(t, NewStore().Get("missing"))
}

func TestJob_SetProgress(t *testing.T) {
	job := newJob(clockwork.NewFakeClock())

	job.SetProgress(1, 4, "")
	assert.Equal(t, 25, job.Snapshot().Progress)
	assert.Empty(t, job.Snapshot().Logs)

	job.SetProgress(4, 4, "all done")
	assert.Equal(t, 100, job.Snapshot().Progress)
	assert.Len(t, job.Snapshot().Logs, 1)
}

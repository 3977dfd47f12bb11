package batch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"pandal-finder/internal/calculator"
	"pandal-finder/internal/dataset"
	"pandal-finder/internal/models"
	"pandal-finder/internal/observability"
)

// Runner processes uploaded point files against a fixed set of pandals.
type Runner struct {
	store      *Store
	pandals    []models.Pandal
	roadFactor float64
	outDir     string
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

func NewRunner(store *Store, pandals []models.Pandal, roadFactor float64, outDir string, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Runner{
		store:      store,
		pandals:    pandals,
		roadFactor: roadFactor,
		outDir:     outDir,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

func (r *Runner) Store() *Store { return r.store }

// Submit registers a job for inputPath and processes it in a new goroutine.
func (r *Runner) Submit(inputPath string) *Job {
	job := newJob(r.clock)
	r.store.Add(job)
	r.metrics.BatchJobs.WithLabelValues(string(StatusRunning)).Inc()

	go r.process(job, inputPath)
	return job
}

func (r *Runner) process(job *Job, inputPath string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.failJob(job, fmt.Sprintf("Panic: %v", rec))
		}
	}()

	job.Log(fmt.Sprintf("Processing file: %s", filepath.Base(inputPath)))

	points, skipped, err := dataset.LoadPoints(inputPath, "")
	if err != nil {
		r.failJob(job, fmt.Sprintf("Could not read points: %v", err))
		return
	}
	job.Log(fmt.Sprintf("%d points read, %d rows skipped.", len(points), len(skipped)))
	for _, s := range skipped {
		job.Log("Skipped " + s.String())
	}

	start := r.clock.Now()
	rows, err := calculator.NearestEach(points, r.pandals, r.roadFactor, job.SetProgress, job.Log)
	if err != nil {
		r.failJob(job, fmt.Sprintf("Calculation error: %v", err))
		return
	}
	job.Log(fmt.Sprintf("Calculation finished in %s", r.clock.Since(start)))

	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		r.failJob(job, fmt.Sprintf("Could not create output dir: %v", err))
		return
	}
	filename := job.ID + "_nearest.xlsx"
	outputPath := filepath.Join(r.outDir, filename)

	job.Log("Writing result file...")
	if err := writeBatchFile(outputPath, rows); err != nil {
		r.failJob(job, fmt.Sprintf("Write error: %v", err))
		return
	}

	job.finish(&JobResult{
		Rows:     len(rows),
		Skipped:  len(skipped),
		Output:   outputPath,
		Filename: filename,
	})
	r.metrics.BatchJobs.WithLabelValues(string(StatusDone)).Inc()
	r.logger.Info("batch job done", "job_id", job.ID, "rows", len(rows), "skipped", len(skipped))
}

func (r *Runner) failJob(job *Job, msg string) {
	job.fail(msg)
	r.metrics.BatchJobs.WithLabelValues(string(StatusError)).Inc()
	r.logger.Error("batch job failed", "job_id", job.ID, "error", msg)
}

func writeBatchFile(path string, rows []models.BatchRow) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return dataset.WriteBatch(f, rows)
}

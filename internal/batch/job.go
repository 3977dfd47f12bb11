// Package batch runs nearest-pandal lookups for uploaded files of query
// points in the background.
package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type JobStatus string

const (
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusError   JobStatus = "error"
)

type JobResult struct {
	Rows     int    `json:"rows"`
	Skipped  int    `json:"skipped"`
	Output   string `json:"-"` // full path
	Filename string `json:"filename"`
}

type Job struct {
	ID        string
	Status    JobStatus
	Logs      []string
	Progress  int // 0-100
	Result    *JobResult
	Error     string
	CreatedAt time.Time

	mu    sync.RWMutex
	clock clockwork.Clock
}

// View is a point-in-time copy of a job, safe to serialize.
type View struct {
	ID        string     `json:"id"`
	Status    JobStatus  `json:"status"`
	Logs      []string   `json:"logs"`
	Progress  int        `json:"progress"`
	Result    *JobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newJob(clock clockwork.Clock) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Status:    StatusRunning,
		Logs:      []string{},
		CreatedAt: clock.Now(),
		clock:     clock,
	}
}

func (j *Job) stamp(msg string) string {
	return fmt.Sprintf("[%s] %s", j.clock.Now().Format("15:04:05"), msg)
}

func (j *Job) Log(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Logs = append(j.Logs, j.stamp(msg))
}

func (j *Job) SetProgress(current, total int, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if total > 0 {
		j.Progress = int(float64(current) / float64(total) * 100)
	}
	if msg != "" {
		j.Logs = append(j.Logs, j.stamp(msg))
	}
}

func (j *Job) fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusError
	j.Error = msg
	j.Logs = append(j.Logs, "[ERROR] "+msg)
}

func (j *Job) finish(res *JobResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusDone
	j.Result = res
	j.Progress = 100
	j.Logs = append(j.Logs, j.stamp("Batch completed."))
}

func (j *Job) Snapshot() View {
	j.mu.RLock()
	defer j.mu.RUnlock()

	v := View{
		ID:        j.ID,
		Status:    j.Status,
		Logs:      append([]string(nil), j.Logs...),
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
	}
	if j.Result != nil {
		r := *j.Result
		v.Result = &r
	}
	return v
}

// Store keeps jobs in memory for the lifetime of the process.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

func (s *Store) Add(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

func (s *Store) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m2ix4i/korrektor/pkg/annotate"
)

// JobState is the lifecycle of one uploaded document.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Job tracks one integration request through the service.
type Job struct {
	ID        string           `json:"id"`
	State     JobState         `json:"state"`
	CreatedAt time.Time        `json:"created_at"`
	Report    *annotate.Report `json:"report,omitempty"`
	Error     string           `json:"error,omitempty"`

	// Filesystem locations, never serialized to clients.
	workDir    string
	inputPath  string
	outputPath string
}

// jobStore is an in-memory job registry. Jobs are ephemeral: they live for
// the lifetime of the process only.
type jobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*Job)}
}

// create registers a new job and returns a snapshot of it. Only copies ever
// leave the store; the live record is mutated by the worker goroutine under
// the store mutex.
func (s *jobStore) create(workDir, inputPath, outputPath string) Job {
	job := &Job{
		ID:         uuid.NewString(),
		State:      JobQueued,
		CreatedAt:  time.Now().UTC(),
		workDir:    workDir,
		inputPath:  inputPath,
		outputPath: outputPath,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return *job
}

// get returns a copy of the job so callers never observe a half-updated
// record.
func (s *jobStore) get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (s *jobStore) setRunning(id string) {
	s.update(id, func(j *Job) { j.State = JobRunning })
}

func (s *jobStore) setDone(id string, report *annotate.Report) {
	s.update(id, func(j *Job) {
		j.State = JobDone
		j.Report = report
	})
}

func (s *jobStore) setFailed(id string, err error) {
	s.update(id, func(j *Job) {
		j.State = JobFailed
		j.Error = err.Error()
	})
}

func (s *jobStore) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

// Package task queues submitted action sequences and runs them one at a
// time in an isolated worker process, so a crashed or killed run never
// takes the service down with it.
package task

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openquad/go-dogctl/pkg/executor"
)

// Status is a task's lifecycle phase.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Task is the record returned to clients. Timestamps are epoch seconds;
// StartedAt stays nil for tasks cancelled before they ran.
type Task struct {
	ID         string           `json:"task_id"`
	Status     Status           `json:"status"`
	Payload    executor.Payload `json:"payload"`
	Result     *executor.Report `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  float64          `json:"created_at"`
	StartedAt  *float64         `json:"started_at,omitempty"`
	FinishedAt *float64         `json:"finished_at,omitempty"`
	WorkerExit *int             `json:"worker_exitcode,omitempty"`
}

// Store holds task records in memory. All accessors copy, so callers never
// see concurrent mutation.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewStore() *Store {
	return &Store{tasks: make(map[string]*Task)}
}

// Create registers a new queued task and returns its copy.
func (s *Store) Create(p executor.Payload) Task {
	t := &Task{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:    StatusQueued,
		Payload:   p,
		CreatedAt: nowEpoch(),
	}
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return copyTask(t)
}

// Get returns a copy of the task.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return copyTask(t), true
}

// Update applies fn to the task under the lock and returns the new copy.
func (s *Store) Update(id string, fn func(*Task)) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	fn(t)
	return copyTask(t), true
}

// CancelQueued flips every queued task to cancelled and returns their
// copies. Cancelled tasks keep a nil StartedAt.
func (s *Store) CancelQueued(reason string) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.Status != StatusQueued {
			continue
		}
		t.Status = StatusCancelled
		t.Error = reason
		now := nowEpoch()
		t.FinishedAt = &now
		out = append(out, copyTask(t))
	}
	return out
}

func copyTask(t *Task) Task {
	c := *t
	if t.Result != nil {
		r := *t.Result
		r.Results = append([]executor.Outcome(nil), t.Result.Results...)
		c.Result = &r
	}
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.FinishedAt != nil {
		v := *t.FinishedAt
		c.FinishedAt = &v
	}
	if t.WorkerExit != nil {
		v := *t.WorkerExit
		c.WorkerExit = &v
	}
	return c
}

func nowEpoch() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

package executor

import (
	"sync"
	"time"

	"github.com/openquad/go-dogctl/internal/log"
)

// RepeatTask invokes fn at a fixed cadence until a time limit elapses or
// Stop is called. It is the cancellable driver behind timed locomotion
// bursts: Start launches it, Stop preempts it, Join waits for it to end.
type RepeatTask struct {
	name     string
	interval time.Duration
	limit    time.Duration
	fn       func() error

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRepeatTask builds a task firing fn every interval for at most limit.
// A non-positive limit means no time bound.
func NewRepeatTask(name string, interval, limit time.Duration, fn func() error) *RepeatTask {
	return &RepeatTask{
		name:     name,
		interval: interval,
		limit:    limit,
		fn:       fn,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the task.
func (t *RepeatTask) Start() {
	go t.run()
}

// Stop preempts the task. Safe to call more than once.
func (t *RepeatTask) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Join blocks until the task has finished.
func (t *RepeatTask) Join() {
	<-t.done
}

func (t *RepeatTask) run() {
	defer close(t.done)

	var deadline <-chan time.Time
	if t.limit > 0 {
		timer := time.NewTimer(t.limit)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// First shot fires immediately, like every subsequent tick.
	if err := t.fn(); err != nil {
		log.Warn("repeat task stopped by error", "task", t.name, "err", err)
		return
	}
	for {
		select {
		case <-t.stop:
			return
		case <-deadline:
			log.Debug("repeat task reached its time limit", "task", t.name, "limit", t.limit)
			return
		case <-ticker.C:
			if err := t.fn(); err != nil {
				log.Warn("repeat task stopped by error", "task", t.name, "err", err)
				return
			}
		}
	}
}

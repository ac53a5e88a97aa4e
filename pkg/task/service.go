package task

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/openquad/go-dogctl/internal/log"
	"github.com/openquad/go-dogctl/pkg/executor"
	"github.com/openquad/go-dogctl/pkg/protocol"
	"github.com/openquad/go-dogctl/pkg/transport"
)

// Worker exit codes. Anything else means the worker died abnormally.
const (
	ExitOK       = 0 // every action succeeded
	ExitSequence = 1 // sequence ran but at least one action failed
	ExitSetup    = 2 // worker could not reach the robot at all
)

// Config wires a Service.
type Config struct {
	DogAddr     string   // robot command endpoint, host:port
	WorkerBin   string   // path of the worker executable
	WorkerArgs  []string // arguments placed before the payload flag
	WorkerEnv   []string // extra environment entries for the worker
	QueueSize   int      // pending task capacity
	LogLines    int      // retained worker log lines
	JournalPath string   // sqlite file, empty disables journaling
}

// Service owns the task queue. Exactly one worker process runs at a time;
// everything else waits its turn in submission order.
type Service struct {
	cfg     Config
	store   *Store
	logs    *LogBuffer
	journal *Journal
	queue   chan string
	logger  *slog.Logger

	mu      sync.Mutex
	current *os.Process
	sink    func(Line)

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New builds the service and starts its dispatch loop.
func New(cfg Config) (*Service, error) {
	if cfg.WorkerBin == "" {
		return nil, errors.New("worker binary not configured")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.LogLines <= 0 {
		cfg.LogLines = 1000
	}
	s := &Service{
		cfg:    cfg,
		store:  NewStore(),
		logs:   NewLogBuffer(cfg.LogLines),
		queue:  make(chan string, cfg.QueueSize),
		logger: log.With("component", "task"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if cfg.JournalPath != "" {
		j, err := OpenJournal(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		s.journal = j
	}
	go s.dispatchLoop()
	return s, nil
}

// Close stops the dispatch loop, waits for a running worker to be reaped
// and closes the journal.
func (s *Service) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.killCurrent()
	<-s.done
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

// SetLogSink registers a callback invoked for every captured worker log
// line, on the capture goroutine.
func (s *Service) SetLogSink(fn func(Line)) {
	s.mu.Lock()
	s.sink = fn
	s.mu.Unlock()
}

// Submit validates and enqueues a payload, returning the new task id.
func (s *Service) Submit(p executor.Payload) (string, error) {
	if len(p.Actions) == 0 {
		return "", errors.New("payload contains no actions")
	}
	t := s.store.Create(p)
	select {
	case s.queue <- t.ID:
	default:
		s.store.Update(t.ID, func(t *Task) {
			t.Status = StatusFailed
			t.Error = "queue full"
		})
		return "", fmt.Errorf("queue full (%d pending)", cap(s.queue))
	}
	s.record(t)
	s.logger.Info("task queued", "task", t.ID, "actions", len(p.Actions))
	return t.ID, nil
}

// Task returns the record for id, falling back to the journal for tasks
// from earlier runs of the service.
func (s *Service) Task(id string) (Task, bool) {
	if t, ok := s.store.Get(id); ok {
		return t, true
	}
	if s.journal != nil {
		t, ok, err := s.journal.Get(id)
		if err != nil {
			s.logger.Warn("journal lookup failed", "task", id, "err", err)
			return Task{}, false
		}
		return t, ok
	}
	return Task{}, false
}

// Logs returns retained worker log lines with sequence >= since, plus the
// next sequence to poll with.
func (s *Service) Logs(since uint64) ([]Line, uint64) {
	return s.logs.Since(since)
}

// EmergencyStop cancels every queued task, kills the running worker and
// fires the halt opcode straight from this process.
func (s *Service) EmergencyStop() error {
	s.logger.Warn("emergency stop requested")

	cancelled := s.store.CancelQueued("cancelled by emergency stop")
	for _, t := range cancelled {
		s.record(t)
	}
	// Drain ids already sitting in the channel; their records are
	// cancelled so the dispatch loop would skip them anyway.
	for drained := false; !drained; {
		select {
		case <-s.queue:
		default:
			drained = true
		}
	}

	s.killCurrent()

	if err := transport.SendOnce(s.cfg.DogAddr, protocol.Command{Code: protocol.OpEmergencyStop}); err != nil {
		return fmt.Errorf("send emergency stop: %w", err)
	}
	s.logger.Warn("emergency stop sent", "cancelled", len(cancelled))
	return nil
}

func (s *Service) killCurrent() {
	s.mu.Lock()
	proc := s.current
	s.mu.Unlock()
	if proc != nil {
		s.logger.Warn("killing running worker", "pid", proc.Pid)
		if err := proc.Kill(); err != nil {
			s.logger.Warn("worker kill failed", "err", err)
		}
	}
}

func (s *Service) dispatchLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case id := <-s.queue:
			t, ok := s.store.Get(id)
			if !ok || t.Status != StatusQueued {
				continue
			}
			s.runWorker(id)
		}
	}
}

// runWorker executes one task in a child process. The child's stdout is
// the result document; its stderr lines go to the log buffer.
func (s *Service) runWorker(id string) {
	t, ok := s.store.Update(id, func(t *Task) {
		t.Status = StatusRunning
		now := nowEpoch()
		t.StartedAt = &now
	})
	if !ok {
		return
	}
	s.record(t)
	s.logger.Info("task started", "task", id)

	payload, err := json.Marshal(t.Payload)
	if err != nil {
		s.finish(id, func(t *Task) {
			t.Status = StatusFailed
			t.Error = "encode payload: " + err.Error()
		})
		return
	}

	args := append(append([]string(nil), s.cfg.WorkerArgs...), "--json", string(payload))
	cmd := exec.Command(s.cfg.WorkerBin, args...)
	cmd.Env = append(os.Environ(), s.cfg.WorkerEnv...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.finish(id, func(t *Task) {
			t.Status = StatusFailed
			t.Error = "worker stderr pipe: " + err.Error()
		})
		return
	}

	if err := cmd.Start(); err != nil {
		s.finish(id, func(t *Task) {
			t.Status = StatusFailed
			t.Error = "start worker: " + err.Error()
		})
		return
	}
	s.mu.Lock()
	s.current = cmd.Process
	s.mu.Unlock()

	// Drain stderr fully before Wait so no log line is lost.
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.appendLog(scanner.Text())
	}

	err = cmd.Wait()
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	exit := cmd.ProcessState.ExitCode()
	var report executor.Report
	parsed := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &report) == nil && len(stdout.Bytes()) > 0

	s.finish(id, func(t *Task) {
		t.WorkerExit = &exit
		switch {
		case parsed && report.OK:
			t.Status = StatusDone
			t.Result = &report
		case parsed:
			t.Status = StatusFailed
			t.Result = &report
			t.Error = report.Error
			if t.Error == "" {
				t.Error = "sequence failed"
			}
		case err != nil:
			t.Status = StatusFailed
			t.Error = fmt.Sprintf("worker terminated without a result (exit %d)", exit)
		default:
			t.Status = StatusFailed
			t.Error = "worker produced no result"
		}
	})
}

func (s *Service) finish(id string, fn func(*Task)) {
	t, ok := s.store.Update(id, func(t *Task) {
		fn(t)
		now := nowEpoch()
		t.FinishedAt = &now
	})
	if !ok {
		return
	}
	s.record(t)
	s.logger.Info("task finished", "task", id, "status", t.Status, "err", t.Error)
}

func (s *Service) appendLog(text string) {
	line := s.logs.Append(text)
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink(line)
	}
}

func (s *Service) record(t Task) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(t); err != nil {
		s.logger.Warn("journal write failed", "task", t.ID, "err", err)
	}
}

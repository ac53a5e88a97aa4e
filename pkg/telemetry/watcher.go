// Package telemetry keeps the latest known robot state. A background
// goroutine receives and decodes telemetry datagrams and atomically
// replaces a published state cell; consumers read snapshots or block on
// a predicate with WaitUntil.
package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/openquad/go-dogctl/internal/log"
	"github.com/openquad/go-dogctl/pkg/protocol"
	"github.com/openquad/go-dogctl/pkg/transport"
)

// Receiver delivers raw telemetry datagrams. *transport.Conn implements it.
type Receiver interface {
	Recv(buf []byte) (int, error)
}

// DefaultPoll is the WaitUntil poll interval when the caller passes zero.
const DefaultPoll = 50 * time.Millisecond

// errorBackoff paces the loop after a receive error so a wedged socket
// cannot spin the CPU.
const errorBackoff = 500 * time.Millisecond

// Watcher is the telemetry loop plus its published state cell.
//
// The receive loop ends when the underlying socket is closed; Stop only
// marks intent, so owners close the transport first and then Stop.
type Watcher struct {
	recv Receiver

	mu     sync.RWMutex
	latest protocol.StateVector
	has    bool
	front  float64
	rear   float64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher creates a watcher over recv. Call Start to begin receiving.
func NewWatcher(recv Receiver) *Watcher {
	return &Watcher{
		recv: recv,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the receive loop.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop asks the loop to exit and waits for it. The owner must close the
// transport first so a blocked Recv returns.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)

	buf := make([]byte, 1024)
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		n, err := w.recv.Recv(buf)
		if err != nil {
			if transport.IsClosed(err) {
				log.Debug("telemetry socket closed, watcher exiting")
				return
			}
			log.Error("telemetry receive failed", "err", err)
			select {
			case <-w.stop:
				return
			case <-time.After(errorBackoff):
			}
			continue
		}

		frame, err := protocol.Decode(buf[:n])
		if err != nil {
			if !errors.Is(err, protocol.ErrFrameLength) {
				// Malformed frame of a known size: skip, never fatal.
				log.Debug("telemetry frame skipped", "err", err)
			}
			continue
		}

		if f, ok := frame.(*protocol.StateFrame); ok && f.Basic != 0 {
			w.publish(f)
		}
	}
}

func (w *Watcher) publish(f *protocol.StateFrame) {
	w.mu.Lock()
	w.latest = f.Vector()
	w.has = true
	w.front = f.FrontDistance
	w.rear = f.RearDistance
	w.mu.Unlock()
}

// Latest returns a snapshot of the most recent state vector, and false if
// none has been observed yet.
func (w *Watcher) Latest() (protocol.StateVector, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest, w.has
}

// Distances returns the last observed front and rear ranger readings in
// meters. Zero until a state frame has been seen.
func (w *Watcher) Distances() (front, rear float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.front, w.rear
}

// WaitUntil polls Latest every poll until pred holds or timeout elapses.
// It never blocks past the timeout bound.
func (w *Watcher) WaitUntil(pred func(protocol.StateVector) bool, timeout, poll time.Duration) bool {
	if poll <= 0 {
		poll = DefaultPoll
	}
	deadline := time.Now().Add(timeout)
	for {
		if v, ok := w.Latest(); ok && pred(v) {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		if remaining < poll {
			time.Sleep(remaining)
		} else {
			time.Sleep(poll)
		}
	}
}

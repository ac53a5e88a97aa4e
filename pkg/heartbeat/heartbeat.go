// Package heartbeat keeps the robot's command channel alive. The motion
// host drops into a safe state when it stops hearing the keep-alive, so
// the driver runs for the whole life of a worker.
package heartbeat

import (
	"sync"
	"time"

	"github.com/openquad/go-dogctl/internal/log"
	"github.com/openquad/go-dogctl/pkg/protocol"
	"github.com/openquad/go-dogctl/pkg/transport"
)

// Interval is the keep-alive period the motion host expects.
const Interval = 250 * time.Millisecond

// Sender issues command frames. *transport.Conn implements it.
type Sender interface {
	Send(cmd protocol.Command) error
}

// Driver sends the keep-alive frame at a fixed period. A failed send stops
// the driver; it never crashes its host.
type Driver struct {
	send     Sender
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a driver at the standard interval.
func New(send Sender) *Driver {
	return NewWithInterval(send, Interval)
}

// NewWithInterval creates a driver with a custom period (tests).
func NewWithInterval(send Sender, interval time.Duration) *Driver {
	return &Driver{
		send:     send,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the heartbeat loop.
func (d *Driver) Start() {
	go d.loop()
}

// Stop halts the loop and waits for it to exit.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
}

func (d *Driver) loop() {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	if !d.beat() {
		return
	}
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			if !d.beat() {
				return
			}
		}
	}
}

func (d *Driver) beat() bool {
	err := d.send.Send(protocol.Command{Code: protocol.OpHeartbeat})
	if err == nil {
		return true
	}
	if transport.IsClosed(err) {
		log.Warn("heartbeat send failed, socket closed; stopping heartbeat")
	} else {
		log.Warn("heartbeat send failed; stopping heartbeat", "err", err)
	}
	return false
}

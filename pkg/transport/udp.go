// Package transport owns the UDP sockets between this process and the
// robot's motion host: an unbound send socket addressed at the host's
// command endpoint and a receive socket bound locally for telemetry.
package transport

import (
	"errors"
	"fmt"
	"net"

	"github.com/openquad/go-dogctl/internal/log"
	"github.com/openquad/go-dogctl/pkg/protocol"
)

// Conn is a command/telemetry socket pair. It is owned by exactly one
// worker for its lifetime; Close unblocks a pending Recv.
type Conn struct {
	send   *net.UDPConn
	recv   *net.UDPConn
	target *net.UDPAddr
}

// Dial opens the socket pair. The receive socket binds the first address
// in bindIPs that accepts the telemetry port; the send socket is
// unbound and writes to dogAddr (host:port).
func Dial(dogAddr string, bindIPs []string, bindPort int) (*Conn, error) {
	target, err := net.ResolveUDPAddr("udp", dogAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dogAddr, err)
	}

	send, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("open send socket: %w", err)
	}

	recv, err := bindRecv(bindIPs, bindPort)
	if err != nil {
		send.Close()
		return nil, err
	}

	return &Conn{send: send, recv: recv, target: target}, nil
}

func bindRecv(bindIPs []string, port int) (*net.UDPConn, error) {
	var lastErr error
	for _, ip := range bindIPs {
		c, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(ip), Port: port})
		if err == nil {
			log.Info("telemetry socket bound", "addr", c.LocalAddr().String())
			return c, nil
		}
		log.Warn("telemetry bind failed, trying next", "ip", ip, "port", port, "err", err)
		lastErr = err
	}
	return nil, fmt.Errorf("bind telemetry socket on %v:%d: %w", bindIPs, port, lastErr)
}

// Send writes one command frame to the motion host.
func (c *Conn) Send(cmd protocol.Command) error {
	_, err := c.send.WriteToUDP(cmd.Marshal(), c.target)
	return err
}

// Recv blocks for the next telemetry datagram.
func (c *Conn) Recv(buf []byte) (int, error) {
	n, _, err := c.recv.ReadFromUDP(buf)
	return n, err
}

// LocalAddr returns the telemetry socket's bound address.
func (c *Conn) LocalAddr() net.Addr {
	return c.recv.LocalAddr()
}

// Close tears down both sockets.
func (c *Conn) Close() error {
	serr := c.send.Close()
	rerr := c.recv.Close()
	if serr != nil {
		return serr
	}
	return rerr
}

// IsClosed reports whether err came from operating on a closed socket.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// SendOnce fires a single command frame from a throwaway socket. The task
// service uses it to issue the emergency stop directly from the parent
// process, bypassing any stuck worker.
func SendOnce(dogAddr string, cmd protocol.Command) error {
	conn, err := net.Dial("udp", dogAddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", dogAddr, err)
	}
	defer conn.Close()
	_, err = conn.Write(cmd.Marshal())
	return err
}

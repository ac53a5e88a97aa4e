// Package protocol implements the binary UDP framing spoken by the
// quadruped's motion host: fixed 12-byte command frames out, fixed-size
// joint-state and robot-state telemetry frames in. The package is pure
// encode/decode; it owns no sockets and no state.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// CommandFrameSize is the wire size of every outbound command.
const CommandFrameSize = 12

// Command is a single outbound instruction. The motion host reads three
// little-endian 32-bit fields in order: code, param, kind.
type Command struct {
	Code  uint32
	Param int32
	Kind  uint32
}

// Marshal encodes the command into its 12-byte wire form.
func (c Command) Marshal() []byte {
	buf := make([]byte, CommandFrameSize)
	binary.LittleEndian.PutUint32(buf[0:4], c.Code)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c.Param))
	binary.LittleEndian.PutUint32(buf[8:12], c.Kind)
	return buf
}

// ParseCommand decodes a 12-byte command frame.
func ParseCommand(buf []byte) (Command, error) {
	if len(buf) != CommandFrameSize {
		return Command{}, fmt.Errorf("protocol: command frame is %d bytes, want %d", len(buf), CommandFrameSize)
	}
	return Command{
		Code:  binary.LittleEndian.Uint32(buf[0:4]),
		Param: int32(binary.LittleEndian.Uint32(buf[4:8])),
		Kind:  binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

func (c Command) String() string {
	return fmt.Sprintf("cmd{code=%#08x param=%d kind=%d}", c.Code, c.Param, c.Kind)
}

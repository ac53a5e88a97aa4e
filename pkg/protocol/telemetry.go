package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Telemetry frame sizes. Frames are discriminated by wire size alone;
// datagrams of any other length are not telemetry and are ignored.
const (
	JointFrameSize = 108
	StateFrameSize = 212
)

// Telemetry opcodes.
const (
	CodeRobotState uint32 = 2305
	CodeJointAngle uint32 = 2306
	CodeJointSpeed uint32 = 2307
)

// ErrFrameLength marks a datagram whose length matches no telemetry frame.
// Callers drop such datagrams silently.
var ErrFrameLength = errors.New("protocol: unrecognized frame length")

// DecodeError marks a length-matched frame whose content is malformed.
// Callers log and skip the frame; it is never fatal.
type DecodeError struct {
	Size int
	Code uint32
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: %d-byte frame with unknown opcode %d", e.Size, e.Code)
}

// JointFrame carries per-joint angles (CodeJointAngle) or speeds
// (CodeJointSpeed). Decoded for completeness; sequencing never consults it.
type JointFrame struct {
	Code   uint32
	Values [12]float64
}

// StateFrame is the robot-state snapshot the executor reasons over.
// Offsets follow the vendor layout: header (code, length, kind), basic and
// gait state right after, motion state as a signed field at byte 176, and
// the two ranger distances in the final 16 bytes.
type StateFrame struct {
	Code   uint32
	Length uint32
	Kind   uint32

	Basic  uint32
	Gait   uint32
	Motion int32

	FrontDistance float64
	RearDistance  float64
}

// Vector returns the (basic, gait, motion) triple of the frame.
func (f StateFrame) Vector() StateVector {
	return StateVector{Basic: f.Basic, Gait: f.Gait, Motion: f.Motion}
}

// Decode parses a received datagram. It returns *JointFrame or *StateFrame,
// ErrFrameLength for sizes that are not telemetry, or *DecodeError for a
// length-matched frame carrying an unknown opcode.
func Decode(buf []byte) (any, error) {
	switch len(buf) {
	case JointFrameSize:
		return decodeJoint(buf)
	case StateFrameSize:
		return decodeState(buf)
	default:
		return nil, ErrFrameLength
	}
}

func decodeJoint(buf []byte) (*JointFrame, error) {
	f := &JointFrame{Code: binary.LittleEndian.Uint32(buf[0:4])}
	if f.Code != CodeJointAngle && f.Code != CodeJointSpeed {
		return nil, &DecodeError{Size: JointFrameSize, Code: f.Code}
	}
	for i := range f.Values {
		off := 12 + i*8
		f.Values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off : off+8]))
	}
	return f, nil
}

func decodeState(buf []byte) (*StateFrame, error) {
	f := &StateFrame{
		Code:   binary.LittleEndian.Uint32(buf[0:4]),
		Length: binary.LittleEndian.Uint32(buf[4:8]),
		Kind:   binary.LittleEndian.Uint32(buf[8:12]),
	}
	if f.Code != CodeRobotState {
		return nil, &DecodeError{Size: StateFrameSize, Code: f.Code}
	}
	f.Basic = binary.LittleEndian.Uint32(buf[12:16])
	f.Gait = binary.LittleEndian.Uint32(buf[16:20])
	f.Motion = int32(binary.LittleEndian.Uint32(buf[176:180]))
	n := len(buf)
	f.FrontDistance = math.Float64frombits(binary.LittleEndian.Uint64(buf[n-16 : n-8]))
	f.RearDistance = math.Float64frombits(binary.LittleEndian.Uint64(buf[n-8:]))
	return f, nil
}

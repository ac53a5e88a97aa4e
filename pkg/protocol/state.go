package protocol

import "fmt"

// Posture is the coarse classification of the robot's basic state.
type Posture int

const (
	PostureUnknown Posture = iota
	PostureStanding
	PostureLying
)

func (p Posture) String() string {
	switch p {
	case PostureStanding:
		return "standing"
	case PostureLying:
		return "lying"
	default:
		return "unknown"
	}
}

// StateVector is the (basic, gait, motion) triple sequencing decisions are
// made from. Motion 0 means the last commanded motion has settled.
type StateVector struct {
	Basic  uint32
	Gait   uint32
	Motion int32
}

// Posture classifies the vector from basic_state alone; gait and motion
// refine but never override the classification.
//
// 20 is observed while the greet trick runs, 25 and 5 while it winds down;
// the robot is on its feet in all three, so they count as standing. That
// mapping was measured against the tricks in the execution-state table and
// should not be assumed to generalize further.
func (v StateVector) Posture() Posture {
	switch v.Basic {
	case 6, 20, 25, 5:
		return PostureStanding
	case 1:
		return PostureLying
	default:
		return PostureUnknown
	}
}

// Settled reports whether the last commanded motion has come to rest.
func (v StateVector) Settled() bool {
	return v.Motion == 0
}

// Equal reports field-wise equality.
func (v StateVector) Equal(o StateVector) bool {
	return v.Basic == o.Basic && v.Gait == o.Gait && v.Motion == o.Motion
}

// StandingRest is the exact at-rest standing vector some tricks require
// before they may start.
var StandingRest = StateVector{Basic: 6, Gait: 0, Motion: 0}

func (v StateVector) String() string {
	return fmt.Sprintf("[%d %d %d]", v.Basic, v.Gait, v.Motion)
}

package executor

import (
	"time"

	"github.com/openquad/go-dogctl/pkg/protocol"
)

// Semantic tags carried by actions. The move_* tags select move-mode
// velocity commands, the posture_* tags select in-place posture trims;
// both families share the axis opcodes.
const (
	SemMoveX        = "move_x"
	SemMoveY        = "move_y"
	SemMoveYaw      = "move_yaw"
	SemPosturePitch = "posture_pitch"
	SemPostureRoll  = "posture_roll"
	SemPostureYaw   = "posture_yaw"
)

// moveCode and postureCode resolve a semantic tag to the axis opcode it is
// valid for.
var moveCode = map[string]uint32{
	SemMoveX:   protocol.OpAxisPitch,
	SemMoveY:   protocol.OpAxisRoll,
	SemMoveYaw: protocol.OpAxisYaw,
}

var postureCode = map[string]uint32{
	SemPosturePitch: protocol.OpAxisPitch,
	SemPostureRoll:  protocol.OpAxisRoll,
	SemPostureYaw:   protocol.OpAxisYaw,
}

// prerequisitePosture maps trick opcodes to the posture that must be
// reached before the opcode is safe to issue.
var prerequisitePosture = map[uint32]protocol.Posture{
	protocol.OpBackflip:    protocol.PostureLying,
	protocol.OpJumpForward: protocol.PostureLying,
	protocol.OpRollOver:    protocol.PostureLying,
	protocol.OpGreet:       protocol.PostureStanding,
	protocol.OpTwistBody:   protocol.PostureStanding,
	protocol.OpMoonwalk:    protocol.PostureStanding,
	protocol.OpTwistJump:   protocol.PostureStanding,
}

// executionState maps trick opcodes to the telemetry vector observed while
// the trick is actively running. Tricks that end lying report their
// completed state [1 0 0] here.
var executionState = map[uint32]protocol.StateVector{
	protocol.OpTwistBody:   {Basic: 6, Gait: 0, Motion: 2},
	protocol.OpTwistJump:   {Basic: 6, Gait: 0, Motion: 4},
	protocol.OpMoonwalk:    {Basic: 6, Gait: 12, Motion: 1},
	protocol.OpGreet:       {Basic: 20, Gait: 0, Motion: 0},
	protocol.OpBackflip:    {Basic: 1, Gait: 0, Motion: 0},
	protocol.OpJumpForward: {Basic: 1, Gait: 0, Motion: 0},
	protocol.OpRollOver:    {Basic: 1, Gait: 0, Motion: 0},
}

// greetExecution is the greet trick's execution vector; leaving it starts a
// transitional phase (basic 25 or 5) that must settle back to [6 0 0].
var greetExecution = protocol.StateVector{Basic: 20}

// specialHandling adds a fixed dwell and a finisher command after a
// trick's execution state is confirmed.
type specialHandling struct {
	DwellAfterState time.Duration
	PostAction      uint32
}

// specialHandlers currently covers only the moonwalk, whose long run needs
// a dwell and a stand command to wind down.
var specialHandlers = map[uint32]specialHandling{
	protocol.OpMoonwalk: {DwellAfterState: 4 * time.Second, PostAction: protocol.OpStandToggle},
}

func isMoveSemantic(sem string) bool {
	_, ok := moveCode[sem]
	return ok
}

func hasMove(actions []Action) bool {
	for _, a := range actions {
		if isMoveSemantic(a.Semantic) {
			return true
		}
	}
	return false
}

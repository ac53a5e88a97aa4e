package protocol

// Opcodes understood by the motion host. Values come from the vendor
// command sheet; params are zero unless noted.
const (
	// OpStandToggle alternates between lying and the initial standing
	// posture.
	OpStandToggle uint32 = 0x21010202
	// OpZeroJoints re-initializes the robot's joints.
	OpZeroJoints uint32 = 0x21010C05
	// OpEmergencyStop is the soft emergency stop.
	OpEmergencyStop uint32 = 0x21020C0E

	// Flat-ground gait selection.
	OpSlowWalk   uint32 = 0x21010300
	OpMediumWalk uint32 = 0x21010307
	OpFastWalk   uint32 = 0x21010303

	// Obstacle gaits.
	OpCrawlToggle  uint32 = 0x21010406 // normal <-> crawl
	OpGripWalk     uint32 = 0x21010402
	OpObstacleWalk uint32 = 0x21010401
	OpHighStepWalk uint32 = 0x21010407

	// Tricks.
	OpTwistBody   uint32 = 0x21010204 // requires standing
	OpRollOver    uint32 = 0x21010205 // requires lying
	OpMoonwalk    uint32 = 0x2101030C // requires standing
	OpBackflip    uint32 = 0x21010502 // requires lying
	OpGreet       uint32 = 0x21010507 // requires standing
	OpJumpForward uint32 = 0x2101050B // requires lying
	OpTwistJump   uint32 = 0x2101020D // requires standing

	// Control modes.
	OpInPlaceMode uint32 = 0x21010D05
	OpMoveMode    uint32 = 0x21010D06
	OpManualMode  uint32 = 0x21010C02
	OpAutoMode    uint32 = 0x21010C03

	// Axis opcodes. The same codes mean posture adjustment in in-place
	// mode and velocity in move mode; the action's semantic tag
	// disambiguates them.
	OpAxisPitch uint32 = 0x21010130 // pitch [-6553,6553] / x velocity
	OpAxisRoll  uint32 = 0x21010131 // roll [-12553,12553] / y velocity
	OpAxisYaw   uint32 = 0x21010135 // yaw [-9553,9553] / angular velocity

	// OpBodyHeight adjusts body height, param [-20000,20000].
	OpBodyHeight uint32 = 0x21010102

	// OpRadar reads the ultrasonic rangers (effective 0.28m..4.50m).
	OpRadar uint32 = 0x21012109

	// OpHeartbeat is the keep-alive the host expects every 250ms.
	OpHeartbeat uint32 = 0x21040001
)

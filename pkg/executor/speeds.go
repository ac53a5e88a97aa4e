package executor

import (
	"fmt"
	"math"
	"time"
)

// Locomotion calibration. The gear tables and duration fits below were
// measured on the physical robot on flat ground; they map a requested
// distance or angle plus a speed gear to the commanded velocity magnitude
// and the time the command must be repeated. Treat them as data: they are
// not derived here.

// straightGear maps speed gear to the x-axis velocity magnitude.
var straightGear = map[int]int32{
	1: 7000,
	2: 7500,
	3: 8000,
	4: 8700,
	5: 9000,
	6: 10500,
}

// translateGear maps speed gear to the y-axis velocity magnitude.
var translateGear = map[int]int32{
	1: 14000,
	2: 18000,
	3: 21000,
	4: 24000,
	5: 27000,
	6: 34000,
}

// rotationDwell maps a target angle in degrees to the measured repeat
// duration in seconds at the fixed yaw magnitude. Lookups take the
// nearest key.
var rotationDwell = []struct {
	Angle   float64
	Seconds float64
}{
	{0, 0}, {15, 0.1}, {30, 0.2}, {45, 0.53}, {60, 0.6}, {75, 0.9},
	{90, 1.3}, {105, 1.5}, {120, 1.9}, {135, 2.2}, {150, 2.3}, {165, 2.5},
	{167, 2.8}, {185, 2.9}, {195, 3.1}, {210, 3.4}, {225, 3.7}, {240, 4},
	{255, 4.3}, {270, 4.5}, {285, 4.7}, {300, 5}, {315, 5.3}, {330, 5.6},
	{345, 5.8}, {360, 5.9},
}

// yawMagnitude is the fixed angular velocity value for rotations.
const yawMagnitude int32 = 10000

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// GoStraight maps a forward (positive) or backward distance in meters to
// the repeat duration and the signed x velocity for the given gear.
func GoStraight(meters float64, gear int) (time.Duration, int32, error) {
	val, ok := straightGear[gear]
	if !ok {
		return 0, 0, fmt.Errorf("unknown speed gear %d", gear)
	}
	if meters < 0 {
		val = -val
		v := float64(val)
		speed := -1.5059e-08*v*v - 4.1944e-04*v - 2.1804
		return seconds(math.Abs(meters / speed)), val, nil
	}
	v := float64(val)
	speed := -7.237e-09*v*v + 0.0002933*v - 1.643
	return seconds(meters / speed), val, nil
}

// Translate maps a rightward (positive) or leftward distance in meters to
// the repeat duration and the signed y velocity for the given gear.
func Translate(meters float64, gear int) (time.Duration, int32, error) {
	val, ok := translateGear[gear]
	if !ok {
		return 0, 0, fmt.Errorf("unknown speed gear %d", gear)
	}
	if meters < 0 {
		val = -val
		speed := -1.6e-05*float64(val) - 0.2256
		return seconds(math.Abs(meters / speed)), val, nil
	}
	speed := 1.517e-05*float64(val) - 0.1748
	return seconds(meters / speed), val, nil
}

// Revolve maps a rotation angle in degrees (positive turns right) to the
// repeat duration and the signed yaw velocity. Angles beyond a full turn
// wrap.
func Revolve(angleDeg float64) (time.Duration, int32) {
	a := math.Abs(angleDeg)
	if a > 360 {
		a = math.Mod(a, 360)
	}

	best := rotationDwell[0]
	for _, e := range rotationDwell[1:] {
		if math.Abs(e.Angle-a) < math.Abs(best.Angle-a) {
			best = e
		}
	}

	val := yawMagnitude
	if angleDeg < 0 {
		val = -val
	}
	return seconds(best.Seconds), val
}

package executor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openquad/go-dogctl/pkg/protocol"
)

// robotSim stands in for the robot: it records every command frame and
// lets each test describe how telemetry reacts to commands.
type robotSim struct {
	mu      sync.Mutex
	sent    []protocol.Command
	state   protocol.StateVector
	has     bool
	sendErr map[uint32]error
	react   func(s *robotSim, c protocol.Command)
}

func newRobotSim(initial protocol.StateVector) *robotSim {
	return &robotSim{state: initial, has: true, sendErr: map[uint32]error{}}
}

func (s *robotSim) Send(c protocol.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	if err := s.sendErr[c.Code]; err != nil {
		return err
	}
	if s.react != nil {
		s.react(s, c)
	}
	return nil
}

func (s *robotSim) setState(v protocol.StateVector) {
	s.state = v
	s.has = true
}

func (s *robotSim) Latest() (protocol.StateVector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.has
}

func (s *robotSim) WaitUntil(pred func(protocol.StateVector) bool, timeout, poll time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		v, ok := s.state, s.has
		s.mu.Unlock()
		if ok && pred(v) {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(poll)
	}
}

// codes returns the opcodes sent, in order.
func (s *robotSim) codes() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint32, len(s.sent))
	for i, c := range s.sent {
		out[i] = c.Code
	}
	return out
}

func indexOf(codes []uint32, code uint32) int {
	for i, c := range codes {
		if c == code {
			return i
		}
	}
	return -1
}

// toggleReact flips the posture on the stand toggle and zeroes motion on
// the zero command, the minimum a posture-correcting test needs.
func toggleReact(s *robotSim, c protocol.Command) {
	switch c.Code {
	case protocol.OpStandToggle:
		if s.state.Basic == 1 {
			s.setState(protocol.StateVector{Basic: 6})
		} else {
			s.setState(protocol.StateVector{Basic: 1})
		}
	case protocol.OpZeroJoints:
		s.setState(protocol.StateVector{Basic: 6})
	}
}

// fastTimings compresses every delay so a full sequence runs in
// milliseconds.
func fastTimings() Timings {
	t := DefaultTimings()
	fast := 2 * time.Millisecond
	t.InitModeDelay = fast
	t.InitRefreshTimeout = fast
	t.RefreshTimeout = fast
	t.PostActionRefreshTimeout = fast
	t.SettleTimeout = fast
	t.SettleGrace = fast
	t.MatchedSettle = fast
	t.PostToggleSettle = fast
	t.RetrySettle = fast
	t.PrepSettle = fast
	t.LyingSettleTimeout = fast
	t.FinalSettleTimeout = fast
	t.LeaveSettleTimeout = fast
	t.EnsureTimeout = 20 * time.Millisecond
	t.PrepareEnsureTimeout = 20 * time.Millisecond
	t.FinalLieTimeout = 20 * time.Millisecond
	t.TransitionalStableTimeout = fast
	t.ToggleDelay = fast
	t.ZeroRecoverDelay = fast
	t.ToggleRecoverDelay = fast
	t.ModeSwitchDelay = fast
	t.MoveModeDelay = fast
	t.FirstMoveModeDelay = fast
	t.RepeatInterval = time.Millisecond
	t.StopBurstInterval = time.Millisecond
	t.StopBurstDuration = 5 * time.Millisecond
	t.FinalStopBurstDuration = 5 * time.Millisecond
	t.StopCooldown = fast
	t.PostureSettleDelay = fast
	t.ExecStateTimeout = 20 * time.Millisecond
	t.CompletionTimeout = 20 * time.Millisecond
	t.CompletionLead = time.Millisecond
	t.CompletionPoll = time.Millisecond
	t.GreetStableTimeout = fast
	t.MoonwalkEnterTimeout = 20 * time.Millisecond
	t.MoonwalkDwell = fast
	t.InterActionDelay = fast
	t.OtherActionDelay = fast
	t.WaitPoll = time.Millisecond
	return t
}

func newTestExecutor(sim *robotSim) *Executor {
	return New(sim, sim, WithTimings(fastTimings()))
}

func TestRunEmptyPayload(t *testing.T) {
	e := newTestExecutor(newRobotSim(protocol.StandingRest))
	if _, err := e.Run(Payload{}); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestRunCorrectsPostureBeforeLyingTrick(t *testing.T) {
	sim := newRobotSim(protocol.StandingRest)
	sim.react = toggleReact
	e := newTestExecutor(sim)

	results, err := e.Run(Payload{Actions: []Action{{Code: "0x21010502"}}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("results = %+v, want one ok outcome", results)
	}

	codes := sim.codes()
	toggle := indexOf(codes, protocol.OpStandToggle)
	trick := indexOf(codes, protocol.OpBackflip)
	if toggle == -1 || trick == -1 {
		t.Fatalf("sent = %#x, want stand toggle and backflip", codes)
	}
	if toggle > trick {
		t.Errorf("stand toggle at %d after backflip at %d; posture must be corrected first", toggle, trick)
	}
}

func TestRunEmergencyStopTruncates(t *testing.T) {
	sim := newRobotSim(protocol.StandingRest)
	sim.react = toggleReact
	e := newTestExecutor(sim)

	results, err := e.Run(Payload{Actions: []Action{
		{Code: "0x21010202"},
		{Code: "0x21020C0E"},
		{Code: "0x21010507"},
	}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (nothing after the stop)", len(results))
	}
	if !results[1].OK {
		t.Error("emergency stop outcome should be ok")
	}
	if indexOf(sim.codes(), protocol.OpGreet) != -1 {
		t.Error("greet was sent after the emergency stop")
	}
}

func TestRunMoveBurstAndStop(t *testing.T) {
	sim := newRobotSim(protocol.StandingRest)
	sim.react = toggleReact
	e := newTestExecutor(sim)

	results, err := e.Run(Payload{Actions: []Action{
		{Code: "0x21010130", Param: 0.02, Semantic: SemMoveX},
	}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("results = %+v, want one ok outcome", results)
	}

	var burst, stop int
	sim.mu.Lock()
	for _, c := range sim.sent {
		if c.Code == protocol.OpAxisPitch && c.Param == 8000 {
			burst++
		}
		if c.Code == protocol.OpAxisYaw && c.Param == 0 {
			stop++
		}
	}
	sim.mu.Unlock()
	if burst == 0 {
		t.Error("no velocity frames with the gear magnitude were sent")
	}
	if stop == 0 {
		t.Error("no stop frames were sent")
	}
	if indexOf(sim.codes(), protocol.OpMoveMode) == -1 {
		t.Error("move mode was never entered")
	}
}

func TestRunZeroDistanceMoveEndsImmediately(t *testing.T) {
	sim := newRobotSim(protocol.StandingRest)
	sim.react = toggleReact
	e := newTestExecutor(sim)

	var results []Outcome
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		results, err = e.Run(Payload{Actions: []Action{
			{Code: "0x21010135", Param: 0, Semantic: SemMoveYaw},
		}})
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("executor never returned for a zero-distance move")
	}

	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("results = %+v, want one ok outcome", results)
	}

	// Only zeroing stop frames may go out on the yaw axis.
	sim.mu.Lock()
	for _, c := range sim.sent {
		if c.Code == protocol.OpAxisYaw && c.Param != 0 {
			t.Errorf("velocity frame sent for a zero rotation: %v", c)
		}
	}
	sim.mu.Unlock()
}

func TestRunInvalidCodeFailsOutcome(t *testing.T) {
	sim := newRobotSim(protocol.StateVector{Basic: 1})
	sim.react = toggleReact
	e := newTestExecutor(sim)

	results, err := e.Run(Payload{Actions: []Action{
		{Code: "not-hex"},
		{Code: "0x21010202"},
	}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (sequence stops at the bad code)", len(results))
	}
	if results[0].OK {
		t.Error("outcome for an unparsable code should not be ok")
	}
}

func TestRunActionFailureStopsAndHalts(t *testing.T) {
	sim := newRobotSim(protocol.StandingRest)
	sim.react = toggleReact
	sim.sendErr[protocol.OpGreet] = errors.New("socket closed")
	e := newTestExecutor(sim)

	results, err := e.Run(Payload{Actions: []Action{{Code: "0x21010507"}}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || results[0].OK {
		t.Fatalf("results = %+v, want one failed outcome", results)
	}
	if indexOf(sim.codes(), protocol.OpEmergencyStop) == -1 {
		t.Error("a failed action must trigger a safety halt")
	}
}

func TestMoonwalkSkippedOutsideStandingRest(t *testing.T) {
	sim := newRobotSim(protocol.StateVector{Basic: 1})
	sim.react = toggleReact
	e := newTestExecutor(sim)

	results, err := e.Run(Payload{Actions: []Action{{Code: "0x2101030C"}}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("results = %+v, want one ok outcome (skip is not a failure)", results)
	}
	if indexOf(sim.codes(), protocol.OpMoonwalk) != -1 {
		t.Error("moonwalk must not be sent outside standing rest")
	}
}

func TestMoonwalkFullFlow(t *testing.T) {
	sim := newRobotSim(protocol.StandingRest)
	sim.react = func(s *robotSim, c protocol.Command) {
		switch c.Code {
		case protocol.OpMoonwalk:
			s.setState(protocol.StateVector{Basic: 6, Gait: 12, Motion: 1})
		case protocol.OpStandToggle:
			s.setState(protocol.StandingRest)
		}
	}
	e := newTestExecutor(sim)

	results, err := e.Run(Payload{Actions: []Action{{Code: "0x2101030C"}}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("results = %+v, want one ok outcome", results)
	}

	codes := sim.codes()
	walk := indexOf(codes, protocol.OpMoonwalk)
	if walk == -1 {
		t.Fatal("moonwalk was never sent")
	}
	finisher := indexOf(codes[walk:], protocol.OpStandToggle)
	if finisher == -1 {
		t.Error("moonwalk finisher stand command was never sent")
	}
}

func TestPitchTrimCorrectsPostureFirst(t *testing.T) {
	sim := newRobotSim(protocol.StateVector{Basic: 1})
	sim.react = toggleReact
	e := newTestExecutor(sim)

	results, err := e.Run(Payload{Actions: []Action{
		{Code: "0x21010130", Param: 15, Semantic: SemPosturePitch},
	}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("results = %+v, want one ok outcome", results)
	}

	codes := sim.codes()
	toggle := indexOf(codes, protocol.OpStandToggle)
	inPlace := indexOf(codes, protocol.OpInPlaceMode)
	if toggle == -1 || inPlace == -1 {
		t.Fatalf("sent = %#x, want stand toggle then in-place mode", codes)
	}
	if toggle > inPlace {
		t.Errorf("stand toggle at %d after in-place mode at %d", toggle, inPlace)
	}
}

func TestOutcomeTimestamps(t *testing.T) {
	sim := newRobotSim(protocol.StateVector{Basic: 1})
	sim.react = toggleReact
	e := newTestExecutor(sim)

	before := epochSeconds(time.Now())
	results, err := e.Run(Payload{Actions: []Action{{Code: "0x21012109", Param: 1}}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	after := epochSeconds(time.Now())

	r := results[0]
	if r.StartedAt < before || r.FinishedAt > after {
		t.Errorf("timestamps [%v %v] outside run window [%v %v]", r.StartedAt, r.FinishedAt, before, after)
	}
	if r.Duration < 0 {
		t.Errorf("duration = %v, want >= 0", r.Duration)
	}
}

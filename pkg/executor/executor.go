package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/openquad/go-dogctl/internal/log"
	"github.com/openquad/go-dogctl/pkg/protocol"
)

// Sender delivers one command frame to the robot.
type Sender interface {
	Send(protocol.Command) error
}

// StateSource exposes the latest telemetry vector and a bounded wait on it.
type StateSource interface {
	Latest() (protocol.StateVector, bool)
	WaitUntil(pred func(protocol.StateVector) bool, timeout, poll time.Duration) bool
}

// Executor runs one action sequence against a live robot. It tracks the
// posture it last observed and corrects it before tricks that need a
// specific one. Not safe for concurrent use; each job gets its own.
type Executor struct {
	send   Sender
	state  StateSource
	timing Timings
	gear   int
	logger *slog.Logger

	posture protocol.Posture
}

// Option adjusts an Executor at construction.
type Option func(*Executor)

// WithGear sets the locomotion speed gear.
func WithGear(gear int) Option {
	return func(e *Executor) { e.gear = gear }
}

// WithTimings replaces the default delays and bounds.
func WithTimings(t Timings) Option {
	return func(e *Executor) { e.timing = t }
}

// New builds an executor over a command sender and a telemetry source.
func New(send Sender, state StateSource, opts ...Option) *Executor {
	e := &Executor{
		send:    send,
		state:   state,
		timing:  DefaultTimings(),
		gear:    DefaultGear,
		logger:  log.With("component", "executor"),
		posture: protocol.PostureUnknown,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the payload's actions in order and returns one outcome per
// processed action. Per-action failures stop the sequence but are reported
// through the outcomes; the error return covers failures before the first
// action starts.
func (e *Executor) Run(p Payload) ([]Outcome, error) {
	if len(p.Actions) == 0 {
		return nil, errors.New("payload contains no actions")
	}
	move := hasMove(p.Actions)
	e.logger.Info("sequence start", "actions", len(p.Actions), "locomotion", move)

	if err := e.command(protocol.OpManualMode, 0); err != nil {
		return nil, fmt.Errorf("enter manual mode: %w", err)
	}
	e.sleep(e.timing.InitModeDelay)
	e.refreshState(e.timing.InitRefreshTimeout)

	if move {
		if err := e.prepareForFirstMove(); err != nil {
			return nil, fmt.Errorf("prepare locomotion: %w", err)
		}
	}

	var results []Outcome
	for idx, act := range p.Actions {
		started := time.Now()
		code, err := act.Opcode()
		if err != nil {
			e.logger.Error("unparsable action code", "index", idx, "code", act.Code, "err", err)
			results = append(results, e.outcome(false, idx, 0, act, err.Error(), started))
			break
		}

		if code == protocol.OpEmergencyStop {
			if err := e.command(code, 0); err != nil {
				e.logger.Error("emergency stop send failed", "err", err)
				results = append(results, e.outcome(false, idx, code, act, "emergency stop failed: "+err.Error(), started))
			} else {
				e.logger.Warn("emergency stop issued from action list", "index", idx)
				results = append(results, e.outcome(true, idx, code, act, "emergency stop issued", started))
			}
			// Everything after an emergency stop is moot, including the
			// final posture handling.
			return results, nil
		}

		e.logger.Info("action start",
			"index", idx+1, "total", len(p.Actions), "code", hexCode(code), "semantic", act.Semantic)
		if err := e.execOne(code, act.Param, act.Semantic); err != nil {
			e.logger.Error("action failed", "index", idx, "code", hexCode(code), "err", err)
			if serr := e.command(protocol.OpEmergencyStop, 0); serr != nil {
				e.logger.Error("safety stop after failure also failed", "err", serr)
			}
			results = append(results, e.outcome(false, idx, code, act, "action failed: "+err.Error(), started))
			return results, nil
		}
		results = append(results, e.outcome(true, idx, code, act, "executed", started))

		if idx < len(p.Actions)-1 {
			e.prepareNext(p.Actions[idx+1])
		}
	}

	if move {
		if err := e.stopBurst(e.timing.FinalStopBurstDuration); err != nil {
			e.logger.Warn("final stop burst incomplete", "err", err)
		}
	} else {
		// Power-saving default: sequences without locomotion end lying.
		e.waitSettled(e.timing.FinalSettleTimeout)
		e.ensurePosture(protocol.PostureLying, e.timing.FinalLieTimeout)
	}
	e.logger.Info("sequence finished", "results", len(results))
	return results, nil
}

// EmergencyStop fires the halt opcode immediately, outside any sequence.
func (e *Executor) EmergencyStop() error {
	e.logger.Warn("emergency stop")
	return e.command(protocol.OpEmergencyStop, 0)
}

func (e *Executor) execOne(code uint32, param float64, sem string) error {
	if code == protocol.OpMoonwalk {
		e.execMoonwalk()
		return nil
	}
	if target, ok := prerequisitePosture[code]; ok {
		e.ensurePosture(target, e.timing.EnsureTimeout)
	}
	if mc, ok := moveCode[sem]; ok && mc == code {
		return e.execMove(code, param, sem)
	}
	if pc, ok := postureCode[sem]; ok && pc == code {
		return e.execPostureTrim(code, param, sem)
	}
	if st, ok := executionState[code]; ok {
		return e.execTrick(code, st)
	}
	if err := e.command(code, int32(param)); err != nil {
		return err
	}
	e.sleep(e.timing.OtherActionDelay)
	return nil
}

// execMove drives one timed velocity burst followed by a stop burst.
func (e *Executor) execMove(code uint32, param float64, sem string) error {
	if err := e.command(protocol.OpMoveMode, 0); err != nil {
		return fmt.Errorf("enter move mode: %w", err)
	}
	e.sleep(e.timing.MoveModeDelay)

	var (
		dur time.Duration
		val int32
		err error
	)
	switch sem {
	case SemMoveX:
		dur, val, err = GoStraight(param, e.gear)
	case SemMoveY:
		dur, val, err = Translate(param, e.gear)
	case SemMoveYaw:
		dur, val = Revolve(param)
	}
	if err != nil {
		return err
	}
	if dur <= 0 {
		// Zero distance maps to a zero burst; a repeat task without a
		// time bound would stream velocity frames forever.
		e.logger.Info("zero-duration locomotion, skipping burst", "semantic", sem, "param", param)
		return e.stopBurst(e.timing.StopBurstDuration)
	}
	e.logger.Info("locomotion burst", "semantic", sem, "value", val, "duration", dur)

	task := NewRepeatTask("locomotion-"+hexCode(code), e.timing.RepeatInterval, dur, func() error {
		return e.command(code, val)
	})
	task.Start()
	task.Join()

	return e.stopBurst(e.timing.StopBurstDuration)
}

// execPostureTrim issues an in-place body trim. Pitch trims are only
// meaningful standing, so a wrong posture is corrected first.
func (e *Executor) execPostureTrim(code uint32, param float64, sem string) error {
	if sem == SemPosturePitch && e.posture != protocol.PostureStanding {
		e.logger.Warn("pitch trim while not standing; correcting", "posture", e.posture)
		e.ensurePosture(protocol.PostureStanding, e.timing.EnsureTimeout)
	}
	if err := e.command(protocol.OpInPlaceMode, 0); err != nil {
		return fmt.Errorf("enter in-place mode: %w", err)
	}
	e.sleep(e.timing.ModeSwitchDelay)
	if err := e.command(code, int32(param)); err != nil {
		return err
	}
	e.sleep(e.timing.PostureSettleDelay)
	return nil
}

// execTrick issues a trick opcode and follows it through the telemetry
// vector the trick reports while running.
func (e *Executor) execTrick(code uint32, st protocol.StateVector) error {
	if err := e.command(code, 0); err != nil {
		return err
	}
	if !e.waitForExecutionState(st, e.timing.ExecStateTimeout) {
		e.logger.Warn("execution state not confirmed; continuing", "code", hexCode(code), "want", st)
	}

	if sh, ok := specialHandlers[code]; ok {
		e.sleep(sh.DwellAfterState)
		if sh.PostAction != 0 {
			if err := e.command(sh.PostAction, 0); err != nil {
				return fmt.Errorf("trick finisher: %w", err)
			}
			e.sleep(e.timing.PostureSettleDelay)
			e.refreshState(e.timing.PostActionRefreshTimeout)
			e.waitSettled(e.timing.PostToggleSettle)
		}
	} else if prerequisitePosture[code] == protocol.PostureStanding {
		e.waitForCompletion(st, e.timing.CompletionTimeout)
		e.refreshState(e.timing.RefreshTimeout)
		e.waitSettled(e.timing.PostToggleSettle)
	} else {
		// Lying tricks end in their prerequisite posture; settling is all
		// that is left.
		e.waitSettled(e.timing.LyingSettleTimeout)
		e.refreshState(e.timing.RefreshTimeout)
	}
	e.logger.Info("trick finished", "code", hexCode(code), "posture", e.posture)
	return nil
}

// execMoonwalk runs the moonwalk's bespoke flow. The trick is skipped, not
// failed, when its strict entry condition is not met.
func (e *Executor) execMoonwalk() {
	v, ok := e.state.Latest()
	if !ok || !v.Equal(protocol.StandingRest) {
		e.logger.Warn("moonwalk needs standing rest; skipping", "state", v, "have", ok)
		return
	}
	if err := e.command(protocol.OpMoonwalk, 0); err != nil {
		e.logger.Error("moonwalk send failed; skipping", "err", err)
		return
	}
	target := executionState[protocol.OpMoonwalk]
	if !e.waitForExecutionState(target, e.timing.MoonwalkEnterTimeout) {
		e.logger.Warn("moonwalk never reported its execution state; skipping finisher")
		return
	}
	e.sleep(e.timing.MoonwalkDwell)
	if err := e.command(specialHandlers[protocol.OpMoonwalk].PostAction, 0); err != nil {
		e.logger.Error("moonwalk finisher send failed", "err", err)
		return
	}
	e.refreshState(e.timing.RefreshTimeout)
}

// prepareForFirstMove puts the robot into a standing, settled, move-ready
// state before the first locomotion action.
func (e *Executor) prepareForFirstMove() error {
	e.logger.Info("preparing for locomotion")
	if err := e.command(protocol.OpManualMode, 0); err != nil {
		return err
	}
	e.sleep(e.timing.ModeSwitchDelay)
	e.ensurePosture(protocol.PostureStanding, e.timing.PrepareEnsureTimeout)
	if err := e.command(protocol.OpMoveMode, 0); err != nil {
		return err
	}
	e.sleep(e.timing.FirstMoveModeDelay)
	e.waitSettled(e.timing.PrepSettle)
	return nil
}

// prepareNext lines the robot up for the upcoming action. Best effort:
// failures here surface when the action itself runs.
func (e *Executor) prepareNext(next Action) {
	code, err := next.Opcode()
	if err != nil {
		e.logger.Warn("next action code unparsable; pausing only", "code", next.Code, "err", err)
		e.sleep(e.timing.InterActionDelay)
		return
	}
	if isMoveSemantic(next.Semantic) {
		if err := e.command(protocol.OpMoveMode, 0); err != nil {
			e.logger.Warn("pre-queueing move mode failed", "err", err)
		}
		e.sleep(e.timing.ModeSwitchDelay)
		return
	}
	if target, ok := prerequisitePosture[code]; ok {
		e.refreshState(e.timing.RefreshTimeout)
		e.waitSettled(e.timing.PrepSettle)
		e.logger.Info("pre-correcting posture for next trick", "code", hexCode(code), "target", target)
		e.ensurePosture(target, e.timing.PrepareEnsureTimeout)
		return
	}
	e.waitSettled(e.timing.MatchedSettle)
	e.sleep(e.timing.InterActionDelay)
}

// ensurePosture drives the robot toward the target posture. Best effort:
// it logs and returns after bounded retries rather than failing the
// sequence, since a wrongly classified state is more common than a robot
// that truly cannot move.
func (e *Executor) ensurePosture(target protocol.Posture, timeout time.Duration) {
	e.refreshState(e.timing.RefreshTimeout)

	if e.posture == target {
		if v, ok := e.state.Latest(); ok && target == protocol.PostureStanding && (v.Basic == 25 || v.Basic == 5) {
			// Transitional standing (greet wind-down). Wait for the plain
			// standing vector rather than toggling.
			e.logger.Info("standing transition in progress; waiting", "state", v)
			if !e.waitUntil(func(v protocol.StateVector) bool {
				return v.Basic == 6 && v.Motion == 0
			}, e.timing.TransitionalStableTimeout) {
				e.logger.Info("transition wait timed out; already standing, continuing")
			}
			e.posture = protocol.PostureStanding
			return
		}
		e.waitSettled(e.timing.MatchedSettle)
		return
	}

	if e.posture == protocol.PostureUnknown {
		e.logger.Info("posture unknown; zeroing joints to recover telemetry")
		if err := e.command(protocol.OpZeroJoints, 0); err != nil {
			e.logger.Warn("zero command failed", "err", err)
		} else {
			e.sleep(e.timing.ZeroRecoverDelay)
			e.refreshState(e.timing.InitRefreshTimeout)
		}
		if e.posture == protocol.PostureUnknown {
			e.logger.Warn("posture still unknown; trying a blind toggle")
			if err := e.command(protocol.OpStandToggle, 0); err != nil {
				e.logger.Warn("blind toggle failed", "err", err)
			} else {
				e.sleep(e.timing.ToggleRecoverDelay)
				e.refreshState(e.timing.InitRefreshTimeout)
			}
		}
		if e.posture == target {
			e.waitSettled(e.timing.MatchedSettle)
			return
		}
	}

	e.waitSettled(e.timing.SettleTimeout)
	e.logger.Info("correcting posture", "current", e.posture, "target", target)
	for attempt := 1; attempt <= 2; attempt++ {
		if err := e.command(protocol.OpStandToggle, 0); err != nil {
			e.logger.Error("posture toggle send failed", "err", err)
			break
		}
		e.sleep(e.timing.ToggleDelay)
		if e.waitForPosture(target, timeout) {
			e.logger.Info("posture reached", "posture", e.posture)
			e.waitSettled(e.timing.PostToggleSettle)
			return
		}
		e.logger.Warn("posture not confirmed", "target", target, "attempt", attempt)
		e.waitSettled(e.timing.RetrySettle)
	}
	e.logger.Error("target posture not reached; continuing best effort",
		"target", target, "current", e.posture)
}

// stopBurst streams zero-velocity frames on all three axes to brake, then
// rests for the cooldown.
func (e *Executor) stopBurst(duration time.Duration) error {
	e.logger.Info("stop burst", "duration", duration)
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		for _, code := range []uint32{protocol.OpAxisPitch, protocol.OpAxisRoll, protocol.OpAxisYaw} {
			if err := e.command(code, 0); err != nil {
				return fmt.Errorf("stop burst: %w", err)
			}
		}
		e.sleep(e.timing.StopBurstInterval)
	}
	e.sleep(e.timing.StopCooldown)
	return nil
}

// waitForExecutionState waits until telemetry reports exactly the trick's
// execution vector.
func (e *Executor) waitForExecutionState(st protocol.StateVector, timeout time.Duration) bool {
	e.logger.Debug("waiting for execution state", "want", st)
	return e.waitUntil(func(v protocol.StateVector) bool { return v.Equal(st) }, timeout)
}

// waitForCompletion waits for a standing trick to leave its execution
// vector and come to rest. Greet winds down through transitional basic
// states and gets its own stabilization path.
func (e *Executor) waitForCompletion(st protocol.StateVector, timeout time.Duration) bool {
	e.logger.Debug("waiting for trick completion", "execution", st)
	deadline := time.Now().Add(timeout)
	e.sleep(e.timing.CompletionLead)

	left := false
	for time.Now().Before(deadline) {
		v, ok := e.state.Latest()
		if ok && !v.Equal(st) && !left {
			left = true
			e.logger.Debug("trick left execution state", "state", v)
			if st.Equal(greetExecution) {
				if e.waitUntil(func(v protocol.StateVector) bool {
					return v.Basic == 6 && v.Motion == 0
				}, e.timing.GreetStableTimeout) {
					return true
				}
				if v2, ok := e.state.Latest(); ok && v2.Posture() == protocol.PostureStanding {
					e.logger.Debug("greet settled into a standing transition; continuing")
					return true
				}
			} else if e.waitSettled(e.timing.LeaveSettleTimeout) {
				return true
			}
		}
		e.sleep(e.timing.CompletionPoll)
	}
	e.logger.Warn("trick completion timed out", "execution", st)
	e.waitSettled(e.timing.PostToggleSettle)
	return false
}

// refreshState waits for any telemetry and reclassifies the posture.
func (e *Executor) refreshState(timeout time.Duration) protocol.Posture {
	e.waitUntil(func(protocol.StateVector) bool { return true }, timeout)
	if v, ok := e.state.Latest(); ok {
		e.posture = v.Posture()
		e.logger.Debug("state refreshed", "state", v, "posture", e.posture)
	} else {
		e.posture = protocol.PostureUnknown
		e.logger.Warn("no telemetry; posture unknown")
	}
	return e.posture
}

// waitSettled waits for motion_state to return to zero.
func (e *Executor) waitSettled(timeout time.Duration) bool {
	ok := e.waitUntil(func(v protocol.StateVector) bool { return v.Settled() }, timeout)
	if !ok {
		e.logger.Warn("motion did not settle in time; continuing")
		e.sleep(e.timing.SettleGrace)
	}
	return ok
}

func (e *Executor) waitForPosture(target protocol.Posture, timeout time.Duration) bool {
	ok := e.waitUntil(func(v protocol.StateVector) bool { return v.Posture() == target }, timeout)
	if ok {
		e.posture = target
	}
	return ok
}

func (e *Executor) waitUntil(pred func(protocol.StateVector) bool, timeout time.Duration) bool {
	return e.state.WaitUntil(pred, timeout, e.timing.WaitPoll)
}

func (e *Executor) command(code uint32, param int32) error {
	return e.send.Send(protocol.Command{Code: code, Param: param})
}

func (e *Executor) sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

func (e *Executor) outcome(ok bool, idx int, code uint32, a Action, msg string, started time.Time) Outcome {
	finished := time.Now()
	codeStr := a.Code
	if code != 0 {
		codeStr = hexCode(code)
	}
	return Outcome{
		OK:         ok,
		Index:      idx,
		Code:       codeStr,
		Param:      a.Param,
		Message:    msg,
		StartedAt:  epochSeconds(started),
		FinishedAt: epochSeconds(finished),
		Duration:   math.Round(finished.Sub(started).Seconds()*1000) / 1000,
	}
}

func hexCode(code uint32) string {
	return fmt.Sprintf("%#x", code)
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

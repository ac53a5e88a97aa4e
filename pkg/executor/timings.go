package executor

import "time"

// DefaultGear is the locomotion speed gear used when none is configured.
const DefaultGear = 3

// Timings collects every delay and bound the sequencing state machine
// uses. Defaults reproduce the values tuned against the physical robot;
// tests compress them.
type Timings struct {
	// Session prologue.
	InitModeDelay      time.Duration // pause after entering manual mode
	InitRefreshTimeout time.Duration // first telemetry read

	// State refresh bounds.
	RefreshTimeout           time.Duration
	PostActionRefreshTimeout time.Duration // refresh after a trick finisher

	// Motion-settle waits (motion_state back to 0).
	SettleTimeout      time.Duration // default settle bound
	SettleGrace        time.Duration // extra pause when settle times out
	MatchedSettle      time.Duration // posture already correct
	PostToggleSettle   time.Duration // after a confirmed posture switch
	RetrySettle        time.Duration // between posture attempts
	PrepSettle         time.Duration // move preparation / next-trick prep
	LyingSettleTimeout time.Duration // lying tricks wind-down
	FinalSettleTimeout time.Duration // before the final lie-down
	LeaveSettleTimeout time.Duration // after a trick leaves its execution state

	// Posture correction.
	EnsureTimeout             time.Duration // per-attempt posture wait
	PrepareEnsureTimeout      time.Duration // first-move / between-action ensure
	FinalLieTimeout           time.Duration // power-saving lie-down at the end
	TransitionalStableTimeout time.Duration // basic 25/5 back to [6 _ 0]
	ToggleDelay               time.Duration // after sending the stand/lie toggle
	ZeroRecoverDelay          time.Duration // after the zero command
	ToggleRecoverDelay        time.Duration // after a blind toggle from UNKNOWN

	// Mode switches.
	ModeSwitchDelay    time.Duration // manual / in-place / queued move mode
	MoveModeDelay      time.Duration // move mode before each locomotion burst
	FirstMoveModeDelay time.Duration // move mode during first-move preparation

	// Locomotion bursts.
	RepeatInterval         time.Duration // cadence of repeated velocity frames
	StopBurstInterval      time.Duration
	StopBurstDuration      time.Duration // after each locomotion action
	FinalStopBurstDuration time.Duration // sequence epilogue
	StopCooldown           time.Duration // rest after a stop burst

	// Posture trims.
	PostureSettleDelay time.Duration // one-shot trim settle

	// Trick confirmation.
	ExecStateTimeout   time.Duration // wait for the execution-state vector
	CompletionTimeout  time.Duration // wait for the trick to finish
	CompletionLead     time.Duration // let the trick actually start
	CompletionPoll     time.Duration
	GreetStableTimeout time.Duration // greet transition back to [6 _ 0]

	// Moonwalk bespoke flow.
	MoonwalkEnterTimeout time.Duration
	MoonwalkDwell        time.Duration

	// Between actions.
	InterActionDelay time.Duration
	OtherActionDelay time.Duration // one-shot actions without a table entry

	// Telemetry polling.
	WaitPoll time.Duration
}

// DefaultTimings returns the production values.
func DefaultTimings() Timings {
	return Timings{
		InitModeDelay:      100 * time.Millisecond,
		InitRefreshTimeout: 3 * time.Second,

		RefreshTimeout:           1 * time.Second,
		PostActionRefreshTimeout: 2 * time.Second,

		SettleTimeout:      4 * time.Second,
		SettleGrace:        1 * time.Second,
		MatchedSettle:      2 * time.Second,
		PostToggleSettle:   3 * time.Second,
		RetrySettle:        2 * time.Second,
		PrepSettle:         3 * time.Second,
		LyingSettleTimeout: 6 * time.Second,
		FinalSettleTimeout: 6 * time.Second,
		LeaveSettleTimeout: 5 * time.Second,

		EnsureTimeout:             8 * time.Second,
		PrepareEnsureTimeout:      10 * time.Second,
		FinalLieTimeout:           12 * time.Second,
		TransitionalStableTimeout: 5 * time.Second,
		ToggleDelay:               500 * time.Millisecond,
		ZeroRecoverDelay:          1500 * time.Millisecond,
		ToggleRecoverDelay:        1 * time.Second,

		ModeSwitchDelay:    300 * time.Millisecond,
		MoveModeDelay:      200 * time.Millisecond,
		FirstMoveModeDelay: 500 * time.Millisecond,

		RepeatInterval:         100 * time.Millisecond,
		StopBurstInterval:      100 * time.Millisecond,
		StopBurstDuration:      1500 * time.Millisecond,
		FinalStopBurstDuration: 1200 * time.Millisecond,
		StopCooldown:           1 * time.Second,

		PostureSettleDelay: 800 * time.Millisecond,

		ExecStateTimeout:   8 * time.Second,
		CompletionTimeout:  15 * time.Second,
		CompletionLead:     500 * time.Millisecond,
		CompletionPoll:     100 * time.Millisecond,
		GreetStableTimeout: 8 * time.Second,

		MoonwalkEnterTimeout: 8 * time.Second,
		MoonwalkDwell:        4 * time.Second,

		InterActionDelay: 500 * time.Millisecond,
		OtherActionDelay: 500 * time.Millisecond,

		WaitPoll: 50 * time.Millisecond,
	}
}

// Package executor turns an ordered action list into a safe, state-aware
// command sequence: it corrects posture before tricks that need one,
// confirms execution-state vectors through telemetry, drives timed
// locomotion bursts, and records one outcome per action.
package executor

import (
	"fmt"
	"strconv"
	"strings"
)

// Action is one requested step of a submitted sequence. Code is the opcode
// as a hex string ("0x21010502"); Semantic disambiguates the axis opcodes
// that mean different things in move mode and in-place mode.
type Action struct {
	Code     string  `json:"code"`
	Param    float64 `json:"param,omitempty"`
	Semantic string  `json:"semantic,omitempty"`
}

// Opcode parses the hex opcode string, with or without the 0x prefix.
func (a Action) Opcode() (uint32, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(a.Code)), "0x")
	if s == "" {
		return 0, fmt.Errorf("empty action code")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse action code %q: %w", a.Code, err)
	}
	return uint32(v), nil
}

// Payload is the body of one submitted job.
type Payload struct {
	Actions []Action `json:"actions"`
}

// Outcome is the per-action result record. Appended once per processed
// action and never mutated afterwards.
type Outcome struct {
	OK         bool    `json:"ok"`
	Index      int     `json:"index"`
	Code       string  `json:"code"`
	Param      float64 `json:"param"`
	Message    string  `json:"message"`
	StartedAt  float64 `json:"started_at"`
	FinishedAt float64 `json:"finished_at"`
	Duration   float64 `json:"duration"`
}

// Report is the worker's result document: Ok only when every action of the
// submitted sequence succeeded.
type Report struct {
	OK      bool      `json:"ok"`
	Results []Outcome `json:"results"`
	Error   string    `json:"error,omitempty"`
}

// NewReport aggregates per-action outcomes. OK requires every outcome to
// succeed and every requested action to have produced one: a truncated
// sequence (emergency stop, unparsable code) never aggregates to OK even
// when each recorded outcome is individually fine.
func NewReport(results []Outcome, actions int) Report {
	ok := len(results) == actions
	for _, r := range results {
		if !r.OK {
			ok = false
		}
	}
	return Report{OK: ok, Results: results}
}

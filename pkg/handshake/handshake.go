// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package handshake runs protocol handshakes as data. A protocol handler
// supplies a transition table — an initial state, a frame reader, and a
// transition function — and the driver does the rest: sending outbound
// frames, reading inbound ones under per-step deadlines, and stopping at
// the first terminal state. Version negotiation, capability exchange, and
// challenge-response flows all reduce to the same loop.
package handshake

import (
	"errors"
	"fmt"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

// ErrProtocol indicates the peer sent a malformed frame: bad magic,
// impossible length, checksum mismatch. Distinct from a Rejected outcome,
// which is the peer validly declining.
var ErrProtocol = errors.New("handshake: protocol violation")

// State is the driver's position in a handshake.
type State int

const (
	// StateConnecting is the initial position, before any exchange.
	StateConnecting State = iota

	// StateNegotiating covers version and capability exchange rounds.
	StateNegotiating

	// StateAuthenticating covers challenge-response rounds.
	StateAuthenticating

	// StateReady is the sole successful terminal state.
	StateReady

	// StateRejected is terminal: the peer explicitly declined per protocol
	// semantics. A rejection is a valid outcome, not an engine failure.
	StateRejected

	// StateFailed is terminal: an I/O error, protocol violation, or
	// handler-detected error ended the handshake.
	StateFailed

	// StateTimedOut is terminal: a deadline expired mid-handshake.
	StateTimedOut
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateNegotiating:
		return "negotiating"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateRejected:
		return "rejected"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the driver stops at s.
func (s State) Terminal() bool {
	switch s {
	case StateReady, StateRejected, StateFailed, StateTimedOut:
		return true
	}
	return false
}

// Step is one transition's outcome: the next state, an optional outbound
// frame to send before proceeding, and the rejection code or failure
// reason when the next state is terminal.
type Step struct {
	Next State

	// Send, when non-nil, is written to the peer before the next state is
	// considered.
	Send []byte

	// Code carries the protocol-level code for StateRejected (e.g. a
	// numeric reply code or reject reason string).
	Code string

	// Reason carries the error for StateFailed.
	Reason error
}

// ReadFrameFunc reads one protocol frame from the session's reader under
// the given deadline. The handler decides what "one frame" means — a
// length-prefixed message, a CRLF line, a fixed header plus payload.
type ReadFrameFunc func(r *session.Reader, d *deadline.Deadline) ([]byte, error)

// TransitionFunc computes the next step from the current state and the
// most recent inbound frame. The first call receives a nil frame so a
// client-speaks-first protocol can emit its opening message. Returning an
// error is equivalent to returning a StateFailed step with that reason.
type TransitionFunc func(state State, inbound []byte) (Step, error)

// Table is a protocol's handshake expressed as data.
type Table struct {
	// Initial is the starting state, usually StateConnecting.
	Initial State

	// Transition computes each step.
	Transition TransitionFunc

	// ReadFrame reads the next inbound frame between steps.
	ReadFrame ReadFrameFunc

	// StepBudget bounds each single frame read. Zero means each read may
	// use the session deadline's full remainder.
	StepBudget time.Duration
}

// Final is the driver's outcome: the terminal state reached plus the
// code, reason, and last inbound frame that accompanied it.
type Final struct {
	State State
	Code  string
	Err   error

	// LastFrame is the inbound frame that drove the terminal transition,
	// when there was one. Handlers use it to extract peer-declared fields.
	LastFrame []byte
}

// Run drives the handshake to a terminal state. Any session I/O error
// becomes StateFailed and any deadline expiry StateTimedOut; the driver
// never retries a step. Retry policy, if a protocol wants one, lives in
// the handler re-invoking Run on a fresh session.
func Run(sess *session.Session, table *Table, d *deadline.Deadline) Final {
	r, err := sess.Reader()
	if err != nil {
		return Final{State: StateFailed, Err: err}
	}
	defer r.Release()

	state := table.Initial
	var inbound []byte

	for {
		step, err := table.Transition(state, inbound)
		if err != nil {
			return Final{State: StateFailed, Err: err, LastFrame: inbound}
		}

		if step.Send != nil {
			if err := sess.Send(step.Send, d); err != nil {
				return ioFinal(err, inbound)
			}
		}

		state = step.Next
		if state.Terminal() {
			return Final{State: state, Code: step.Code, Err: step.Reason, LastFrame: inbound}
		}

		inbound, err = readStep(r, table, d)
		if err != nil {
			return ioFinal(err, nil)
		}
	}
}

// readStep reads one frame under a per-step child deadline, releasing the
// child's timer whichever way the read resolves.
func readStep(r *session.Reader, table *Table, d *deadline.Deadline) ([]byte, error) {
	step := d
	if table.StepBudget > 0 {
		step = d.Child(table.StepBudget)
		defer step.Cancel()
	}
	return table.ReadFrame(r, step)
}

// ioFinal maps an engine-level error onto its terminal state.
func ioFinal(err error, lastFrame []byte) Final {
	if errors.Is(err, session.ErrTimeout) || errors.Is(err, deadline.ErrExpired) {
		return Final{State: StateTimedOut, Err: err, LastFrame: lastFrame}
	}
	return Final{State: StateFailed, Err: err, LastFrame: lastFrame}
}

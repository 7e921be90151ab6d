// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package probe

import (
	"errors"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

// Result is the single structured value a probe produces. It is built
// once by Finish and never mutated; Success is true if and only if the
// handshake ended in StateReady. A peer's explicit rejection is reported
// with Success false and its code preserved — "the server said no" and
// "something went wrong" stay distinguishable.
type Result struct {
	// Protocol is the probe's protocol name (registry key).
	Protocol string `json:"protocol"`

	// Target is the host:port that was dialed.
	Target string `json:"target"`

	// Success reports whether the handshake reached StateReady.
	Success bool `json:"success"`

	// State is the terminal handshake state name.
	State string `json:"state"`

	// Code is the protocol-level code accompanying a rejection, when the
	// peer supplied one.
	Code string `json:"code,omitempty"`

	// Error describes the failure for non-Ready outcomes.
	Error string `json:"error,omitempty"`

	// Fields holds protocol-declared values (peer version, banner,
	// capabilities) extracted by the handler.
	Fields map[string]any `json:"fields,omitempty"`

	// ConnectTime is how long dial (and TLS handshake) took.
	ConnectTime time.Duration `json:"connect_time_ns"`

	// TotalTime is the whole probe's duration.
	TotalTime time.Duration `json:"total_time_ns"`
}

// Timing carries the two durations every Result reports.
type Timing struct {
	Connect time.Duration
	Total   time.Duration
}

// Finish maps a terminal handshake outcome onto a Result. This is the
// only place Success can become true, and it requires StateReady; every
// other terminal state, Rejected included, produces Success false.
func Finish(protocol, target string, final handshake.Final, timing Timing, fields map[string]any) Result {
	res := Result{
		Protocol:    protocol,
		Target:      target,
		State:       final.State.String(),
		Code:        final.Code,
		Fields:      fields,
		ConnectTime: timing.Connect,
		TotalTime:   timing.Total,
	}
	if final.State == handshake.StateReady {
		res.Success = true
		return res
	}
	if final.Err != nil {
		res.Error = final.Err.Error()
	}
	return res
}

// FromError maps an error that occurred before or outside the handshake
// loop — typically a failed Open — onto a terminal outcome. Deadline
// expiry at any level is StateTimedOut; everything else StateFailed.
func FromError(err error) handshake.Final {
	if errors.Is(err, session.ErrTimeout) || errors.Is(err, deadline.ErrExpired) {
		return handshake.Final{State: handshake.StateTimedOut, Err: err}
	}
	return handshake.Final{State: handshake.StateFailed, Err: err}
}

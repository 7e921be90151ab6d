// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package probe

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

func TestFinish_SuccessOnlyForReady(t *testing.T) {
	states := []handshake.State{
		handshake.StateReady,
		handshake.StateRejected,
		handshake.StateFailed,
		handshake.StateTimedOut,
	}
	for _, st := range states {
		res := Finish("test", "host:1", handshake.Final{State: st}, Timing{}, nil)
		want := st == handshake.StateReady
		if res.Success != want {
			t.Errorf("%v: success %v, want %v", st, res.Success, want)
		}
		if res.State != st.String() {
			t.Errorf("%v: state %q", st, res.State)
		}
	}
}

func TestFinish_RejectionKeepsCodeAndFailsHonestly(t *testing.T) {
	final := handshake.Final{State: handshake.StateRejected, Code: "502"}
	res := Finish("nntp", "news.example.com:119", final, Timing{}, nil)

	if res.Success {
		t.Error("a peer rejection reported as success")
	}
	if res.Code != "502" {
		t.Errorf("code %q", res.Code)
	}
	// Distinguishable from Failed in the output.
	if res.State != "rejected" {
		t.Errorf("state %q", res.State)
	}
}

func TestFinish_CarriesTimingAndFields(t *testing.T) {
	timing := Timing{Connect: 12 * time.Millisecond, Total: 80 * time.Millisecond}
	fields := map[string]any{"banner": "hi"}
	res := Finish("echo", "h:7", handshake.Final{State: handshake.StateReady}, timing, fields)

	if res.ConnectTime != timing.Connect || res.TotalTime != timing.Total {
		t.Errorf("timing %v/%v", res.ConnectTime, res.TotalTime)
	}
	if res.Fields["banner"] != "hi" {
		t.Errorf("fields %v", res.Fields)
	}
	if res.Error != "" {
		t.Errorf("success result carries error %q", res.Error)
	}
}

func TestFinish_FailurePreservesReason(t *testing.T) {
	reason := fmt.Errorf("%w: bad magic", handshake.ErrProtocol)
	res := Finish("bitcoin", "h:8333", handshake.Final{
		State: handshake.StateFailed, Err: reason,
	}, Timing{}, nil)

	if res.Success {
		t.Error("failure reported as success")
	}
	if res.Error == "" {
		t.Error("failure lost its reason")
	}
}

func TestFromError_TimeoutMapsToTimedOut(t *testing.T) {
	cases := []error{
		fmt.Errorf("%w: read", session.ErrTimeout),
		fmt.Errorf("wrapped: %w", deadline.ErrExpired),
	}
	for _, err := range cases {
		final := FromError(err)
		if final.State != handshake.StateTimedOut {
			t.Errorf("%v: state %v", err, final.State)
		}
	}
}

func TestFromError_OtherErrorsMapToFailed(t *testing.T) {
	final := FromError(errors.Join(session.ErrConnect, errors.New("refused")))
	if final.State != handshake.StateFailed {
		t.Errorf("state %v", final.State)
	}
	if !errors.Is(final.Err, session.ErrConnect) {
		t.Errorf("err %v", final.Err)
	}
}

// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package simple

import (
	"context"
	"fmt"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

const (
	// chargenSample is how many bytes of the endless stream the probe
	// collects before declaring the service alive.
	chargenSample = 512

	// chargenBudget bounds the sampling read so the probe does not sit on
	// a slow generator for its whole outer budget.
	chargenBudget = 3 * time.Second
)

// Chargen samples the continuous stream an RFC 864 service generates.
// The stream never ends, so success is "bytes arrived", not "stream
// completed".
func Chargen(ctx context.Context, p probe.Params) probe.Result {
	return run(ctx, p, "chargen", ChargenPort, func(sess *session.Session, fields map[string]any) *handshake.Table {
		return &handshake.Table{
			Initial:    handshake.StateConnecting,
			ReadFrame:  readAll(chargenSample),
			StepBudget: chargenBudget,
			Transition: func(state handshake.State, inbound []byte) (handshake.Step, error) {
				switch state {
				case handshake.StateConnecting:
					return handshake.Step{Next: handshake.StateNegotiating}, nil
				default:
					if len(inbound) == 0 {
						return handshake.Step{}, fmt.Errorf("%w: no data from character generator",
							handshake.ErrProtocol)
					}
					fields["sample_bytes"] = len(inbound)
					fields["sample"] = string(inbound)
					return handshake.Step{Next: handshake.StateReady}, nil
				}
			},
		}
	})
}

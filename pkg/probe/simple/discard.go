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

// discardQuiet is how long the probe listens for the response a discard
// service must never send.
const discardQuiet = 2 * time.Second

var discardPayload = []byte("portprobe discard 863\r\n")

// Discard sends a payload to an RFC 863 discard service and confirms the
// peer stays silent. A reply means the port is running something else.
func Discard(ctx context.Context, p probe.Params) probe.Result {
	return run(ctx, p, "discard", DiscardPort, func(sess *session.Session, fields map[string]any) *handshake.Table {
		return &handshake.Table{
			Initial:    handshake.StateConnecting,
			ReadFrame:  readAll(256),
			StepBudget: discardQuiet,
			Transition: func(state handshake.State, inbound []byte) (handshake.Step, error) {
				switch state {
				case handshake.StateConnecting:
					return handshake.Step{Next: handshake.StateNegotiating, Send: discardPayload}, nil
				default:
					if len(inbound) > 0 {
						return handshake.Step{}, fmt.Errorf("%w: discard peer replied with %d bytes",
							handshake.ErrProtocol, len(inbound))
					}
					fields["sent_bytes"] = len(discardPayload)
					return handshake.Step{Next: handshake.StateReady}, nil
				}
			},
		}
	})
}

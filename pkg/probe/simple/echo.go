// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package simple

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

// echoPayload is the probe's test message. Distinctive enough that a
// server echoing anything else is visibly broken.
var echoPayload = []byte("portprobe echo 862\r\n")

// Echo sends a payload to an RFC 862 echo service and verifies the exact
// bytes come back.
func Echo(ctx context.Context, p probe.Params) probe.Result {
	return run(ctx, p, "echo", EchoPort, func(sess *session.Session, fields map[string]any) *handshake.Table {
		return &handshake.Table{
			Initial: handshake.StateConnecting,
			ReadFrame: func(r *session.Reader, d *deadline.Deadline) ([]byte, error) {
				return r.ReadExact(len(echoPayload), d)
			},
			Transition: func(state handshake.State, inbound []byte) (handshake.Step, error) {
				switch state {
				case handshake.StateConnecting:
					return handshake.Step{Next: handshake.StateNegotiating, Send: echoPayload}, nil
				default:
					if !bytes.Equal(inbound, echoPayload) {
						return handshake.Step{}, fmt.Errorf("%w: echo mismatch: sent %q, got %q",
							handshake.ErrProtocol, echoPayload, inbound)
					}
					fields["echoed_bytes"] = len(inbound)
					return handshake.Step{Next: handshake.StateReady}, nil
				}
			},
		}
	})
}

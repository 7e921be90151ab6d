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

// maxDaytimeLine bounds the daytime reply. Real servers send well under
// 100 bytes; anything past this is not a daytime service.
const maxDaytimeLine = 512

// Daytime reads the human-readable timestamp line an RFC 867 service
// sends on connect.
func Daytime(ctx context.Context, p probe.Params) probe.Result {
	return run(ctx, p, "daytime", DaytimePort, func(sess *session.Session, fields map[string]any) *handshake.Table {
		return &handshake.Table{
			Initial: handshake.StateConnecting,
			ReadFrame: func(r *session.Reader, d *deadline.Deadline) ([]byte, error) {
				return r.ReadLine([]byte("\n"), maxDaytimeLine, d)
			},
			Transition: func(state handshake.State, inbound []byte) (handshake.Step, error) {
				switch state {
				case handshake.StateConnecting:
					// Server speaks first.
					return handshake.Step{Next: handshake.StateNegotiating}, nil
				default:
					line := bytes.TrimRight(inbound, "\r")
					if len(line) == 0 {
						return handshake.Step{}, fmt.Errorf("%w: empty daytime reply", handshake.ErrProtocol)
					}
					fields["daytime"] = string(line)
					return handshake.Step{Next: handshake.StateReady}, nil
				}
			},
		}
	})
}

// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package simple

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
	"github.com/pocc/portofcall-sub007/pkg/wire"
)

// rfc868Epoch is the offset between the RFC 868 epoch (1900-01-01) and
// the Unix epoch (1970-01-01), in seconds.
const rfc868Epoch = 2208988800

// Time reads the 4-byte big-endian timestamp an RFC 868 service sends on
// connect and converts it to Unix time.
func Time(ctx context.Context, p probe.Params) probe.Result {
	return run(ctx, p, "time", TimePort, func(sess *session.Session, fields map[string]any) *handshake.Table {
		return &handshake.Table{
			Initial: handshake.StateConnecting,
			ReadFrame: func(r *session.Reader, d *deadline.Deadline) ([]byte, error) {
				return r.ReadExact(4, d)
			},
			Transition: func(state handshake.State, inbound []byte) (handshake.Step, error) {
				switch state {
				case handshake.StateConnecting:
					return handshake.Step{Next: handshake.StateNegotiating}, nil
				default:
					secs, err := wire.ReadUint(inbound, 4, binary.BigEndian)
					if err != nil {
						return handshake.Step{}, fmt.Errorf("%w: time reply: %w", handshake.ErrProtocol, err)
					}
					unix := int64(secs) - rfc868Epoch
					fields["raw_seconds"] = secs
					fields["unix_seconds"] = unix
					fields["time_utc"] = time.Unix(unix, 0).UTC().Format(time.RFC3339)
					return handshake.Step{Next: handshake.StateReady}, nil
				}
			},
		}
	})
}

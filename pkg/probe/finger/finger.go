// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package finger implements an RFC 1288 finger probe: send one query
// line, collect the response until the server closes, under a hard size
// ceiling.
package finger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

// DefaultPort is the assigned finger port.
const DefaultPort = 79

// maxResponse caps the finger response. User listings are small; a peer
// streaming past this is hostile or not a finger service.
const maxResponse = 64 * 1024

// Probe sends an empty query (list users) to a finger service.
func Probe(ctx context.Context, p probe.Params) probe.Result {
	return ProbeQuery(ctx, p, "")
}

// ProbeQuery sends a finger query for the given user (empty for the user
// list) and returns the response text.
func ProbeQuery(ctx context.Context, p probe.Params, query string) probe.Result {
	start := time.Now()
	d := p.NewDeadline(ctx)
	defer d.Cancel()

	target := p.Target(DefaultPort)
	sess, err := session.Open(p.SessionConfig("finger", DefaultPort), d)
	if err != nil {
		return probe.Finish("finger", target, probe.FromError(err),
			probe.Timing{Total: time.Since(start)}, nil)
	}
	defer sess.Close()

	fields := map[string]any{}
	table := &handshake.Table{
		Initial: handshake.StateConnecting,
		ReadFrame: func(r *session.Reader, d *deadline.Deadline) ([]byte, error) {
			return r.ReadAvailable(maxResponse, d)
		},
		Transition: func(state handshake.State, inbound []byte) (handshake.Step, error) {
			switch state {
			case handshake.StateConnecting:
				return handshake.Step{
					Next: handshake.StateNegotiating,
					Send: []byte(query + "\r\n"),
				}, nil
			default:
				if len(inbound) == 0 {
					return handshake.Step{}, fmt.Errorf("%w: empty finger response", handshake.ErrProtocol)
				}
				text := string(inbound)
				fields["response"] = text
				fields["lines"] = strings.Count(text, "\n")
				return handshake.Step{Next: handshake.StateReady}, nil
			}
		},
	}

	final := handshake.Run(sess, table, d)
	timing := probe.Timing{Connect: sess.ConnectTime(), Total: time.Since(start)}
	return probe.Finish("finger", target, final, timing, fields)
}

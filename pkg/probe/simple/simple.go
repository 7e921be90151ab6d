// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package simple implements probes for the classic single-exchange TCP
// services: Echo (RFC 862), Discard (RFC 863), Daytime (RFC 867), Chargen
// (RFC 864), and Time (RFC 868). Each is a thin transition table over the
// shared engine; together they cover the engine's read shapes — exact
// byte counts, terminated lines, and bounded sampling of endless streams.
package simple

import (
	"context"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

// Default ports per the assigned-numbers registry.
const (
	EchoPort    = 7
	DiscardPort = 9
	DaytimePort = 13
	ChargenPort = 19
	TimePort    = 37
)

// run opens a session for one simple probe, drives the table, and maps
// the outcome. All five probes share this shape.
func run(ctx context.Context, p probe.Params, protocol string, port int,
	build func(sess *session.Session, fields map[string]any) *handshake.Table) probe.Result {

	start := time.Now()
	d := p.NewDeadline(ctx)
	defer d.Cancel()

	target := p.Target(port)
	sess, err := session.Open(p.SessionConfig(protocol, port), d)
	if err != nil {
		return probe.Finish(protocol, target, probe.FromError(err),
			probe.Timing{Total: time.Since(start)}, nil)
	}
	defer sess.Close()

	fields := map[string]any{}
	final := handshake.Run(sess, build(sess, fields), d)

	timing := probe.Timing{Connect: sess.ConnectTime(), Total: time.Since(start)}
	return probe.Finish(protocol, target, final, timing, fields)
}

// readAll returns a ReadFrameFunc that samples up to max bytes, treating
// stream end or deadline expiry as the end of the sample.
func readAll(max int) handshake.ReadFrameFunc {
	return func(r *session.Reader, d *deadline.Deadline) ([]byte, error) {
		return r.ReadAvailable(max, d)
	}
}

// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package nntp implements an NNTP (RFC 3977) probe: read the greeting,
// request the server's capability list as a dot-stuffed multi-line block,
// and quit. A 4xx/5xx greeting is an honest rejection, reported with its
// reply code rather than as an engine failure.
package nntp

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

// DefaultPort is the assigned NNTP port.
const DefaultPort = 119

const (
	// maxReplyLine bounds one status line.
	maxReplyLine = 1024

	// maxBlock bounds the capability block. Capability lists are tiny;
	// the ceiling is defense against a peer that never sends the
	// terminating dot line.
	maxBlock = 64 * 1024
)

var crlf = []byte("\r\n")

// Probe performs the greeting/capabilities/quit exchange.
func Probe(ctx context.Context, p probe.Params) probe.Result {
	start := time.Now()
	d := p.NewDeadline(ctx)
	defer d.Cancel()

	target := p.Target(DefaultPort)
	sess, err := session.Open(p.SessionConfig("nntp", DefaultPort), d)
	if err != nil {
		return probe.Finish("nntp", target, probe.FromError(err),
			probe.Timing{Total: time.Since(start)}, nil)
	}
	defer sess.Close()

	fields := map[string]any{}

	// The second inbound frame is a status line plus, on 101, a
	// dot-stuffed block; readFrame folds the block into the frame so the
	// transition sees one logical reply.
	readCapabilities := false
	readFrame := func(r *session.Reader, d *deadline.Deadline) ([]byte, error) {
		line, err := r.ReadLine(crlf, maxReplyLine, d)
		if err != nil {
			return nil, err
		}
		if !readCapabilities {
			return line, nil
		}
		code, ok := replyCode(line)
		if !ok || code >= 400 {
			return line, nil
		}
		block, err := r.ReadBlock([]byte("."), maxBlock, session.DotUnstuff, d)
		if err != nil {
			return nil, err
		}
		return append(append(line, '\n'), bytes.Join(block, []byte("\n"))...), nil
	}

	table := &handshake.Table{
		Initial:   handshake.StateConnecting,
		ReadFrame: readFrame,
		Transition: func(state handshake.State, inbound []byte) (handshake.Step, error) {
			switch state {
			case handshake.StateConnecting:
				// Server speaks first.
				return handshake.Step{Next: handshake.StateNegotiating}, nil

			case handshake.StateNegotiating:
				code, ok := replyCode(inbound)
				if !ok {
					return handshake.Step{}, fmt.Errorf("%w: malformed greeting %q",
						handshake.ErrProtocol, inbound)
				}
				fields["greeting"] = string(inbound)
				fields["greeting_code"] = code
				switch {
				case code == 200 || code == 201:
					fields["posting_allowed"] = code == 200
					readCapabilities = true
					return handshake.Step{
						Next: handshake.StateAuthenticating,
						Send: []byte("CAPABILITIES\r\n"),
					}, nil
				case code >= 400:
					// The server is explicitly declining service.
					return handshake.Step{
						Next: handshake.StateRejected,
						Code: strconv.Itoa(code),
					}, nil
				default:
					return handshake.Step{}, fmt.Errorf("%w: unexpected greeting code %d",
						handshake.ErrProtocol, code)
				}

			default:
				lines := bytes.Split(inbound, []byte("\n"))
				status := lines[0]
				if code, ok := replyCode(status); ok && code == 101 {
					caps := make([]string, 0, len(lines)-1)
					for _, l := range lines[1:] {
						caps = append(caps, string(l))
					}
					fields["capabilities"] = caps
				}
				return handshake.Step{Next: handshake.StateReady, Send: []byte("QUIT\r\n")}, nil
			}
		},
	}

	final := handshake.Run(sess, table, d)
	timing := probe.Timing{Connect: sess.ConnectTime(), Total: time.Since(start)}
	return probe.Finish("nntp", target, final, timing, fields)
}

// replyCode parses the leading 3-digit NNTP reply code.
func replyCode(line []byte) (int, bool) {
	if len(line) < 3 {
		return 0, false
	}
	code, err := strconv.Atoi(string(line[:3]))
	if err != nil || code < 100 || code > 599 {
		return 0, false
	}
	return code, true
}

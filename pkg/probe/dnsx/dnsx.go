// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package dnsx implements a DNS-over-TCP probe. The query is packed with
// miekg/dns and carried through the engine's own framing (RFC 1035 §4.2.2
// two-byte length prefix), so segmentation, deadlines, and teardown follow
// the same rules as every other probe.
package dnsx

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/miekg/dns"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
	"github.com/pocc/portofcall-sub007/pkg/wire"
)

// DefaultPort is the assigned DNS port.
const DefaultPort = 53

// maxMessage caps a framed DNS response. The length prefix is 16 bits,
// so this is the protocol's own ceiling.
const maxMessage = 65535

// Probe queries the root zone's NS set, a request every resolver and
// authoritative server can answer.
func Probe(ctx context.Context, p probe.Params) probe.Result {
	return ProbeQuery(ctx, p, ".", dns.TypeNS)
}

// ProbeQuery sends one query for the given name and type over TCP and
// summarizes the response. A REFUSED or SERVFAIL response is an honest
// rejection; NOERROR and NXDOMAIN are both successful probes (the server
// answered authoritatively either way).
func ProbeQuery(ctx context.Context, p probe.Params, name string, qtype uint16) probe.Result {
	start := time.Now()
	d := p.NewDeadline(ctx)
	defer d.Cancel()

	target := p.Target(DefaultPort)
	sess, err := session.Open(p.SessionConfig("dns", DefaultPort), d)
	if err != nil {
		return probe.Finish("dns", target, probe.FromError(err),
			probe.Timing{Total: time.Since(start)}, nil)
	}
	defer sess.Close()

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(name), qtype)

	packed, err := query.Pack()
	if err != nil {
		final := handshake.Final{State: handshake.StateFailed,
			Err: fmt.Errorf("dnsx: pack query: %w", err)}
		return probe.Finish("dns", target, final,
			probe.Timing{Connect: sess.ConnectTime(), Total: time.Since(start)}, nil)
	}

	fields := map[string]any{}
	table := &handshake.Table{
		Initial:   handshake.StateConnecting,
		ReadFrame: readFramed,
		Transition: func(state handshake.State, inbound []byte) (handshake.Step, error) {
			switch state {
			case handshake.StateConnecting:
				frame, err := wire.AppendUint(nil, uint64(len(packed)), 2, binary.BigEndian)
				if err != nil {
					return handshake.Step{}, fmt.Errorf("dnsx: frame query: %w", err)
				}
				return handshake.Step{
					Next: handshake.StateNegotiating,
					Send: append(frame, packed...),
				}, nil

			default:
				resp := new(dns.Msg)
				if err := resp.Unpack(inbound); err != nil {
					return handshake.Step{}, fmt.Errorf("%w: unpack response: %w",
						handshake.ErrProtocol, err)
				}
				if resp.Id != query.Id {
					return handshake.Step{}, fmt.Errorf("%w: response id %d does not match query id %d",
						handshake.ErrProtocol, resp.Id, query.Id)
				}

				rcode := dns.RcodeToString[resp.Rcode]
				fields["rcode"] = rcode
				fields["authoritative"] = resp.Authoritative
				fields["recursion_available"] = resp.RecursionAvailable
				fields["answer_count"] = len(resp.Answer)
				answers := make([]string, 0, len(resp.Answer))
				for _, rr := range resp.Answer {
					answers = append(answers, rr.String())
				}
				if len(answers) > 0 {
					fields["answers"] = answers
				}

				switch resp.Rcode {
				case dns.RcodeSuccess, dns.RcodeNameError:
					return handshake.Step{Next: handshake.StateReady}, nil
				default:
					return handshake.Step{Next: handshake.StateRejected, Code: rcode}, nil
				}
			}
		},
	}

	final := handshake.Run(sess, table, d)
	timing := probe.Timing{Connect: sess.ConnectTime(), Total: time.Since(start)}
	return probe.Finish("dns", target, final, timing, fields)
}

// readFramed reads one length-prefixed DNS message.
func readFramed(r *session.Reader, d *deadline.Deadline) ([]byte, error) {
	prefix, err := r.ReadExact(2, d)
	if err != nil {
		return nil, err
	}
	length, err := wire.ReadUint(prefix, 2, binary.BigEndian)
	if err != nil {
		return nil, err
	}
	if length == 0 || length > maxMessage {
		return nil, fmt.Errorf("%w: declared message length %d", handshake.ErrProtocol, length)
	}
	return r.ReadExact(int(length), d)
}

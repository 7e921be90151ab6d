// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package noisex implements a Noise_NK reachability probe for services
// that speak length-prefixed Noise frames (bootstrap endpoints, secure
// RPC). The probe runs the 2-message NK handshake as a transition table;
// completing it proves the peer holds the private half of the static key
// the caller supplied.
package noisex

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/flynn/noise"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
	"github.com/pocc/portofcall-sub007/pkg/wire"
)

// DefaultPort is the conventional port for Noise-framed bootstrap listeners.
const DefaultPort = 8445

// maxFrame is the Noise protocol's maximum message size, which the
// 2-byte length prefix encodes exactly.
const maxFrame = 65535

// suiteName records the fixed cipher suite the probe negotiates.
const suiteName = "Noise_NK_25519_ChaChaPoly_SHA256"

// Probe runs the NK handshake against the responder whose 32-byte
// Curve25519 static public key is serverKey.
func Probe(ctx context.Context, p probe.Params, serverKey []byte) probe.Result {
	start := time.Now()
	d := p.NewDeadline(ctx)
	defer d.Cancel()

	target := p.Target(DefaultPort)

	if len(serverKey) != 32 {
		final := handshake.Final{State: handshake.StateFailed,
			Err: fmt.Errorf("noisex: server static key must be 32 bytes, got %d", len(serverKey))}
		return probe.Finish("noise", target, final, probe.Timing{Total: time.Since(start)}, nil)
	}

	cipherSuite := noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: cipherSuite,
		Pattern:     noise.HandshakeNK,
		Initiator:   true,
		PeerStatic:  serverKey,
	})
	if err != nil {
		final := handshake.Final{State: handshake.StateFailed,
			Err: fmt.Errorf("noisex: init handshake state: %w", err)}
		return probe.Finish("noise", target, final, probe.Timing{Total: time.Since(start)}, nil)
	}

	sess, err := session.Open(p.SessionConfig("noise", DefaultPort), d)
	if err != nil {
		return probe.Finish("noise", target, probe.FromError(err),
			probe.Timing{Total: time.Since(start)}, nil)
	}
	defer sess.Close()

	fields := map[string]any{}
	table := &handshake.Table{
		Initial:   handshake.StateConnecting,
		ReadFrame: readFramed,
		Transition: func(state handshake.State, inbound []byte) (handshake.Step, error) {
			switch state {
			case handshake.StateConnecting:
				// msg1: [e, es]
				msg1, _, _, err := hs.WriteMessage(nil, nil)
				if err != nil {
					return handshake.Step{}, fmt.Errorf("noisex: generate msg1: %w", err)
				}
				frame, err := wire.AppendUint(nil, uint64(len(msg1)), 2, binary.BigEndian)
				if err != nil {
					return handshake.Step{}, fmt.Errorf("noisex: frame msg1: %w", err)
				}
				return handshake.Step{
					Next: handshake.StateNegotiating,
					Send: append(frame, msg1...),
				}, nil

			default:
				// msg2: [e, ee] completes the handshake.
				_, cs1, cs2, err := hs.ReadMessage(nil, inbound)
				if err != nil {
					return handshake.Step{}, fmt.Errorf("%w: process msg2: %w",
						handshake.ErrProtocol, err)
				}
				if cs1 == nil || cs2 == nil {
					return handshake.Step{}, fmt.Errorf("%w: handshake did not complete",
						handshake.ErrProtocol)
				}
				fields["cipher_suite"] = suiteName
				fields["handshake_hash"] = hex.EncodeToString(hs.ChannelBinding())
				return handshake.Step{Next: handshake.StateReady}, nil
			}
		},
	}

	final := handshake.Run(sess, table, d)
	timing := probe.Timing{Connect: sess.ConnectTime(), Total: time.Since(start)}
	return probe.Finish("noise", target, final, timing, fields)
}

// readFramed reads one 2-byte big-endian length-prefixed Noise frame.
func readFramed(r *session.Reader, d *deadline.Deadline) ([]byte, error) {
	prefix, err := r.ReadExact(2, d)
	if err != nil {
		return nil, err
	}
	length, err := wire.ReadUint(prefix, 2, binary.BigEndian)
	if err != nil {
		return nil, err
	}
	if length == 0 || length > maxFrame {
		return nil, fmt.Errorf("%w: declared frame length %d", handshake.ErrProtocol, length)
	}
	return r.ReadExact(int(length), d)
}

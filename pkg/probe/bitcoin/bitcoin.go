// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package bitcoin implements a bitcoin p2p version handshake probe: send
// version, expect version back, exchange verack, report what the peer
// declared about itself. Every inbound message's magic and checksum are
// verified before the payload reaches the transition function.
package bitcoin

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
	"github.com/pocc/portofcall-sub007/pkg/wire"
)

// DefaultPort is the mainnet p2p port.
const DefaultPort = 8333

const (
	// headerSize is the fixed message header: 4-byte magic, 12-byte
	// command, 4-byte payload length, 4-byte checksum.
	headerSize = 24

	// maxPayload caps a single message payload. The version message is
	// a few hundred bytes; anything near this ceiling is not a version
	// handshake.
	maxPayload = 1 << 20

	// protocolVersion is the version the probe advertises.
	protocolVersion = 70015

	userAgent = "/portprobe:1.0/"
)

// MainnetMagic identifies mainnet messages, little-endian on the wire as
// f9 be b4 d9.
var MainnetMagic = []byte{0xf9, 0xbe, 0xb4, 0xd9}

// Probe performs the version/verack exchange with mainnet magic.
func Probe(ctx context.Context, p probe.Params) probe.Result {
	return ProbeMagic(ctx, p, MainnetMagic)
}

// ProbeMagic performs the version/verack exchange using the given network
// magic (testnet and regtest peers use different values).
func ProbeMagic(ctx context.Context, p probe.Params, magic []byte) probe.Result {
	start := time.Now()
	d := p.NewDeadline(ctx)
	defer d.Cancel()

	target := p.Target(DefaultPort)
	sess, err := session.Open(p.SessionConfig("bitcoin", DefaultPort), d)
	if err != nil {
		return probe.Finish("bitcoin", target, probe.FromError(err),
			probe.Timing{Total: time.Since(start)}, nil)
	}
	defer sess.Close()

	fields := map[string]any{}
	table := &handshake.Table{
		Initial: handshake.StateConnecting,
		ReadFrame: func(r *session.Reader, d *deadline.Deadline) ([]byte, error) {
			return readMessage(r, d, magic)
		},
		Transition: func(state handshake.State, inbound []byte) (handshake.Step, error) {
			switch state {
			case handshake.StateConnecting:
				return handshake.Step{
					Next: handshake.StateNegotiating,
					Send: encodeMessage(magic, "version", versionPayload()),
				}, nil

			case handshake.StateNegotiating:
				cmd, payload := splitMessage(inbound)
				switch cmd {
				case "version":
					if err := parseVersion(payload, fields); err != nil {
						return handshake.Step{}, err
					}
					return handshake.Step{
						Next: handshake.StateAuthenticating,
						Send: encodeMessage(magic, "verack", nil),
					}, nil
				case "reject":
					return rejectStep(payload), nil
				default:
					return handshake.Step{}, fmt.Errorf("%w: expected version, got %q",
						handshake.ErrProtocol, cmd)
				}

			default:
				cmd, payload := splitMessage(inbound)
				switch cmd {
				case "verack":
					return handshake.Step{Next: handshake.StateReady}, nil
				case "reject":
					return rejectStep(payload), nil
				default:
					// Peers may interleave sendheaders, feefilter, etc.
					// before verack; keep waiting.
					return handshake.Step{Next: handshake.StateAuthenticating}, nil
				}
			}
		},
	}

	final := handshake.Run(sess, table, d)
	timing := probe.Timing{Connect: sess.ConnectTime(), Total: time.Since(start)}
	return probe.Finish("bitcoin", target, final, timing, fields)
}

// readMessage reads one framed message and returns command||payload after
// verifying magic, length ceiling, and checksum.
func readMessage(r *session.Reader, d *deadline.Deadline, magic []byte) ([]byte, error) {
	header, err := r.ReadExact(headerSize, d)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(header[:4], magic) {
		return nil, fmt.Errorf("%w: bad magic %x", handshake.ErrProtocol, header[:4])
	}
	length, err := wire.ReadUint(header[16:20], 4, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if length > maxPayload {
		return nil, fmt.Errorf("%w: declared payload %d exceeds %d",
			handshake.ErrProtocol, length, maxPayload)
	}
	payload, err := r.ReadExact(int(length), d)
	if err != nil {
		return nil, err
	}
	if !wire.VerifyChecksum(wire.ChecksumDoubleSHA4, payload, header[20:24]) {
		return nil, fmt.Errorf("%w: checksum mismatch on %q command",
			handshake.ErrProtocol, commandName(header[4:16]))
	}
	return append(header[4:16], payload...), nil
}

// splitMessage separates the command name and payload produced by
// readMessage.
func splitMessage(frame []byte) (string, []byte) {
	return commandName(frame[:12]), frame[12:]
}

func commandName(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// encodeMessage frames a command and payload with magic, length, and
// double-SHA-256 checksum.
func encodeMessage(magic []byte, command string, payload []byte) []byte {
	msg := make([]byte, 0, headerSize+len(payload))
	msg = append(msg, magic...)
	cmd := make([]byte, 12)
	copy(cmd, command)
	msg = append(msg, cmd...)
	msg = binary.LittleEndian.AppendUint32(msg, uint32(len(payload)))
	sum, _ := wire.Checksum(wire.ChecksumDoubleSHA4, payload)
	msg = append(msg, sum...)
	return append(msg, payload...)
}

// versionPayload builds the probe's version message body.
func versionPayload() []byte {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, protocolVersion)
	b = binary.LittleEndian.AppendUint64(b, 0) // services: none
	b = binary.LittleEndian.AppendUint64(b, uint64(time.Now().Unix()))
	b = append(b, netAddr()...) // addr_recv
	b = append(b, netAddr()...) // addr_from
	b = binary.LittleEndian.AppendUint64(b, rand.Uint64()) // nonce
	b = wire.AppendVarint(b, uint64(len(userAgent)))
	b = append(b, userAgent...)
	b = binary.LittleEndian.AppendUint32(b, 0) // start_height
	b = append(b, 0)                           // relay: false
	return b
}

// netAddr is a zeroed 26-byte network address (services, IPv6-mapped IP,
// port); peers ignore these fields in version messages.
func netAddr() []byte {
	return make([]byte, 26)
}

// parseVersion extracts the peer's declared version fields.
func parseVersion(payload []byte, fields map[string]any) error {
	version, err := wire.ReadUint(payload, 4, binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("%w: version: %w", handshake.ErrProtocol, err)
	}
	services, err := wire.ReadUint(payload[4:], 8, binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("%w: services: %w", handshake.ErrProtocol, err)
	}
	fields["protocol_version"] = version
	fields["services"] = services

	// user_agent sits past version(4) services(8) timestamp(8)
	// addr_recv(26) addr_from(26) nonce(8).
	const uaOffset = 80
	ua, next, err := wire.ReadVarString(payload, uaOffset)
	if err != nil {
		return fmt.Errorf("%w: user agent: %w", handshake.ErrProtocol, err)
	}
	fields["user_agent"] = string(ua)

	if height, err := wire.ReadUint(payload[next:], 4, binary.LittleEndian); err == nil {
		fields["start_height"] = height
	}
	return nil
}

// rejectStep maps a reject message onto the Rejected terminal state,
// preserving the peer's reject reason string as the code.
func rejectStep(payload []byte) handshake.Step {
	code := "reject"
	if msg, _, err := wire.ReadVarString(payload, 0); err == nil && len(msg) > 0 {
		code = "reject:" + string(msg)
	}
	return handshake.Step{Next: handshake.StateRejected, Code: code}
}

// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package sshx implements an SSH identity probe: run the key exchange far
// enough to capture the server's host key and fingerprint, without
// attempting authentication. The stream is opened and torn down by the
// engine; x/crypto/ssh drives the record layer in between.
package sshx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/pocc/portofcall-sub007/pkg/handshake"
	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

// DefaultPort is the assigned SSH port.
const DefaultPort = 22

// probeUser is the username offered during the (never-completed) auth
// exchange.
const probeUser = "portprobe"

// Probe captures the SSH server's identity. The key exchange completing
// is success; the expected authentication refusal that follows is not a
// failure, since the probe offers no credentials by design.
func Probe(ctx context.Context, p probe.Params) probe.Result {
	start := time.Now()
	d := p.NewDeadline(ctx)
	defer d.Cancel()

	target := p.Target(DefaultPort)
	sess, err := session.Open(p.SessionConfig("ssh", DefaultPort), d)
	if err != nil {
		return probe.Finish("ssh", target, probe.FromError(err),
			probe.Timing{Total: time.Since(start)}, nil)
	}
	defer sess.Close()

	fields := map[string]any{}
	kexDone := false

	conn := sess.NetConn()
	if err := conn.SetDeadline(d.Time()); err != nil {
		final := handshake.Final{State: handshake.StateFailed,
			Err: fmt.Errorf("sshx: set deadline: %w", err)}
		return probe.Finish("ssh", target, final,
			probe.Timing{Connect: sess.ConnectTime(), Total: time.Since(start)}, nil)
	}

	cfg := &ssh.ClientConfig{
		User: probeUser,
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			kexDone = true
			fields["host_key_type"] = key.Type()
			fields["host_key_fingerprint"] = ssh.FingerprintSHA256(key)
			return nil
		},
		BannerCallback: func(message string) error {
			if message != "" {
				fields["banner"] = strings.TrimSpace(message)
			}
			return nil
		},
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, target, cfg)
	final := sshFinal(err, kexDone, d.Expired())
	if err == nil {
		fields["server_version"] = string(clientConn.ServerVersion())
		go ssh.DiscardRequests(reqs)
		go func() {
			for ch := range chans {
				ch.Reject(ssh.Prohibited, "probe only")
			}
		}()
		clientConn.Close()
	}

	timing := probe.Timing{Connect: sess.ConnectTime(), Total: time.Since(start)}
	return probe.Finish("ssh", target, final, timing, fields)
}

// sshFinal maps the NewClientConn outcome. Key exchange completing means
// the server's identity was captured, which is all the probe asks for;
// the auth refusal that ends the connection afterward is the expected
// path, not a failure.
func sshFinal(err error, kexDone, expired bool) handshake.Final {
	switch {
	case err == nil:
		return handshake.Final{State: handshake.StateReady}
	case kexDone && isAuthRefusal(err):
		return handshake.Final{State: handshake.StateReady}
	case expired || isTimeout(err):
		return handshake.Final{State: handshake.StateTimedOut,
			Err: fmt.Errorf("sshx: handshake: %w", err)}
	default:
		return handshake.Final{State: handshake.StateFailed,
			Err: fmt.Errorf("sshx: handshake: %w", err)}
	}
}

// isAuthRefusal recognizes the server declining our (empty) set of
// authentication methods after a successful key exchange.
func isAuthRefusal(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate") ||
		strings.Contains(err.Error(), "no supported methods remain")
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

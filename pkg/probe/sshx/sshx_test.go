// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sshx

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/pocc/portofcall-sub007/pkg/probe"
)

// startSSHServer runs an in-process SSH server and returns probe
// parameters plus the fingerprint of its host key.
func startSSHServer(t *testing.T, cfg *ssh.ServerConfig) (probe.Params, string) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	cfg.AddHostKey(signer)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				// Auth failures are the expected path for the probe.
				sc, chans, reqs, err := ssh.NewServerConn(c, cfg)
				if err != nil {
					return
				}
				go ssh.DiscardRequests(reqs)
				for ch := range chans {
					ch.Reject(ssh.Prohibited, "test server")
				}
				sc.Close()
			}(conn)
		}
	}()

	params := probe.Params{
		Host:    "127.0.0.1",
		Port:    l.Addr().(*net.TCPAddr).Port,
		Timeout: 5 * time.Second,
	}
	return params, ssh.FingerprintSHA256(signer.PublicKey())
}

func TestProbe_CapturesIdentityDespiteAuthRefusal(t *testing.T) {
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			return nil, fmt.Errorf("no")
		},
	}
	params, fingerprint := startSSHServer(t, cfg)

	res := Probe(context.Background(), params)
	if !res.Success || res.State != "ready" {
		t.Fatalf("result %+v", res)
	}
	if res.Fields["host_key_type"] != "ssh-ed25519" {
		t.Errorf("host_key_type %v", res.Fields["host_key_type"])
	}
	if res.Fields["host_key_fingerprint"] != fingerprint {
		t.Errorf("fingerprint %v, want %s", res.Fields["host_key_fingerprint"], fingerprint)
	}
}

func TestProbe_NoAuthServerIncludesVersion(t *testing.T) {
	cfg := &ssh.ServerConfig{NoClientAuth: true}
	params, _ := startSSHServer(t, cfg)

	res := Probe(context.Background(), params)
	if !res.Success {
		t.Fatalf("result %+v", res)
	}
	version, ok := res.Fields["server_version"].(string)
	if !ok || !strings.HasPrefix(version, "SSH-2.0") {
		t.Errorf("server_version %v", res.Fields["server_version"])
	}
}

func TestProbe_NotAnSSHServerFails(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("220 smtp.example.com ESMTP\r\n"))
	}()

	params := probe.Params{
		Host:    "127.0.0.1",
		Port:    l.Addr().(*net.TCPAddr).Port,
		Timeout: 5 * time.Second,
	}
	res := Probe(context.Background(), params)
	if res.Success {
		t.Fatal("non-SSH peer reported as success")
	}
	if res.State != "failed" && res.State != "timed_out" {
		t.Errorf("state %q", res.State)
	}
}

func TestSSHFinal_Mapping(t *testing.T) {
	authErr := errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none]")

	if f := sshFinal(nil, true, false); f.State.String() != "ready" {
		t.Errorf("nil error: %v", f.State)
	}
	if f := sshFinal(authErr, true, false); f.State.String() != "ready" {
		t.Errorf("auth refusal after kex: %v", f.State)
	}
	if f := sshFinal(authErr, false, false); f.State.String() != "failed" {
		t.Errorf("auth-like error without kex: %v", f.State)
	}
	if f := sshFinal(errors.New("connection reset"), false, true); f.State.String() != "timed_out" {
		t.Errorf("expired deadline: %v", f.State)
	}
}

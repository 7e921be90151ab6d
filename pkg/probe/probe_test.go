// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package probe

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/session"
)

func TestParams_BudgetDefault(t *testing.T) {
	p := Params{}
	if p.Budget() != DefaultTimeout {
		t.Errorf("zero timeout: %v", p.Budget())
	}
	p.Timeout = 3 * time.Second
	if p.Budget() != 3*time.Second {
		t.Errorf("explicit timeout: %v", p.Budget())
	}
}

func TestParams_SessionConfigDefaults(t *testing.T) {
	p := Params{Host: "example.com"}
	cfg := p.SessionConfig("nntp", 119)

	if cfg.Port != 119 {
		t.Errorf("port %d", cfg.Port)
	}
	if cfg.Mode != session.ModePlain {
		t.Errorf("mode %q", cfg.Mode)
	}
	if cfg.Protocol != "nntp" {
		t.Errorf("protocol %q", cfg.Protocol)
	}

	p.Port = 8119
	p.Mode = session.ModeImplicitTLS
	cfg = p.SessionConfig("nntp", 119)
	if cfg.Port != 8119 || cfg.Mode != session.ModeImplicitTLS {
		t.Errorf("explicit values lost: %+v", cfg)
	}
}

func TestParams_Target(t *testing.T) {
	p := Params{Host: "example.com"}
	if got := p.Target(79); got != "example.com:79" {
		t.Errorf("target %q", got)
	}
	p.Port = 7979
	if got := p.Target(79); got != "example.com:7979" {
		t.Errorf("target %q", got)
	}
	p.Host = "::1"
	if got := p.Target(79); got != "[::1]:7979" {
		t.Errorf("ipv6 target %q", got)
	}
}

func TestRegistry(t *testing.T) {
	fn := func(ctx context.Context, p Params) Result {
		return Result{Protocol: "fake"}
	}
	Register("fake-proto", fn)

	got, ok := Lookup("fake-proto")
	if !ok {
		t.Fatal("registered probe not found")
	}
	if res := got(context.Background(), Params{}); res.Protocol != "fake" {
		t.Errorf("wrong probe returned")
	}

	if !slices.Contains(Names(), "fake-proto") {
		t.Errorf("Names() missing registration: %v", Names())
	}
	if _, ok := Lookup("never-registered"); ok {
		t.Error("lookup of unknown name succeeded")
	}
}

func TestNewDeadline_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Params{Timeout: 10 * time.Second}

	d := p.NewDeadline(ctx)
	defer d.Cancel()

	cancel()
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("context cancellation did not reach the deadline")
	}
}

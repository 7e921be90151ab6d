// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package probe defines the shared surface of every protocol probe: the
// connection parameters a caller supplies, the Result a probe returns, and
// the registry the request layer uses to find probes by name. A probe is
// one connection, one bounded exchange, one Result — no pooling, no
// retries, no streaming.
package probe

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

// DefaultTimeout is the wall-clock budget applied when a caller leaves
// Params.Timeout unset.
const DefaultTimeout = 10 * time.Second

// Params describes the endpoint a probe targets and its overall budget.
type Params struct {
	// Host is the hostname or address to probe.
	Host string

	// Port is the TCP port. Zero selects the protocol's default port.
	Port int

	// Mode selects plain TCP or implicit TLS. Empty means plain.
	Mode session.TransportMode

	// Timeout is the outer wall-clock budget for the whole probe,
	// connect included. Zero or negative is replaced with DefaultTimeout.
	Timeout time.Duration

	// TLSConfig overrides the TLS client configuration for implicit TLS.
	TLSConfig *tls.Config

	// Logger is the structured logger for the probe. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
}

// Budget returns the effective outer timeout.
func (p *Params) Budget() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// SessionConfig builds the session configuration for this target,
// applying defaultPort when the caller left Port zero.
func (p *Params) SessionConfig(protocol string, defaultPort int) *session.Config {
	port := p.Port
	if port == 0 {
		port = defaultPort
	}
	mode := p.Mode
	if mode == "" {
		mode = session.ModePlain
	}
	return &session.Config{
		Host:      p.Host,
		Port:      port,
		Mode:      mode,
		TLSConfig: p.TLSConfig,
		Protocol:  protocol,
		Logger:    p.Logger,
	}
}

// Target returns the host:port string the probe will dial.
func (p *Params) Target(defaultPort int) string {
	port := p.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// Func is a registered probe entry point.
type Func func(ctx context.Context, p Params) Result

// BlockPredicate is the request layer's pre-flight check for hosts that
// must not be probed (edge IPs, private ranges, deny lists). The engine
// never calls it; callers apply it before invoking a Func.
type BlockPredicate func(host string) bool

var registry = map[string]Func{}

// Register adds a probe under its protocol name. Later registrations for
// the same name replace earlier ones.
func Register(name string, fn Func) {
	registry[name] = fn
}

// Lookup returns the probe registered under name.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names returns the registered protocol names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDeadline creates the probe's outer deadline from its parameters and
// the caller's context. The caller must Cancel it when the probe returns.
func (p *Params) NewDeadline(ctx context.Context) *deadline.Deadline {
	return deadline.FromContext(ctx, p.Budget())
}

// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
)

// TransportMode selects how the stream is established.
type TransportMode string

const (
	// ModePlain is a raw TCP stream.
	ModePlain TransportMode = "plain"

	// ModeImplicitTLS performs a TLS handshake immediately on connect,
	// before any application bytes are exchanged.
	ModeImplicitTLS TransportMode = "tls"
)

// Config describes the connection a probe wants.
type Config struct {
	// Host is the hostname or address to dial.
	Host string

	// Port is the TCP port to dial.
	Port int

	// Mode selects plain TCP or implicit TLS.
	Mode TransportMode

	// TLSConfig is the TLS client configuration for ModeImplicitTLS. If
	// nil, a default with the host as ServerName and TLS 1.2 minimum is
	// used.
	TLSConfig *tls.Config

	// Protocol labels the session in logs (e.g. "nntp", "bitcoin").
	Protocol string

	// Logger is the structured logger for the session. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
}

// Session is one connection with exclusive read ownership. It is created
// by Open, used by exactly one handshake, and closed exactly once on every
// exit path. Expiry of the governing deadline closes the transport
// actively so a slow or silent peer cannot hold OS resources past the
// caller's budget.
type Session struct {
	conn        net.Conn
	logger      *slog.Logger
	protocol    string
	connectTime time.Duration

	stopWatch func() bool

	mu         sync.Mutex
	reader     *Reader
	readerBusy bool

	closeOnce sync.Once
	closeErr  error
}

// Open dials the configured endpoint under the given deadline and returns
// a live session. For ModeImplicitTLS the TLS handshake is part of the
// same budget. On any failure the underlying socket is already closed.
func Open(cfg *Config, d *deadline.Deadline) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	start := time.Now()

	dialer := &net.Dialer{Deadline: d.Time()}
	conn, err := dialer.DialContext(d.Context(), "tcp", addr)
	if err != nil {
		return nil, classifyConnect(err, d)
	}

	if cfg.Mode == ModeImplicitTLS {
		tlsCfg := cfg.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{
				ServerName: cfg.Host,
				MinVersion: tls.VersionTLS12,
			}
		}
		tlsConn := tls.Client(conn, tlsCfg)
		if err := tlsConn.HandshakeContext(d.Context()); err != nil {
			conn.Close()
			return nil, classifyConnect(fmt.Errorf("tls handshake: %w", err), d)
		}
		conn = tlsConn
	}

	s := &Session{
		conn:        conn,
		logger:      logger,
		protocol:    cfg.Protocol,
		connectTime: time.Since(start),
	}
	s.reader = &Reader{session: s}

	// Active teardown: when the deadline fires, close the transport so
	// any blocked read or write fails immediately. Close deregisters the
	// hook via stopWatch.
	s.stopWatch = context.AfterFunc(d.Context(), func() {
		s.logger.Debug("deadline fired, closing transport",
			"protocol", s.protocol, "remote", conn.RemoteAddr())
		s.closeConn()
	})

	logger.Debug("session open",
		"protocol", cfg.Protocol, "remote", conn.RemoteAddr(),
		"mode", cfg.Mode, "connect_time", s.connectTime)
	return s, nil
}

// ConnectTime returns how long dial (and TLS handshake, if any) took.
func (s *Session) ConnectTime() time.Duration {
	return s.connectTime
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// NetConn exposes the underlying stream for protocol layers that wrap
// the whole connection themselves (an SSH or TLS library doing its own
// record framing). Calling it transfers read/write ownership to the
// wrapper; the session's Reader must not be used afterward. The session
// keeps its close duties: deadline teardown and Close still apply.
func (s *Session) NetConn() net.Conn {
	return s.conn
}

// TLSState returns the TLS connection state when the session was opened
// with ModeImplicitTLS, and false otherwise.
func (s *Session) TLSState() (tls.ConnectionState, bool) {
	if tc, ok := s.conn.(*tls.Conn); ok {
		return tc.ConnectionState(), true
	}
	return tls.ConnectionState{}, false
}

// Send writes p to the peer before the deadline elapses.
func (s *Session) Send(p []byte, d *deadline.Deadline) error {
	if err := s.conn.SetWriteDeadline(d.Time()); err != nil {
		return fmt.Errorf("%w: set write deadline: %w", ErrIO, err)
	}
	if _, err := s.conn.Write(p); err != nil {
		return classifyIO(err, d)
	}
	return nil
}

// Reader acquires the session's read handle. Ownership is exclusive and
// non-reentrant: a second acquisition while one is outstanding fails with
// ErrReaderBusy. Release the handle when the read sequence is done; any
// unconsumed bytes carry over to the next acquisition.
func (s *Session) Reader() (*Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readerBusy {
		return nil, ErrReaderBusy
	}
	s.readerBusy = true
	return s.reader, nil
}

// Close shuts down the connection and releases the deadline teardown hook.
// It is safe to call any number of times, on any exit path; only the first
// call closes the socket.
func (s *Session) Close() error {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	return s.closeConn()
}

func (s *Session) closeConn() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		s.logger.Debug("session closed", "protocol", s.protocol)
	})
	return s.closeErr
}

func (s *Session) releaseReader() {
	s.mu.Lock()
	s.readerBusy = false
	s.mu.Unlock()
}

// classifyConnect maps dial and TLS handshake failures onto the engine
// taxonomy: an expired deadline is ErrTimeout, everything else ErrConnect.
func classifyConnect(err error, d *deadline.Deadline) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) ||
		d.Expired() {
		return fmt.Errorf("%w: connect: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrConnect, err)
}

// classifyIO maps stream read/write failures: deadline expiry is
// ErrTimeout, anything else ErrIO. A "use of closed connection" error
// after the deadline teardown hook has run counts as a timeout too, since
// the hook is what closed the socket. End-of-stream handling is the read
// loop's concern, not classifyIO's.
func classifyIO(err error, d *deadline.Deadline) error {
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) ||
		(errors.Is(err, net.ErrClosed) && d.Expired()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}

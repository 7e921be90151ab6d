// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package session owns exactly one transport connection per probe: a plain
// or implicit-TLS TCP stream opened under a deadline, written through Send,
// and read through an exclusively-owned Reader that reassembles bytes
// across arbitrary segmentation. The connection is torn down actively when
// the governing deadline fires and Close is an idempotent no-op thereafter.
package session

import "errors"

// Sentinel errors for the session package.
var (
	// ErrConnect indicates the TCP or TLS connection could not be established.
	ErrConnect = errors.New("session: connection failed")

	// ErrTimeout indicates a deadline expired during connect, send, or read.
	ErrTimeout = errors.New("session: operation timeout")

	// ErrTruncated indicates the stream ended before the declared byte count
	// arrived. A short read is never surfaced as success.
	ErrTruncated = errors.New("session: truncated stream")

	// ErrResourceLimit indicates a read hit its hard size ceiling before the
	// expected terminator appeared.
	ErrResourceLimit = errors.New("session: size ceiling exceeded")

	// ErrReaderBusy indicates a second Reader acquisition was attempted while
	// one is already outstanding.
	ErrReaderBusy = errors.New("session: reader already acquired")

	// ErrClosed indicates an operation was attempted on a closed session.
	ErrClosed = errors.New("session: closed")

	// ErrIO indicates a transport-level read or write failure that is neither
	// a timeout nor a truncation.
	ErrIO = errors.New("session: i/o failure")
)

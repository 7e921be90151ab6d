// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package wire provides pure, I/O-free decode and encode helpers for the
// binary and line-oriented protocols the probes speak: fixed-width
// integers, tagged variable-length integers, length-prefixed strings, TLV
// segments, and checksums. Every read is bounds-checked against the
// supplied buffer and fails closed; no helper ever returns an
// out-of-range slice.
package wire

import "errors"

// Sentinel errors for the wire package.
var (
	// ErrShortBuffer indicates a decode needed more bytes than the buffer holds.
	ErrShortBuffer = errors.New("wire: short buffer")

	// ErrWidth indicates an unsupported integer width was requested.
	ErrWidth = errors.New("wire: unsupported integer width")

	// ErrOverflow indicates a value does not fit the requested encoding width.
	ErrOverflow = errors.New("wire: value overflows width")

	// ErrAlgorithm indicates an unknown checksum algorithm was requested.
	ErrAlgorithm = errors.New("wire: unknown checksum algorithm")
)

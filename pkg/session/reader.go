// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pocc/portofcall-sub007/pkg/deadline"
)

// readChunkSize is the size of one underlying conn.Read. Small enough
// that a trickling peer cannot make a single Read block past its share of
// the budget, large enough to keep syscall count reasonable.
const readChunkSize = 4096

// UnstuffFunc rewrites one body line while a block read accumulates it,
// undoing the escape-prefixing a protocol applies to lines that would
// otherwise look like the end marker.
type UnstuffFunc func(line []byte) []byte

// DotUnstuff undoes RFC 977/5321-style dot-stuffing: a body line starting
// with two dots loses the first one.
func DotUnstuff(line []byte) []byte {
	if len(line) >= 2 && line[0] == '.' && line[1] == '.' {
		return line[1:]
	}
	return line
}

// Reader is the session's exclusively-owned read handle. All three read
// primitives share one chunk loop: every underlying read is bounded by
// the supplied deadline, and bytes arriving past what an operation
// consumed are retained for the next one, so arbitrary TCP segmentation
// never changes what a caller observes.
type Reader struct {
	session *Session
	pending []byte
	eof     bool
}

// Release returns the handle to the session. Unconsumed bytes are kept
// for the next acquisition.
func (r *Reader) Release() {
	r.session.releaseReader()
}

// Buffered returns how many reassembled bytes are waiting unconsumed.
func (r *Reader) Buffered() int {
	return len(r.pending)
}

// fill performs one underlying read under the deadline and appends
// whatever arrived to the pending buffer. End of stream is recorded, not
// returned as an error; the primitives decide what EOF means for them.
func (r *Reader) fill(d *deadline.Deadline) error {
	if r.eof {
		return io.EOF
	}
	if err := r.session.conn.SetReadDeadline(d.Time()); err != nil {
		return fmt.Errorf("%w: set read deadline: %w", ErrIO, err)
	}
	chunk := make([]byte, readChunkSize)
	n, err := r.session.conn.Read(chunk)
	if n > 0 {
		r.pending = append(r.pending, chunk[:n]...)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.eof = true
			return io.EOF
		}
		return classifyIO(err, d)
	}
	return nil
}

// take removes and returns the first n pending bytes. The returned slice
// is a copy; the pending buffer is reused.
func (r *Reader) take(n int) []byte {
	out := make([]byte, n)
	copy(out, r.pending)
	r.pending = r.pending[:copy(r.pending, r.pending[n:])]
	return out
}

// ReadExact accumulates exactly n bytes, across as many underlying reads
// as the peer's segmentation requires. End of stream before n bytes is
// ErrTruncated carrying the byte counts; a short buffer is never returned
// as success.
func (r *Reader) ReadExact(n int, d *deadline.Deadline) ([]byte, error) {
	for len(r.pending) < n {
		if err := r.fill(d); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: got %d of %d bytes before stream end",
					ErrTruncated, len(r.pending), n)
			}
			return nil, err
		}
	}
	return r.take(n), nil
}

// ReadLine accumulates until the terminator byte sequence appears and
// returns the line without it. The scan operates on raw bytes so a
// terminator is found even when segmentation splits it, and multi-byte
// text encodings are never re-counted through a decode step. A line
// exceeding max bytes before its terminator fails with ErrResourceLimit;
// end of stream mid-line is ErrTruncated.
func (r *Reader) ReadLine(term []byte, max int, d *deadline.Deadline) ([]byte, error) {
	if len(term) == 0 {
		return nil, fmt.Errorf("%w: empty terminator", ErrIO)
	}
	scanned := 0
	for {
		// Resume the scan where the last one left off, minus the bytes a
		// straddling terminator could have parked at the boundary.
		from := scanned - (len(term) - 1)
		if from < 0 {
			from = 0
		}
		if i := bytes.Index(r.pending[from:], term); i >= 0 {
			line := r.take(from + i + len(term))
			return line[:len(line)-len(term)], nil
		}
		scanned = len(r.pending)
		if scanned > max {
			return nil, fmt.Errorf("%w: no terminator within %d bytes", ErrResourceLimit, max)
		}
		if err := r.fill(d); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: stream ended %d bytes into an unterminated line",
					ErrTruncated, len(r.pending))
			}
			return nil, err
		}
	}
}

// ReadBlock accumulates CRLF-terminated lines until a line equal to
// endLine arrives, applying unstuff to each body line. The end line is
// consumed but not returned. max is a hard ceiling on the total raw bytes
// read; a body that never produces the end marker within it fails with
// ErrResourceLimit instead of growing without bound.
func (r *Reader) ReadBlock(endLine []byte, max int, unstuff UnstuffFunc, d *deadline.Deadline) ([][]byte, error) {
	var (
		lines [][]byte
		total int
	)
	for {
		line, err := r.ReadLine([]byte("\r\n"), max-total, d)
		if err != nil {
			return nil, err
		}
		total += len(line) + 2
		if total > max {
			return nil, fmt.Errorf("%w: block exceeds %d bytes", ErrResourceLimit, max)
		}
		if bytes.Equal(line, endLine) {
			return lines, nil
		}
		if unstuff != nil {
			line = unstuff(line)
		}
		lines = append(lines, line)
	}
}

// ReadAvailable reads whatever arrives until the deadline or byte ceiling
// is reached and returns it without failing on timeout. It exists for
// protocols that stream indefinitely (character generators, banners of
// unknown length) where "we sampled this much" is the desired outcome.
// End of stream simply ends the sample.
func (r *Reader) ReadAvailable(max int, d *deadline.Deadline) ([]byte, error) {
	for len(r.pending) < max {
		if err := r.fill(d); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrTimeout) {
				break
			}
			return nil, err
		}
	}
	n := len(r.pending)
	if n > max {
		n = max
	}
	return r.take(n), nil
}

// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"
)

// acquire fails the test if the reader handle is unavailable.
func acquire(t *testing.T, sess *Session) *Reader {
	t.Helper()
	r, err := sess.Reader()
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

// writeChunked delivers payload in the given chunk sizes with a small
// pause between chunks, forcing the reader to reassemble across
// segmentation boundaries.
func writeChunked(c net.Conn, payload []byte, chunks []int) {
	off := 0
	for _, n := range chunks {
		c.Write(payload[off : off+n])
		off += n
		time.Sleep(5 * time.Millisecond)
	}
	if off < len(payload) {
		c.Write(payload[off:])
	}
}

func TestReadExact_FragmentationInvariance(t *testing.T) {
	payload := []byte("twenty-four byte payload")
	if len(payload) != 24 {
		t.Fatalf("fixture is %d bytes", len(payload))
	}

	chunkings := [][]int{
		{24},
		{1, 23},
		{23, 1},
		{12, 12},
		{1, 1, 1, 21},
		{5, 5, 5, 5, 4},
		{2, 3, 5, 7, 7},
	}

	for _, chunks := range chunkings {
		chunks := chunks
		sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
			defer c.Close()
			writeChunked(c, payload, chunks)
		})

		r := acquire(t, sess)
		got, err := r.ReadExact(24, d)
		if err != nil {
			t.Fatalf("chunking %v: %v", chunks, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("chunking %v: got %q", chunks, got)
		}
		sess.Close()
	}
}

func TestReadExact_SlowPeerTwoChunkHeader(t *testing.T) {
	// A 24-byte fixed header delivered as 1 byte, a delay, then 23.
	header := make([]byte, 24)
	copy(header, "HDR!")
	binary.BigEndian.PutUint32(header[4:8], 0xdeadbeef)
	binary.BigEndian.PutUint64(header[8:16], 42)

	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		defer c.Close()
		c.Write(header[:1])
		time.Sleep(100 * time.Millisecond)
		c.Write(header[1:])
	})

	r := acquire(t, sess)
	got, err := r.ReadExact(24, d)
	if err != nil {
		t.Fatalf("ReadExact: %v", err)
	}
	if !bytes.Equal(got, header) {
		t.Fatalf("got %x", got)
	}
	if binary.BigEndian.Uint32(got[4:8]) != 0xdeadbeef || binary.BigEndian.Uint64(got[8:16]) != 42 {
		t.Error("parsed header fields are wrong")
	}
}

func TestReadExact_TruncatedStream(t *testing.T) {
	// 10 bytes of a declared 24 arrive, then the peer closes.
	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		c.Write([]byte("0123456789"))
		c.Close()
	})

	r := acquire(t, sess)
	_, err := r.ReadExact(24, d)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestReadExact_LeftoverCarriesToNextRead(t *testing.T) {
	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		defer c.Close()
		c.Write([]byte("firstsecond"))
	})

	r := acquire(t, sess)
	first, err := r.ReadExact(5, d)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.ReadExact(6, d)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != "first" || string(second) != "second" {
		t.Errorf("got %q, %q", first, second)
	}
}

func TestReadLine_TerminatorStraddlesChunks(t *testing.T) {
	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		defer c.Close()
		// CRLF split across two writes.
		c.Write([]byte("200 ok\r"))
		time.Sleep(20 * time.Millisecond)
		c.Write([]byte("\nnext"))
	})

	r := acquire(t, sess)
	line, err := r.ReadLine([]byte("\r\n"), 1024, d)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if string(line) != "200 ok" {
		t.Errorf("got %q", line)
	}
	rest, err := r.ReadExact(4, d)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "next" {
		t.Errorf("leftover %q, want %q", rest, "next")
	}
}

func TestReadLine_RawBytesNotText(t *testing.T) {
	// Multi-byte UTF-8 before the terminator must come back untouched.
	payload := []byte("héllo wörld\r\n")
	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		defer c.Close()
		writeChunked(c, payload, []int{3, 4, 6})
	})

	r := acquire(t, sess)
	line, err := r.ReadLine([]byte("\r\n"), 1024, d)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(line, payload[:len(payload)-2]) {
		t.Errorf("got %x", line)
	}
}

func TestReadLine_CeilingWithoutTerminator(t *testing.T) {
	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		defer c.Close()
		junk := bytes.Repeat([]byte("x"), 8192)
		c.Write(junk)
	})

	r := acquire(t, sess)
	_, err := r.ReadLine([]byte("\r\n"), 1024, d)
	if !errors.Is(err, ErrResourceLimit) {
		t.Fatalf("expected ErrResourceLimit, got %v", err)
	}
}

func TestReadLine_EOFMidLine(t *testing.T) {
	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		c.Write([]byte("no terminator here"))
		c.Close()
	})

	r := acquire(t, sess)
	_, err := r.ReadLine([]byte("\r\n"), 1024, d)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestReadBlock_DotUnstuffing(t *testing.T) {
	body := "line one\r\n" +
		"..leading dot preserved as one\r\n" +
		"line three\r\n" +
		".\r\n" +
		"after"
	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		defer c.Close()
		c.Write([]byte(body))
	})

	r := acquire(t, sess)
	lines, err := r.ReadBlock([]byte("."), 4096, DotUnstuff, d)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}

	want := []string{"line one", ".leading dot preserved as one", "line three"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	for i, w := range want {
		if string(lines[i]) != w {
			t.Errorf("line %d: got %q, want %q", i, lines[i], w)
		}
	}
	// The end marker is consumed; bytes after it are not.
	rest, err := r.ReadExact(len("after"), d)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "after" {
		t.Errorf("bytes after the block: %q", rest)
	}
}

func TestReadBlock_CeilingWithoutEndMarker(t *testing.T) {
	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		defer c.Close()
		// An endless body that never contains the terminating dot line.
		line := append(bytes.Repeat([]byte("y"), 70), '\r', '\n')
		for i := 0; i < 1000; i++ {
			if _, err := c.Write(line); err != nil {
				return
			}
		}
	})

	r := acquire(t, sess)
	_, err := r.ReadBlock([]byte("."), 8*1024, DotUnstuff, d)
	if !errors.Is(err, ErrResourceLimit) {
		t.Fatalf("expected ErrResourceLimit, got %v", err)
	}
}

func TestReadAvailable_SamplesUntilEOF(t *testing.T) {
	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		c.Write([]byte("short banner"))
		c.Close()
	})

	r := acquire(t, sess)
	got, err := r.ReadAvailable(1024, d)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "short banner" {
		t.Errorf("got %q", got)
	}
}

func TestReadAvailable_CeilingStopsEndlessStream(t *testing.T) {
	sess, d := openTest(t, 5*time.Second, func(c net.Conn) {
		defer c.Close()
		row := bytes.Repeat([]byte("z"), 64)
		for {
			if _, err := c.Write(row); err != nil {
				return
			}
		}
	})

	r := acquire(t, sess)
	got, err := r.ReadAvailable(512, d)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 512 {
		t.Errorf("sampled %d bytes, want 512", len(got))
	}
}

func TestDotUnstuff(t *testing.T) {
	cases := map[string]string{
		"..stuffed": ".stuffed",
		".single":   ".single",
		"plain":     "plain",
		"":          "",
		"...":       "..",
	}
	for in, want := range cases {
		if got := DotUnstuff([]byte(in)); string(got) != want {
			t.Errorf("DotUnstuff(%q) = %q, want %q", in, got, want)
		}
	}
}

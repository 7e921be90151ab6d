// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Varint marker bytes for the tagged compact encoding: values below
// MarkerU16 are stored in the marker byte itself; otherwise the marker
// selects a 2, 4, or 8 byte little-endian payload.
const (
	MarkerU16 = 0xfd
	MarkerU32 = 0xfe
	MarkerU64 = 0xff
)

// ReadUint decodes a fixed-width unsigned integer from the front of b.
// Width must be 1, 2, 4, or 8. Fails with ErrShortBuffer when b holds
// fewer than width bytes.
func ReadUint(b []byte, width int, order binary.ByteOrder) (uint64, error) {
	if len(b) < width {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, width, len(b))
	}
	switch width {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(order.Uint16(b)), nil
	case 4:
		return uint64(order.Uint32(b)), nil
	case 8:
		return order.Uint64(b), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrWidth, width)
	}
}

// AppendUint appends v to dst as a fixed-width unsigned integer. Fails
// with ErrOverflow when v does not fit width bits.
func AppendUint(dst []byte, v uint64, width int, order binary.ByteOrder) ([]byte, error) {
	switch width {
	case 1:
		if v > math.MaxUint8 {
			return nil, fmt.Errorf("%w: %d in 1 byte", ErrOverflow, v)
		}
		return append(dst, byte(v)), nil
	case 2:
		if v > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %d in 2 bytes", ErrOverflow, v)
		}
		var buf [2]byte
		order.PutUint16(buf[:], uint16(v))
		return append(dst, buf[:]...), nil
	case 4:
		if v > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %d in 4 bytes", ErrOverflow, v)
		}
		var buf [4]byte
		order.PutUint32(buf[:], uint32(v))
		return append(dst, buf[:]...), nil
	case 8:
		var buf [8]byte
		order.PutUint64(buf[:], v)
		return append(dst, buf[:]...), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrWidth, width)
	}
}

// ReadVarint decodes a tagged variable-length integer from the front of b
// and returns the value and the number of bytes consumed. The 8-byte form
// decodes the full 64-bit value; callers needing the legacy 32-bit
// truncation must use ReadVarint32 explicitly.
func ReadVarint(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("%w: empty varint", ErrShortBuffer)
	}
	switch marker := b[0]; marker {
	case MarkerU16:
		v, err := ReadUint(b[1:], 2, binary.LittleEndian)
		if err != nil {
			return 0, 0, fmt.Errorf("varint u16: %w", err)
		}
		return v, 3, nil
	case MarkerU32:
		v, err := ReadUint(b[1:], 4, binary.LittleEndian)
		if err != nil {
			return 0, 0, fmt.Errorf("varint u32: %w", err)
		}
		return v, 5, nil
	case MarkerU64:
		v, err := ReadUint(b[1:], 8, binary.LittleEndian)
		if err != nil {
			return 0, 0, fmt.Errorf("varint u64: %w", err)
		}
		return v, 9, nil
	default:
		return uint64(marker), 1, nil
	}
}

// ReadVarint32 decodes a tagged varint and truncates the result to its low
// 32 bits. This exists only for protocols whose reference peers are known
// to consume 32 bits of the 8-byte form; new callers want ReadVarint.
func ReadVarint32(b []byte) (uint32, int, error) {
	v, n, err := ReadVarint(b)
	if err != nil {
		return 0, 0, err
	}
	return uint32(v), n, nil
}

// AppendVarint appends v to dst in the shortest tagged form.
func AppendVarint(dst []byte, v uint64) []byte {
	switch {
	case v < MarkerU16:
		return append(dst, byte(v))
	case v <= math.MaxUint16:
		return binary.LittleEndian.AppendUint16(append(dst, MarkerU16), uint16(v))
	case v <= math.MaxUint32:
		return binary.LittleEndian.AppendUint32(append(dst, MarkerU32), uint32(v))
	default:
		return binary.LittleEndian.AppendUint64(append(dst, MarkerU64), v)
	}
}

// ReadString decodes a length-prefixed byte string starting at off. The
// length prefix is a fixed-width integer of lenWidth bytes in the given
// order. Returns the string bytes and the offset just past them.
func ReadString(b []byte, off, lenWidth int, order binary.ByteOrder) ([]byte, int, error) {
	if off < 0 || off > len(b) {
		return nil, 0, fmt.Errorf("%w: offset %d of %d", ErrShortBuffer, off, len(b))
	}
	n, err := ReadUint(b[off:], lenWidth, order)
	if err != nil {
		return nil, 0, fmt.Errorf("string length: %w", err)
	}
	start := off + lenWidth
	if n > uint64(len(b)-start) {
		return nil, 0, fmt.Errorf("%w: declared string length %d exceeds %d remaining",
			ErrShortBuffer, n, len(b)-start)
	}
	end := start + int(n)
	return b[start:end], end, nil
}

// ReadVarString decodes a varint-length-prefixed byte string starting at
// off, the form used by bitcoin-style wire messages.
func ReadVarString(b []byte, off int) ([]byte, int, error) {
	if off < 0 || off > len(b) {
		return nil, 0, fmt.Errorf("%w: offset %d of %d", ErrShortBuffer, off, len(b))
	}
	n, consumed, err := ReadVarint(b[off:])
	if err != nil {
		return nil, 0, fmt.Errorf("varstring length: %w", err)
	}
	start := off + consumed
	if n > uint64(len(b)-start) {
		return nil, 0, fmt.Errorf("%w: declared string length %d exceeds %d remaining",
			ErrShortBuffer, n, len(b)-start)
	}
	end := start + int(n)
	return b[start:end], end, nil
}

// TLV is one decoded type-length-value segment: a 1-byte type, a 2-byte
// big-endian length, and the value bytes.
type TLV struct {
	Type  uint8
	Value []byte
}

// ReadTLV decodes the TLV segment starting at off and returns it along
// with the offset of the next segment. The declared length is checked
// against the remaining buffer before any slicing; a hostile length can
// produce an error, never an out-of-bounds read.
func ReadTLV(b []byte, off int) (TLV, int, error) {
	if off < 0 || off > len(b) {
		return TLV{}, 0, fmt.Errorf("%w: offset %d of %d", ErrShortBuffer, off, len(b))
	}
	rem := b[off:]
	if len(rem) < 3 {
		return TLV{}, 0, fmt.Errorf("%w: TLV header needs 3 bytes, have %d", ErrShortBuffer, len(rem))
	}
	length := int(binary.BigEndian.Uint16(rem[1:3]))
	if length > len(rem)-3 {
		return TLV{}, 0, fmt.Errorf("%w: declared TLV length %d exceeds %d remaining",
			ErrShortBuffer, length, len(rem)-3)
	}
	next := off + 3 + length
	return TLV{Type: rem[0], Value: rem[3 : 3+length]}, next, nil
}

// AppendTLV appends a TLV segment to dst. Fails with ErrOverflow when the
// value exceeds the 2-byte length field.
func AppendTLV(dst []byte, typ uint8, value []byte) ([]byte, error) {
	if len(value) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: TLV value %d bytes", ErrOverflow, len(value))
	}
	dst = append(dst, typ)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(value)))
	return append(dst, value...), nil
}

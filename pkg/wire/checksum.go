// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package wire

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// ChecksumAlgorithm identifies a payload checksum scheme. Verification is a
// deliberate, first-class operation: a handler that parses a checksum field
// and never calls VerifyChecksum is visibly skipping the check.
type ChecksumAlgorithm string

const (
	// ChecksumCRC32 is CRC-32 with the IEEE polynomial, big-endian, 4 bytes.
	ChecksumCRC32 ChecksumAlgorithm = "crc32"

	// ChecksumSHA256 is a full 32-byte SHA-256 digest.
	ChecksumSHA256 ChecksumAlgorithm = "sha256"

	// ChecksumDoubleSHA4 is the first 4 bytes of SHA-256(SHA-256(payload)),
	// the scheme used by bitcoin-style message headers.
	ChecksumDoubleSHA4 ChecksumAlgorithm = "dsha256-4"
)

// Checksum computes the digest of payload under the named algorithm.
func Checksum(alg ChecksumAlgorithm, payload []byte) ([]byte, error) {
	switch alg {
	case ChecksumCRC32:
		sum := make([]byte, 4)
		binary.BigEndian.PutUint32(sum, crc32.ChecksumIEEE(payload))
		return sum, nil
	case ChecksumSHA256:
		sum := sha256.Sum256(payload)
		return sum[:], nil
	case ChecksumDoubleSHA4:
		first := sha256.Sum256(payload)
		second := sha256.Sum256(first[:])
		return second[:4], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrAlgorithm, alg)
	}
}

// VerifyChecksum reports whether expected matches the digest of payload
// under the named algorithm. Comparison is constant-time. An unknown
// algorithm or wrong-length digest verifies as false.
func VerifyChecksum(alg ChecksumAlgorithm, payload, expected []byte) bool {
	sum, err := Checksum(alg, payload)
	if err != nil || len(sum) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(sum, expected) == 1
}

// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestChecksum_KnownLengths(t *testing.T) {
	payload := []byte("the quick brown fox")
	lengths := map[ChecksumAlgorithm]int{
		ChecksumCRC32:      4,
		ChecksumSHA256:     32,
		ChecksumDoubleSHA4: 4,
	}
	for alg, want := range lengths {
		sum, err := Checksum(alg, payload)
		if err != nil {
			t.Fatalf("%s: %v", alg, err)
		}
		if len(sum) != want {
			t.Errorf("%s: digest is %d bytes, want %d", alg, len(sum), want)
		}
	}
}

func TestChecksum_UnknownAlgorithm(t *testing.T) {
	if _, err := Checksum("md5", nil); !errors.Is(err, ErrAlgorithm) {
		t.Errorf("expected ErrAlgorithm, got %v", err)
	}
}

func TestVerifyChecksum_AcceptsUnmodifiedPayload(t *testing.T) {
	payload := []byte("version handshake payload")
	for _, alg := range []ChecksumAlgorithm{ChecksumCRC32, ChecksumSHA256, ChecksumDoubleSHA4} {
		sum, err := Checksum(alg, payload)
		if err != nil {
			t.Fatal(err)
		}
		if !VerifyChecksum(alg, payload, sum) {
			t.Errorf("%s: rejected unmodified payload", alg)
		}
	}
}

func TestVerifyChecksum_RejectsEverySingleBitFlip(t *testing.T) {
	payload := []byte("integrity matters")
	for _, alg := range []ChecksumAlgorithm{ChecksumCRC32, ChecksumSHA256, ChecksumDoubleSHA4} {
		sum, err := Checksum(alg, payload)
		if err != nil {
			t.Fatal(err)
		}
		for i := range payload {
			for bit := 0; bit < 8; bit++ {
				flipped := bytes.Clone(payload)
				flipped[i] ^= 1 << bit
				if VerifyChecksum(alg, flipped, sum) {
					t.Fatalf("%s: accepted payload with byte %d bit %d flipped", alg, i, bit)
				}
			}
		}
	}
}

func TestVerifyChecksum_RejectsWrongLengthDigest(t *testing.T) {
	payload := []byte("payload")
	sum, err := Checksum(ChecksumCRC32, payload)
	if err != nil {
		t.Fatal(err)
	}
	if VerifyChecksum(ChecksumCRC32, payload, sum[:3]) {
		t.Error("accepted a truncated digest")
	}
	if VerifyChecksum("md5", payload, sum) {
		t.Error("accepted an unknown algorithm")
	}
}

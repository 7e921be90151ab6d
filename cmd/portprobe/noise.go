// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pocc/portofcall-sub007/pkg/probe/noisex"
)

var noiseServerKey string

// noiseCmd probes a Noise_NK responder.
var noiseCmd = &cobra.Command{
	Use:   "noise HOST[:PORT]",
	Short: "Noise_NK: run the 2-message handshake against a known static key",
	Long: `Run the Noise_NK handshake (Noise_NK_25519_ChaChaPoly_SHA256, 2-byte
length-prefixed frames) against a responder whose static public key is
known. Completion proves the peer holds the matching private key.
Default port: 8445.`,
	Args: cobra.ExactArgs(1),
	RunE: runNoise,
}

func init() {
	noiseCmd.Flags().StringVarP(&noiseServerKey, "server-key", "k", "", "hex-encoded server Curve25519 static public key (required)")
	noiseCmd.MarkFlagRequired("server-key")
	rootCmd.AddCommand(noiseCmd)
}

func runNoise(cmd *cobra.Command, args []string) error {
	params, err := buildParams(args[0])
	if err != nil {
		return err
	}
	if hostBlocked(params.Host) {
		return fmt.Errorf("%w: %s (use --allow-private to override)", ErrHostBlocked, params.Host)
	}

	key, err := hex.DecodeString(noiseServerKey)
	if err != nil {
		return fmt.Errorf("%w: decode server key: %w", ErrInvalidInput, err)
	}
	if len(key) != 32 {
		return fmt.Errorf("%w: server key must be 32 bytes, got %d", ErrInvalidInput, len(key))
	}
	return emitResult(noisex.Probe(cmd.Context(), params, key))
}

// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/probe/finger"
)

var fingerUser string

// fingerCmd probes an RFC 1288 finger service, optionally for a specific
// user.
var fingerCmd = &cobra.Command{
	Use:   "finger HOST[:PORT]",
	Short: "RFC 1288 finger service: send a query, collect the response",
	Long: `Send a finger query and collect the response until the server closes.
With --user the query names one user; without it the server's user list
is requested. Default port: 79.`,
	Args: cobra.ExactArgs(1),
	RunE: runFinger,
}

func init() {
	fingerCmd.Flags().StringVarP(&fingerUser, "user", "u", "", "user to query (default: list users)")
	rootCmd.AddCommand(fingerCmd)
	probe.Register("finger", finger.Probe)
}

func runFinger(cmd *cobra.Command, args []string) error {
	params, err := buildParams(args[0])
	if err != nil {
		return err
	}
	if hostBlocked(params.Host) {
		return fmt.Errorf("%w: %s (use --allow-private to override)", ErrHostBlocked, params.Host)
	}
	return emitResult(finger.ProbeQuery(cmd.Context(), params, fingerUser))
}

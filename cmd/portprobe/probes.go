// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/probe/bitcoin"
	"github.com/pocc/portofcall-sub007/pkg/probe/nntp"
	"github.com/pocc/portofcall-sub007/pkg/probe/simple"
	"github.com/pocc/portofcall-sub007/pkg/probe/sshx"
)

// registeredProbes wires the flag-free probes into the registry and
// describes their commands. Probes needing extra flags (finger, dns,
// noise) have dedicated command files.
var registeredProbes = []struct {
	name  string
	short string
	port  int
	fn    probe.Func
}{
	{"echo", "RFC 862 echo service: send a payload, verify the exact bytes return", simple.EchoPort, simple.Echo},
	{"discard", "RFC 863 discard service: send a payload, confirm the peer stays silent", simple.DiscardPort, simple.Discard},
	{"daytime", "RFC 867 daytime service: read the human-readable timestamp line", simple.DaytimePort, simple.Daytime},
	{"chargen", "RFC 864 character generator: sample the continuous stream", simple.ChargenPort, simple.Chargen},
	{"time", "RFC 868 time service: read the 32-bit binary timestamp", simple.TimePort, simple.Time},
	{"nntp", "NNTP: read the greeting and capability list, then quit", nntp.DefaultPort, nntp.Probe},
	{"bitcoin", "Bitcoin p2p: version/verack handshake, report peer-declared fields", bitcoin.DefaultPort, bitcoin.Probe},
	{"ssh", "SSH: key exchange only, capture host key type and fingerprint", sshx.DefaultPort, sshx.Probe},
}

func init() {
	for _, entry := range registeredProbes {
		probe.Register(entry.name, entry.fn)
		rootCmd.AddCommand(&cobra.Command{
			Use:   entry.name + " HOST[:PORT]",
			Short: entry.short,
			Long: fmt.Sprintf("%s.\n\nDefault port: %d. One connection, one exchange, one JSON result.",
				entry.short, entry.port),
			Args: cobra.ExactArgs(1),
			RunE: runRegistered(entry.name),
		})
	}
}

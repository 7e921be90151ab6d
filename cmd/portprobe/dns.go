// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
	"github.com/spf13/cobra"

	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/probe/dnsx"
)

var (
	dnsName string
	dnsType string
)

// dnsCmd probes a DNS server over TCP.
var dnsCmd = &cobra.Command{
	Use:   "dns HOST[:PORT]",
	Short: "DNS over TCP: send one query, summarize the response",
	Long: `Send one DNS query over TCP and summarize the response. The default
query, the root zone's NS set, is answerable by any resolver or
authoritative server. Default port: 53.`,
	Args: cobra.ExactArgs(1),
	RunE: runDNS,
}

func init() {
	dnsCmd.Flags().StringVarP(&dnsName, "name", "n", ".", "name to query")
	dnsCmd.Flags().StringVar(&dnsType, "type", "NS", "record type to query (A, AAAA, NS, MX, TXT, SOA, ...)")
	rootCmd.AddCommand(dnsCmd)
	probe.Register("dns", dnsx.Probe)
}

func runDNS(cmd *cobra.Command, args []string) error {
	params, err := buildParams(args[0])
	if err != nil {
		return err
	}
	if hostBlocked(params.Host) {
		return fmt.Errorf("%w: %s (use --allow-private to override)", ErrHostBlocked, params.Host)
	}

	qtype, ok := dns.StringToType[strings.ToUpper(dnsType)]
	if !ok {
		return fmt.Errorf("%w: unknown record type %q", ErrInvalidInput, dnsType)
	}
	return emitResult(dnsx.ProbeQuery(cmd.Context(), params, dnsName, qtype))
}

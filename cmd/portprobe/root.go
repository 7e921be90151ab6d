// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pocc/portofcall-sub007/pkg/probe"
	"github.com/pocc/portofcall-sub007/pkg/session"
)

var (
	quiet        bool
	debug        bool
	logFormat    string
	timeout      time.Duration
	portFlag     int
	useTLS       bool
	allowPrivate bool
)

// logLevel controls the global slog level at runtime.
var logLevel = new(slog.LevelVar)

// exitFunc is the function called to exit the program.
// This can be overridden in tests to capture exit calls.
var exitFunc = os.Exit

var rootCmd = &cobra.Command{
	Use:   "portprobe",
	Short: "Single-connection network service probes",
	Long: `portprobe opens one connection to a remote service, performs a bounded
protocol exchange, and prints a structured JSON result.

Each probe is one connection, one exchange, one close: no pooling, no
retries. The outer --timeout bounds the entire probe including connect;
a peer that trickles bytes or goes silent cannot hold the probe past it.

Protocols: echo, discard, daytime, chargen, time, finger, nntp, bitcoin,
dns, ssh, noise.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output (errors only)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text|json)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", probe.DefaultTimeout, "wall-clock budget for the whole probe")
	rootCmd.PersistentFlags().IntVarP(&portFlag, "port", "p", 0, "target port (default: the protocol's assigned port)")
	rootCmd.PersistentFlags().BoolVar(&useTLS, "tls", false, "wrap the connection in implicit TLS")
	rootCmd.PersistentFlags().BoolVar(&allowPrivate, "allow-private", false, "permit probing loopback and private-range addresses")

	rootCmd.AddCommand(versionCmd)
}

// initLogging configures the global slog logger based on CLI flags.
//
//	--debug: LevelDebug with source location
//	default: LevelInfo
//	--quiet: LevelError (only errors shown)
//
// --debug takes precedence over --quiet.
// --log-format selects the handler: "text" (default) or "json".
func initLogging() {
	switch {
	case debug:
		logLevel.Set(slog.LevelDebug)
	case quiet:
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: debug,
	}

	handlers := map[string]func(io.Writer, *slog.HandlerOptions) slog.Handler{
		"text": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
		"json": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) },
	}

	factory, ok := handlers[logFormat]
	if !ok {
		factory = handlers["text"]
	}

	handler := factory(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))
}

// buildParams parses the HOST[:PORT] argument and the shared flags into
// probe parameters. An explicit :PORT in the argument wins over --port.
func buildParams(arg string) (probe.Params, error) {
	host := arg
	port := portFlag

	if h, p, err := net.SplitHostPort(arg); err == nil {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 1 || n > 65535 {
			return probe.Params{}, fmt.Errorf("%w: port %q", ErrInvalidInput, p)
		}
		host, port = h, n
	}
	if host == "" {
		return probe.Params{}, fmt.Errorf("%w: empty host", ErrInvalidInput)
	}

	params := probe.Params{
		Host:    host,
		Port:    port,
		Timeout: timeout,
	}
	if useTLS {
		params.Mode = session.ModeImplicitTLS
	}
	return params, nil
}

// hostBlocked is the request layer's pre-flight check: loopback and
// private-range targets are refused unless --allow-private is set. The
// engine itself never inspects the address.
var hostBlocked probe.BlockPredicate = func(host string) bool {
	if allowPrivate {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		// Hostnames resolve at dial time; only literal addresses are
		// screened here.
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// emitResult prints the probe result as JSON and converts a non-ready
// outcome into a command error so the process exits non-zero.
func emitResult(res probe.Result) error {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(out))

	if !res.Success {
		return fmt.Errorf("%w: %s %s ended %s", ErrProbeFailed, res.Protocol, res.Target, res.State)
	}
	return nil
}

// runRegistered runs the probe registered under name against the host
// argument. Commands with no protocol-specific flags all route through
// here.
func runRegistered(name string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		params, err := buildParams(args[0])
		if err != nil {
			return err
		}
		if hostBlocked(params.Host) {
			return fmt.Errorf("%w: %s (use --allow-private to override)", ErrHostBlocked, params.Host)
		}
		fn, ok := probe.Lookup(name)
		if !ok {
			return fmt.Errorf("%w: unknown protocol %q", ErrInvalidInput, name)
		}
		return emitResult(fn(cmd.Context(), params))
	}
}

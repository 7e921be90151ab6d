// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import "errors"

// Exit codes for the CLI.
const (
	// ExitSuccess indicates the probe reached the ready state.
	ExitSuccess = 0

	// ExitProbeFailed indicates the probe ended in any non-ready state.
	ExitProbeFailed = 1

	// ExitConfigError indicates a configuration or input validation error.
	ExitConfigError = 2
)

// Sentinel errors for CLI operations.
var (
	// ErrInvalidInput is returned when required input parameters are missing or invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrHostBlocked is returned when the target host fails the pre-flight
	// block check (private or loopback address without --allow-private).
	ErrHostBlocked = errors.New("host blocked")

	// ErrProbeFailed is returned when a probe ends in a non-ready state.
	ErrProbeFailed = errors.New("probe failed")
)

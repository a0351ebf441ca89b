// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// logLevel maps -v repetitions to a log level.
func logLevel(verbosity int) hclog.Level {
	switch {
	case verbosity <= 0:
		return hclog.Warn
	case verbosity == 1:
		return hclog.Info
	case verbosity == 2:
		return hclog.Debug
	default:
		return hclog.Trace
	}
}

// NewLogger returns the stderr logger used by all commands.
func NewLogger(verbosity int) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "s4ctl",
		Level:  logLevel(verbosity),
		Output: os.Stderr,
		Color:  hclog.AutoColor,
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// s4ctl - Dataman S4 EPROM programmer control tool
//
// A CLI tool for loading images into a Dataman S4 over its serial
// terminal interface, verifying them and starting emulation.

package main

import (
	"os"

	"github.com/Thermoquad/s4ctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}

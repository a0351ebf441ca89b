// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Session flags
	configPath  string
	verbosity   int
	readTimeout string
	rangeMode   string
	tracePath   string
	chunkSize   int
	dryRun      bool

	// Resolved by PersistentPreRunE
	settings Settings
	logger   hclog.Logger = hclog.NewNullLogger()
)

// Exit codes
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitConnection = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// connectionError marks err as a failure to reach the device.
func connectionError(err error) error {
	return &ExitError{Code: ExitConnection, Err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

var rootCmd = &cobra.Command{
	Use:   "s4ctl",
	Short: "Dataman S4 EPROM programmer control tool",
	Long: `s4ctl - A CLI tool for driving a Dataman S4 EPROM programmer/emulator over
its serial terminal interface.

Loads images into the S4's RAM, reads them back, checksums memory and the
target device, changes advanced setup parameters and starts emulation.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  Simulator: --dry-run

For WebSocket authentication, the password is read from the S4CTL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings are read from $HOME/.config/s4ctl/config.yaml (or --config), then
S4CTL_* environment variables, then flags.

Exit codes:
  0 - Success
  1 - Protocol or integrity failure
  2 - Connection error`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepare,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Session flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $HOME/.config/s4ctl/config.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv wire trace)")
	rootCmd.PersistentFlags().StringVar(&readTimeout, "timeout", "300ms", "Read timeout for device responses (300ms, or 0.3 for seconds)")
	rootCmd.PersistentFlags().StringVar(&rangeMode, "range-mode", "auto", "Address entry style: auto, bulk or per-char")
	rootCmd.PersistentFlags().StringVar(&tracePath, "trace", "", "Record all wire traffic to a trace file")
	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", 1024, "Write size used when sending images")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Run against a simulated S4 instead of real hardware")
}

// prepare resolves settings and the logger before any command runs.
func prepare(cmd *cobra.Command, args []string) error {
	s, err := LoadSettings(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	settings = s
	logger = NewLogger(verbosity)
	logger.Debug("settings loaded", "port", settings.Port, "baud", settings.Baud,
		"url", settings.URL, "range_mode", settings.RangeMode, "timeout", settings.Timeout)
	return nil
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

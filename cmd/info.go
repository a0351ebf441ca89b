// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the target device type and address range",
	Long: `Synchronize with the S4 and run PRETEST to report the selected device type and
its address range.

Exit codes:
  0 - Device reported
  1 - Protocol failure or restricted device range
  2 - Connection error`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession(s)

	info := s.DeviceInfo()
	fmt.Printf("Device: %s\n", info.Type)
	fmt.Printf("Range:  %s (%d bytes)\n", info.Range, info.Range.Len())
	fmt.Printf("State:  %s\n", s.State())
	return nil
}

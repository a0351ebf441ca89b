// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Start emulating the image in S4 RAM",
	Long: `Put the S4 into emulation of the selected device using the image already in
RAM. The S4 stays in emulation until its ESC key is pressed or another command
resynchronizes it.

Exit codes:
  0 - Emulation started
  1 - Protocol failure
  2 - Connection error`,
	RunE: runEmulate,
}

func init() {
	rootCmd.AddCommand(emulateCmd)
}

func runEmulate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession(s)

	device, err := s.Emulate(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Emulating %s\n", device)
	return nil
}

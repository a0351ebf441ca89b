// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

var formatCmd = &cobra.Command{
	Use:   "format [NAME]",
	Short: "Select the S4 transfer file format",
	Long: `Select the file format the S4 uses for RECEIVE and SEND. Without NAME the
available formats are listed. load and dump always select BINARY themselves.

Examples:
  s4ctl format
  s4ctl format intel --port /dev/ttyUSB0

Exit codes:
  0 - Format selected
  1 - Protocol failure or format not offered
  2 - Connection error`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFormat,
}

func init() {
	rootCmd.AddCommand(formatCmd)
}

func runFormat(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, f := range dataman.FileFormats() {
			fmt.Println(f)
		}
		return nil
	}

	f, err := dataman.ParseFileFormat(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession(s)

	if err := s.SetFileFormat(ctx, f); err != nil {
		return err
	}
	fmt.Printf("File format: %s\n", f)
	return nil
}

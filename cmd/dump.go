// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

var (
	dumpStart string
	dumpEnd   string
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Read S4 RAM into a binary file",
	Long: `Read the S4's RAM with the SEND function and write it to FILE, or to stdout
when FILE is "-". The whole device range is read unless --start or --end
narrow it.

Examples:
  s4ctl dump rom.bin --port /dev/ttyUSB0
  s4ctl dump - --start 0 --end 3FF | xxd

Exit codes:
  0 - Image read
  1 - Protocol failure
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVar(&dumpStart, "start", "", "Start address in hex")
	dumpCmd.Flags().StringVar(&dumpEnd, "end", "", "End address in hex (inclusive)")
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	tp := newTextProgress(os.Stderr)
	defer tp.Finish()

	s, err := openSession(ctx, dataman.WithProgress(tp.Update))
	if err != nil {
		return err
	}
	defer closeSession(s)

	r, err := parseRange(dumpStart, dumpEnd, s.DeviceInfo().Range)
	if err != nil {
		return err
	}
	data, err := s.ReadImageRange(ctx, r)
	if err != nil {
		return err
	}
	tp.Finish()

	if args[0] == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	fmt.Printf("Read %d bytes from %s to %s (checksum 0x%08X)\n", len(data), r, args[0], dataman.Sum(data))
	return nil
}

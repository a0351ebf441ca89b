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
	checksumStart  string
	checksumEnd    string
	checksumDevice bool
	checksumFile   string
)

var checksumCmd = &cobra.Command{
	Use:   "checksum",
	Short: "Checksum S4 RAM or the target device",
	Long: `Ask the S4 for the 32-bit sum of a RAM range, or with --device of the chip in
the socket. The S4 takes about 21 seconds to sum 512K.

--file compares the result with the sum of a local image.

Examples:
  s4ctl checksum --port /dev/ttyUSB0
  s4ctl checksum --start 0 --end FFFF --file rom.bin
  s4ctl checksum --device

Exit codes:
  0 - Checksum read (and matched --file)
  1 - Protocol failure or mismatch
  2 - Connection error`,
	RunE: runChecksum,
}

func init() {
	rootCmd.AddCommand(checksumCmd)
	checksumCmd.Flags().StringVar(&checksumStart, "start", "", "Start address in hex")
	checksumCmd.Flags().StringVar(&checksumEnd, "end", "", "End address in hex (inclusive)")
	checksumCmd.Flags().BoolVar(&checksumDevice, "device", false, "Checksum the target device instead of RAM")
	checksumCmd.Flags().StringVar(&checksumFile, "file", "", "Compare with the checksum of this image")
}

func runChecksum(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	tp := newTextProgress(os.Stderr)
	s, err := openSession(ctx, dataman.WithProgress(tp.Update))
	if err != nil {
		return err
	}
	defer closeSession(s)

	var sum uint32
	if checksumDevice {
		sum, err = s.ChecksumDevice(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Device %s: SUM = %08X\n", s.DeviceInfo().Type, sum)
	} else {
		r, err := parseRange(checksumStart, checksumEnd, s.DeviceInfo().Range)
		if err != nil {
			return err
		}
		sum, err = s.ChecksumRange(ctx, r)
		if err != nil {
			return err
		}
		fmt.Printf("RAM %s: SUM = %08X\n", r, sum)
	}

	if checksumFile != "" {
		data, err := os.ReadFile(checksumFile)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		if err := dataman.Verify(data, sum); err != nil {
			return err
		}
		fmt.Printf("Matches %s\n", checksumFile)
	}
	return nil
}

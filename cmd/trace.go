// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s4ctl/pkg/trace"
)

var traceStatsOnly bool

var traceCmd = &cobra.Command{
	Use:   "trace FILE",
	Short: "Print a recorded wire trace",
	Long: `Print a trace recorded with --trace: every write (>>>>) and read (<<<<) with its
time offset, followed by traffic statistics.

Examples:
  s4ctl load rom.bin --port /dev/ttyUSB0 --trace load.trace
  s4ctl trace load.trace`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().BoolVar(&traceStatsOnly, "stats", false, "Only print statistics")
}

func runTrace(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()

	return printTrace(f, cmd.OutOrStdout(), traceStatsOnly)
}

func printTrace(in io.Reader, out io.Writer, statsOnly bool) error {
	r, err := trace.NewReader(in)
	if err != nil {
		return err
	}
	fmt.Fprint(out, trace.FormatHeader(r.Header()))

	var stats trace.Statistics
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		stats.Update(rec)
		if !statsOnly {
			fmt.Fprint(out, trace.FormatRecord(rec))
		}
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, stats.String())
	return nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

var (
	loadStart   string
	loadMute    bool
	loadEmulate bool
	loadTUI     bool
	loadVerify  bool
)

var loadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Load a binary image into S4 RAM",
	Long: `Load a binary image into the S4's RAM, verify it by checksum and optionally
start emulation.

Without --start the image must exactly fill the device range reported by
PRETEST. With --start the image is written from that address and only has to
fit below 0xFFFFF.

--mute silences the S4's tones before loading; --mute=false restores the
factory tones.

Examples:
  # Load a 27C040 image and start emulating it
  s4ctl load rom.bin --port /dev/ttyUSB0 --emulate

  # Patch 2K at 0x1000 with a progress view
  s4ctl load patch.bin --start 1000 --tui

Exit codes:
  0 - Image loaded and verified
  1 - Protocol failure, length mismatch or checksum mismatch
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVar(&loadStart, "start", "", "Start address in hex (default: whole device range)")
	loadCmd.Flags().BoolVar(&loadMute, "mute", false, "Silence (or with =false restore) the S4 tones first")
	loadCmd.Flags().BoolVar(&loadEmulate, "emulate", false, "Start emulation after loading")
	loadCmd.Flags().BoolVar(&loadTUI, "tui", false, "Show a full screen progress view")
	loadCmd.Flags().BoolVar(&loadVerify, "verify", true, "Verify the loaded image by checksum")
}

func runLoad(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	muteChanged := cmd.Flags().Changed("mute")

	op := func(ctx context.Context, report dataman.ProgressCallback) ([]string, error) {
		s, err := openSession(ctx, dataman.WithProgress(report))
		if err != nil {
			return nil, err
		}
		defer closeSession(s)
		return loadImage(ctx, s, data, muteChanged)
	}

	if loadTUI {
		logger = hclog.NewNullLogger()
		connInfo := settings.Port
		if settings.URL != "" {
			connInfo = settings.URL
		}
		if dryRun {
			connInfo = "dry run"
		}
		return runTransferTUI("load", connInfo, op)
	}

	ctx, cancel := commandContext()
	defer cancel()

	tp := newTextProgress(os.Stderr)
	lines, err := op(ctx, tp.Update)
	tp.Finish()
	for _, line := range lines {
		fmt.Println(line)
	}
	return err
}

// loadImage writes data to the device range, or from --start, and
// verifies it. The image is checked against its target range before
// anything is sent.
func loadImage(ctx context.Context, s *dataman.Session, data []byte, muteChanged bool) ([]string, error) {
	var lines []string
	info := s.DeviceInfo()
	lines = append(lines, fmt.Sprintf("Device: %s %s", info.Type, info.Range))

	start := info.Range.Start
	if loadStart != "" {
		addr, err := parseAddress(loadStart)
		if err != nil {
			return lines, err
		}
		if _, err := dataman.RangeForLength(addr, len(data)); err != nil {
			return lines, err
		}
		start = addr
	} else if err := dataman.CheckImageLength(data, info.Range); err != nil {
		return lines, err
	}

	if muteChanged {
		if err := s.SetMute(ctx, loadMute); err != nil {
			return lines, err
		}
	}

	if err := s.WriteImageAt(ctx, start, data); err != nil {
		return lines, err
	}
	r := s.Range()
	lines = append(lines, fmt.Sprintf("Loaded %d bytes to %s", len(data), r))

	if loadVerify {
		if err := s.VerifyImage(ctx, r, data); err != nil {
			return lines, err
		}
		lines = append(lines, fmt.Sprintf("Checksum: 0x%08X (verified)", dataman.Sum(data)))
	} else if verbosity > 0 {
		lines = append(lines, fmt.Sprintf("Checksum: 0x%08X", dataman.Sum(data)))
	}

	if loadEmulate {
		device, err := s.Emulate(ctx)
		if err != nil {
			return lines, err
		}
		lines = append(lines, fmt.Sprintf("Emulating %s", device))
	}
	return lines, nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

var (
	setupAssignments []string
	setupMute        bool
	setupUnmute      bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Show or change S4 advanced setup parameters",
	Long: `Walk the S4's advanced setup table, printing every parameter and applying any
changes. Values are two hex digits.

Parameters:
  Shutdown Time, High Tone, Low Tone, Busy Tone, Max Batt Temp,
  Min Batt Temp, Charge Time, Discharge Time, Deep Discharge, Norm Discharge

Examples:
  s4ctl setup
  s4ctl setup --set "shutdown-time=1E"
  s4ctl setup --mute

Exit codes:
  0 - Table read and changes applied
  1 - Protocol failure or invalid parameter
  2 - Connection error`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().StringArrayVar(&setupAssignments, "set", nil, "Change a parameter (NAME=HEX, repeatable)")
	setupCmd.Flags().BoolVar(&setupMute, "mute", false, "Set all tones to 00")
	setupCmd.Flags().BoolVar(&setupUnmute, "unmute", false, "Restore the factory tones")
	setupCmd.MarkFlagsMutuallyExclusive("mute", "unmute")
}

func runSetup(cmd *cobra.Command, args []string) error {
	changes, err := parseSetupChanges(setupAssignments)
	if err != nil {
		return err
	}
	if setupMute || setupUnmute {
		for name, v := range dataman.MuteSettings(setupMute) {
			changes[name] = v
		}
	}

	ctx, cancel := commandContext()
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession(s)

	params, err := s.AdvancedSetup(ctx, changes)
	if err != nil {
		return err
	}
	for _, p := range params {
		if p.Changed {
			fmt.Printf("%-15s %02X (was %02X)\n", p.Name, p.Value, p.Previous)
		} else {
			fmt.Printf("%-15s %02X\n", p.Name, p.Value)
		}
	}
	return nil
}

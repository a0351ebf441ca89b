// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

// phaseTitles are the descriptions shown next to progress output.
var phaseTitles = map[string]string{
	dataman.PhaseSync:     "Synchronizing",
	dataman.PhaseFormat:   "Selecting format",
	dataman.PhaseRange:    "Setting range",
	dataman.PhaseWriting:  "Writing",
	dataman.PhaseReading:  "Reading",
	dataman.PhaseChecksum: "Checksumming",
	dataman.PhaseComplete: "Complete",
}

func phaseTitle(phase string) string {
	if t, ok := phaseTitles[phase]; ok {
		return t
	}
	return phase
}

// textProgress renders transfer progress as a terminal progress bar.
type textProgress struct {
	out   io.Writer
	phase string
	bar   *progressbar.ProgressBar
}

func newTextProgress(out io.Writer) *textProgress {
	return &textProgress{out: out}
}

// Update is a dataman.ProgressCallback.
func (t *textProgress) Update(p dataman.Progress) {
	if p.Phase != t.phase {
		t.Finish()
		t.phase = p.Phase
		switch p.Phase {
		case dataman.PhaseWriting, dataman.PhaseReading:
			if p.Total > 0 {
				t.bar = progressbar.NewOptions(p.Total,
					progressbar.OptionSetWriter(t.out),
					progressbar.OptionSetWidth(40),
					progressbar.OptionSetDescription(phaseTitle(p.Phase)),
					progressbar.OptionShowBytes(true),
				)
			}
		case dataman.PhaseChecksum:
			if p.Done == 0 {
				fmt.Fprintf(t.out, "%s %d bytes...\n", phaseTitle(p.Phase), p.Total)
			}
		}
	}
	if t.bar != nil {
		t.bar.Set(p.Done)
	}
}

// Finish completes any bar still on screen.
func (t *textProgress) Finish() {
	if t.bar != nil {
		t.bar.Finish()
		fmt.Fprintln(t.out)
		t.bar = nil
	}
}

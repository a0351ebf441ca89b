// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package trace

import (
	"fmt"
	"time"
)

// Statistics summarises the traffic in a trace
type Statistics struct {
	// Counters
	Writes    uint64
	Reads     uint64
	BytesOut  uint64
	BytesIn   uint64
	Commands  uint64
	Escapes   uint64
	LastEvent time.Duration

	// Rates (calculated)
	OutRate float64 // bytes/sec
	InRate  float64 // bytes/sec
}

// Update adds a record to the statistics
func (s *Statistics) Update(r Record) {
	switch r.Dir {
	case Tx:
		s.Writes++
		s.BytesOut += uint64(len(r.Data))
		switch commandName(r) {
		case "":
		case "ESC":
			s.Escapes++
		default:
			s.Commands++
		}
	case Rx:
		s.Reads++
		s.BytesIn += uint64(len(r.Data))
	}
	if r.Offset > s.LastEvent {
		s.LastEvent = r.Offset
	}
}

// CalculateRates calculates transfer rates over the traced period
func (s *Statistics) CalculateRates() {
	if elapsed := s.LastEvent.Seconds(); elapsed > 0 {
		s.OutRate = float64(s.BytesOut) / elapsed
		s.InRate = float64(s.BytesIn) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	result := fmt.Sprintf("=== Statistics (%.1f seconds) ===\n", s.LastEvent.Seconds())
	result += fmt.Sprintf("Writes:          %8d (%d bytes)\n", s.Writes, s.BytesOut)
	result += fmt.Sprintf("Reads:           %8d (%d bytes)\n", s.Reads, s.BytesIn)
	result += fmt.Sprintf("Commands:        %8d\n", s.Commands)
	if s.Escapes > 0 {
		result += fmt.Sprintf("Escapes:         %8d\n", s.Escapes)
	}
	result += fmt.Sprintf("Out Rate:        %8.1f bytes/sec\n", s.OutRate)
	result += fmt.Sprintf("In Rate:         %8.1f bytes/sec\n", s.InRate)
	result += "================================\n"

	return result
}

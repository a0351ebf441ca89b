// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dataman implements the control protocol of the Dataman S4
// EPROM/RAM programmer.
//
// The S4 exposes its front-panel key functions over a serial line as a
// prompt-driven text menu. This package synchronises with that menu, invokes
// key functions by their 2-letter mnemonics, negotiates address ranges,
// transfers binary images and reads device computed checksums. Every response
// is matched byte for byte; any stray byte fails the operation rather than
// being skipped.
package dataman

import "time"

// Wire framing bytes
const (
	Escape     = 0x1B
	CR         = '\r'
	LF         = '\n'
	Backspace  = '\b'
	PromptMark = ">"
)

// Key function mnemonics
const (
	CmdPretest       = "PR"
	CmdFileFormat    = "FF"
	CmdReceive       = "RE"
	CmdSend          = "SE"
	CmdChecksumRAM   = "CH"
	CmdChecksumChip  = "CR"
	CmdAdvancedSetup = "AS"
	CmdEmulate       = "EM"
)

// Address space
const (
	MaxAddress  = 0xFFFFF // 5 hex digits
	AddressSize = 5       // hex digits per address field
	SumDigits   = 8       // hex digits in a SUM = field
	MemorySize  = 512 * 1024
)

// Timing defaults
const (
	DefaultReadTimeout = 300 * time.Millisecond
	DefaultBaudRate    = 115200

	// The S4 needs a little under 21 seconds to sum all 512K of its RAM.
	DefaultChecksumRate = 21 * time.Second

	// Time the S4 takes to settle after the last received byte.
	receiveSettle = 1100 * time.Millisecond

	// Upper bound on how long a chattering device may delay synchronisation.
	maxDrain = 10 * time.Second

	DefaultChunkSize = 1024
)

// BaudRates lists the rates the S4 serial port can be configured for.
var BaudRates = []int{300, 600, 1200, 2400, 4800, 9600, 14400, 19200, 28800, 38400, 57600, 115200}

// ValidBaudRate reports whether rate is one the S4 supports.
func ValidBaudRate(rate int) bool {
	for _, r := range BaudRates {
		if r == rate {
			return true
		}
	}
	return false
}

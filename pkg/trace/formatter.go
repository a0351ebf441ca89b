// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package trace

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

// maxShown bounds how much of a record FormatRecord prints.
const maxShown = 64

// FormatHeader formats a trace header into a human-readable string
func FormatHeader(h Header) string {
	return fmt.Sprintf("Session %s started %s on %s at %d baud\n",
		h.Session, h.Started.Format("2006-01-02 15:04:05.000"), h.Port, h.Baud)
}

// FormatRecord formats a record into a human-readable string
func FormatRecord(r Record) string {
	data := r.Data
	suffix := ""
	if len(data) > maxShown {
		data = data[:maxShown]
		suffix = fmt.Sprintf(" ...(%d bytes)", len(r.Data))
	}
	result := fmt.Sprintf("[%10.3fs] %s %q%s", r.Offset.Seconds(), r.Dir, data, suffix)
	if name := commandName(r); name != "" {
		result += "  ; " + name
	}
	return result + "\n"
}

// commandName names the key function invoked by a written mnemonic.
func commandName(r Record) string {
	if r.Dir != Tx {
		return ""
	}
	switch strings.ToUpper(string(r.Data)) {
	case dataman.CmdPretest:
		return "PRETEST"
	case dataman.CmdFileFormat:
		return "FILE FORMAT"
	case dataman.CmdReceive:
		return "RECEIVE"
	case dataman.CmdSend:
		return "SEND"
	case dataman.CmdChecksumRAM:
		return "CHECKSUM RAM"
	case dataman.CmdChecksumChip:
		return "CHKSUM"
	case dataman.CmdAdvancedSetup:
		return "ADVANCED SETUP"
	case dataman.CmdEmulate:
		return "EMULATE"
	case string(rune(dataman.Escape)):
		return "ESC"
	}
	return ""
}

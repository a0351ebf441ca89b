// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"fmt"
	"strings"
)

// FileFormat is a transfer encoding offered by the S4 SETUP menu.
type FileFormat int

const (
	FormatASCII FileFormat = iota
	FormatIntel
	FormatMotorola
	FormatTekHex
	FormatBinary
)

// fileFormats maps each format to its name and the 9 bytes the S4 echoes
// while the format is selected.
var fileFormats = [...]struct {
	name  string
	token string
}{
	FormatASCII:    {"ASCII", "\rASCII   "},
	FormatIntel:    {"INTEL", "\rINTEL   "},
	FormatMotorola: {"MOTOROLA", "\rMOTOROLA"},
	FormatTekHex:   {"TEKHEX", "\rTEK HEX "},
	FormatBinary:   {"BINARY", "\rBINARY  "},
}

// FileFormats lists every format in the order the S4 cycles through them.
func FileFormats() []FileFormat {
	out := make([]FileFormat, len(fileFormats))
	for i := range fileFormats {
		out[i] = FileFormat(i)
	}
	return out
}

func (f FileFormat) valid() bool {
	return f >= 0 && int(f) < len(fileFormats)
}

// Token returns the echo the S4 prints when f is selected.
func (f FileFormat) Token() string {
	if !f.valid() {
		return ""
	}
	return fileFormats[f].token
}

// Label returns the name the S4 uses in command prompts, e.g. "BINARY  "
// in "RECEIVE BINARY  ".
func (f FileFormat) Label() string {
	return strings.TrimPrefix(f.Token(), "\r")
}

func (f FileFormat) String() string {
	if !f.valid() {
		return fmt.Sprintf("FileFormat(%d)", int(f))
	}
	return fileFormats[f].name
}

// ParseFileFormat accepts a format name in any case, with or without the
// space in "TEK HEX".
func ParseFileFormat(s string) (FileFormat, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for i, ff := range fileFormats {
		if ff.name == name {
			return FileFormat(i), nil
		}
	}
	return 0, fmt.Errorf("unknown file format %q", s)
}

// formatFromToken maps an echoed token back to its format.
func formatFromToken(tok string) (FileFormat, bool) {
	for i, ff := range fileFormats {
		if ff.token == tok {
			return FileFormat(i), true
		}
	}
	return 0, false
}

func formatTokens() []string {
	out := make([]string, len(fileFormats))
	for i, ff := range fileFormats {
		out[i] = ff.token
	}
	return out
}

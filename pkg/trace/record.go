// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package trace records and replays the raw byte traffic between s4ctl
// and a Dataman S4.
//
// A trace file is a CBOR stream: one Header followed by one Record per
// read or write, each encoded as a CBOR array.
package trace

import (
	"fmt"
	"time"
)

// FormatVersion is written into every Header.
const FormatVersion = 1

// Direction of a recorded transfer.
type Direction uint8

const (
	// Tx is data written to the device.
	Tx Direction = iota + 1
	// Rx is data read from the device.
	Rx
)

func (d Direction) String() string {
	switch d {
	case Tx:
		return ">>>>"
	case Rx:
		return "<<<<"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Header opens a trace stream.
type Header struct {
	_       struct{} `cbor:",toarray"`
	Version int
	Session string // ULID
	Started time.Time
	Port    string
	Baud    int
}

// Record is one read or write.
type Record struct {
	_      struct{} `cbor:",toarray"`
	Dir    Direction
	Offset time.Duration // since Header.Started
	Data   []byte
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package s4sim simulates the serial remote control interface of a Dataman
// S4 programmer at the byte level.
//
// A Device implements dataman.Port. Bytes written to it drive the same
// menu state machine the S4 runs behind its keypad, and its responses are
// queued for Read. Fault knobs make it misbehave in the ways real devices
// and cables do.
package s4sim

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("s4sim: device closed")

// Default identity of a simulated device.
const (
	DefaultType = "27C040"
	memorySize  = dataman.MaxAddress + 1
)

// DefaultRange is the address range of a 27C040.
var DefaultRange = dataman.AddressRange{Start: 0, End: 0x7FFFF}

// DefaultFormats is the order the S4 cycles file formats in.
var DefaultFormats = []dataman.FileFormat{
	dataman.FormatASCII,
	dataman.FormatIntel,
	dataman.FormatMotorola,
	dataman.FormatTekHex,
	dataman.FormatBinary,
}

type mode int

const (
	modeIdle mode = iota
	modePretest
	modeFormat
	modeRange
	modeReceive
	modeSetup
	modeEmulate
)

// rangeOp is the command waiting on a start/end prompt.
type rangeOp int

const (
	opReceive rangeOp = iota
	opSend
	opChecksum
)

type chunk struct {
	at   time.Time
	data []byte
}

// Device is a simulated S4.
type Device struct {
	mu      sync.Mutex
	timeout time.Duration
	closed  bool
	out     []chunk

	// Type is the device type PRETEST reports.
	Type string
	// Range is the device's native address range.
	Range dataman.AddressRange

	// Formats lists the file format tokens offered, in cycling order.
	// Entries that are not known formats are shown verbatim.
	Formats []string

	// Fault knobs.

	// Silent discards all output.
	Silent bool
	// RangeRestricted makes PRETEST report a restricted window.
	RangeRestricted bool
	// MangleRangeEcho echoes the last digit of an end address one lower
	// than it was typed.
	MangleRangeEcho bool
	// CorruptReceive flips the low bit of the first byte received.
	CorruptReceive bool
	// SumDelay delays every SUM result.
	SumDelay time.Duration
	// Latency delays every response.
	Latency time.Duration

	mem      []byte
	setup    []byte
	format   int
	commands []string

	mode    mode
	pending []byte

	op     rangeOp
	digits []byte
	typed  int
	rng    dataman.AddressRange

	formatIdx int
	setupIdx  int
	setupIn   []byte

	recvAt    uint32
	recvLeft  int
	recvFirst bool
}

// New returns an idle simulated S4 with a 27C040 selected, binary format
// active and its RAM filled with 0xFF.
func New() *Device {
	d := &Device{
		Type:    DefaultType,
		Range:   DefaultRange,
		mem:     make([]byte, memorySize),
		setup:   []byte{0x0A, dataman.DefaultHighTone, dataman.DefaultLowTone, dataman.DefaultBusyTone, 0x2D, 0x05, 0x3C, 0x3C, 0x40, 0x50},
		timeout: dataman.DefaultReadTimeout,
	}
	for i := range d.mem {
		d.mem[i] = 0xFF
	}
	for _, f := range DefaultFormats {
		d.Formats = append(d.Formats, f.Token())
	}
	d.format = len(d.Formats) - 1
	d.rng = d.Range
	return d
}

// SetReadTimeout sets how long Read waits for output.
func (d *Device) SetReadTimeout(t time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = t
	return nil
}

// Read returns queued output that is due, waiting up to the read timeout
// for some to become due. It returns (0, nil) on timeout.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	timeout := d.timeout
	d.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return 0, ErrClosed
		}
		now := time.Now()
		n := d.take(p, now)
		next := d.nextDue()
		d.mu.Unlock()

		if n > 0 || len(p) == 0 {
			return n, nil
		}
		if timeout == 0 || (timeout > 0 && !now.Before(deadline)) {
			return 0, nil
		}

		wait := 10 * time.Millisecond
		if !next.IsZero() && next.Sub(now) < wait {
			wait = next.Sub(now)
		}
		if timeout > 0 && deadline.Sub(now) < wait {
			wait = deadline.Sub(now)
		}
		time.Sleep(max(wait, time.Millisecond))
	}
}

func (d *Device) take(p []byte, now time.Time) int {
	n := 0
	for len(d.out) > 0 && n < len(p) {
		c := &d.out[0]
		if c.at.After(now) {
			break
		}
		k := copy(p[n:], c.data)
		n += k
		c.data = c.data[k:]
		if len(c.data) == 0 {
			d.out = d.out[1:]
		}
	}
	return n
}

func (d *Device) nextDue() time.Time {
	if len(d.out) == 0 {
		return time.Time{}
	}
	return d.out[0].at
}

// Write feeds p to the device's input state machine.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	for _, b := range p {
		d.input(b)
	}
	return len(p), nil
}

// Close stops the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Inject queues raw output, as if the device had printed it on its own.
func (d *Device) Inject(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emitAfter(0, string(b))
}

// Memory returns a copy of RAM over r.
func (d *Device) Memory(r dataman.AddressRange) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.mem[r.Start:r.End+1]...)
}

// Load writes data into RAM at start, bypassing the serial protocol.
func (d *Device) Load(start uint32, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.mem[start:], data)
}

// FileFormat returns the token of the active file format.
func (d *Device) FileFormat() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.format >= len(d.Formats) {
		return ""
	}
	return d.Formats[d.format]
}

// Setup returns the current value of an advanced setup parameter.
func (d *Device) Setup(name string) (byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range dataman.SetupParams {
		if p == name {
			return d.setup[i], true
		}
	}
	return 0, false
}

// Commands returns the mnemonics dispatched so far.
func (d *Device) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

// Emulating reports whether the device is in emulation.
func (d *Device) Emulating() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode == modeEmulate
}

func (d *Device) emit(s string) {
	d.emitAfter(d.Latency, s)
}

func (d *Device) emitAfter(delay time.Duration, s string) {
	if d.Silent || len(s) == 0 {
		return
	}
	at := time.Now().Add(delay)
	if n := len(d.out); n > 0 && d.out[n-1].at.After(at) {
		at = d.out[n-1].at
	}
	d.out = append(d.out, chunk{at: at, data: []byte(s)})
}

func (d *Device) escape() {
	d.mode = modeIdle
	d.pending = d.pending[:0]
	d.emit("\r\nEsc\r\n>")
}

func (d *Device) input(b byte) {
	if b == dataman.Escape && d.mode != modeReceive && d.mode != modeSetup {
		d.escape()
		return
	}
	switch d.mode {
	case modeIdle:
		d.idleInput(b)
	case modePretest, modeEmulate:
		// Only ESC leaves these.
	case modeFormat:
		d.formatInput(b)
	case modeRange:
		d.rangeInput(b)
	case modeReceive:
		d.receiveInput(b)
	case modeSetup:
		d.setupInput(b)
	}
}

func (d *Device) idleInput(b byte) {
	switch {
	case b == dataman.CR:
		d.pending = d.pending[:0]
		d.emit("\r\n>")
		return
	case b >= 'a' && b <= 'z':
		b -= 'a' - 'A'
	case b < 'A' || b > 'Z':
		return
	}
	d.emit(string(b))
	d.pending = append(d.pending, b)
	if len(d.pending) < 2 {
		return
	}
	cmd := string(d.pending)
	d.pending = d.pending[:0]
	d.commands = append(d.commands, cmd)
	d.dispatch(cmd)
}

func (d *Device) dispatch(cmd string) {
	switch cmd {
	case dataman.CmdPretest:
		mark := "="
		if d.RangeRestricted {
			mark = "#"
		}
		d.mode = modePretest
		d.emit(fmt.Sprintf("\r>PRETEST %s\r\n\r %05X-%05X%s%05X%s",
			d.Type, d.Range.Start, d.Range.End, mark, 0, strings.Repeat("\b", 17)))
	case dataman.CmdFileFormat:
		d.mode = modeFormat
		if d.format >= len(d.Formats) {
			d.format = 0
		}
		d.formatIdx = d.format
		d.emit("\r>FILE FORMAT\r\n" + d.Formats[d.formatIdx])
	case dataman.CmdReceive:
		d.promptRange(opReceive, "\r>RECEIVE "+d.formatLabel()+"\r\n")
	case dataman.CmdSend:
		d.promptRange(opSend, "\r>SEND "+d.formatLabel()+"\r\n")
	case dataman.CmdChecksumRAM:
		d.promptRange(opChecksum, "\r>CHECKSUM RAM\r\n")
	case dataman.CmdChecksumChip:
		d.emit("\r>CHKSUM " + d.Type)
		d.emitSum(d.Range)
	case dataman.CmdAdvancedSetup:
		d.mode = modeSetup
		d.setupIdx = 0
		d.setupIn = d.setupIn[:0]
		d.emit("\r> ADVANCED SETUP")
		d.emitSetupParam()
	case dataman.CmdEmulate:
		d.mode = modeEmulate
		d.emit("\r>EMULATE " + d.Type)
	default:
		d.emit("\r\n>")
	}
}

func (d *Device) formatLabel() string {
	if d.format >= len(d.Formats) {
		d.format = 0
	}
	return strings.TrimPrefix(d.Formats[d.format], "\r")
}

func (d *Device) formatInput(b byte) {
	switch b {
	case ' ':
		d.formatIdx = (d.formatIdx + 1) % len(d.Formats)
		d.emit(d.Formats[d.formatIdx])
	case dataman.CR:
		d.format = d.formatIdx
		d.mode = modeIdle
		d.emit("\r\n>")
	}
}

func (d *Device) promptRange(op rangeOp, header string) {
	d.mode = modeRange
	d.op = op
	d.digits = []byte(fmt.Sprintf("%05X%05X", d.rng.Start, d.rng.End))
	d.typed = 0
	d.emit(header + fmt.Sprintf("%s,%s,\b \b%s",
		d.digits[:5], d.digits[5:], strings.Repeat("\b", 12)))
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'A' && b <= 'F')
}

func (d *Device) rangeInput(b byte) {
	if b == dataman.CR {
		d.emit("\r")
		d.startRangeOp()
		return
	}
	if b >= 'a' && b <= 'f' {
		b -= 'a' - 'A'
	}
	if !isHex(b) || d.typed >= len(d.digits) {
		return
	}
	d.digits[d.typed] = b
	d.typed++

	echo := b
	if d.MangleRangeEcho && d.typed == len(d.digits) {
		echo = hexChars[(hexValue(b)+15)%16]
	}
	switch d.typed {
	case 5:
		d.emit(string(echo) + ",")
	case 10:
		d.emit(string(echo) + "\b")
	default:
		d.emit(string(echo))
	}
}

const hexChars = "0123456789ABCDEF"

func hexValue(b byte) int {
	if b >= 'A' {
		return int(b-'A') + 10
	}
	return int(b - '0')
}

func (d *Device) parseRange() (dataman.AddressRange, bool) {
	var start, end uint32
	if _, err := fmt.Sscanf(string(d.digits), "%05X%05X", &start, &end); err != nil {
		return dataman.AddressRange{}, false
	}
	r, err := dataman.NewAddressRange(start, end)
	return r, err == nil
}

func (d *Device) startRangeOp() {
	r, ok := d.parseRange()
	if !ok {
		d.mode = modeIdle
		d.emit("\r\nRANGE ERROR\r\n>")
		return
	}
	d.rng = r
	switch d.op {
	case opReceive:
		d.mode = modeReceive
		d.recvAt = r.Start
		d.recvLeft = r.Len()
		d.recvFirst = true
	case opSend:
		d.mode = modeIdle
		d.emit("\r\n" + string(d.mem[r.Start:r.End+1]) + "\r\n>")
	case opChecksum:
		d.mode = modeIdle
		d.emitSum(r)
	}
}

func (d *Device) emitSum(r dataman.AddressRange) {
	d.emitAfter(d.Latency+d.SumDelay,
		fmt.Sprintf("\r\nSUM = %08X\r\n>", dataman.Sum(d.mem[r.Start:r.End+1])))
}

func (d *Device) receiveInput(b byte) {
	if d.CorruptReceive && d.recvFirst {
		b ^= 0x01
	}
	d.recvFirst = false
	d.mem[d.recvAt] = b
	d.recvAt++
	d.recvLeft--
	if d.recvLeft == 0 {
		d.mode = modeIdle
		d.emit("\r\n>")
	}
}

func (d *Device) emitSetupParam() {
	d.emit(fmt.Sprintf("\r\n%-15s%02X\b\b", dataman.SetupParams[d.setupIdx], d.setup[d.setupIdx]))
}

func (d *Device) setupInput(b byte) {
	switch {
	case b == dataman.Escape:
		d.mode = modeIdle
		d.emit("\r\n>")
	case b == dataman.CR:
		d.setupIn = d.setupIn[:0]
		d.setupIdx++
		if d.setupIdx == len(dataman.SetupParams) {
			d.mode = modeIdle
			d.emit("\r\n>")
			return
		}
		d.emitSetupParam()
	case isHex(b):
		d.setupIn = append(d.setupIn, b)
		if len(d.setupIn) < 2 {
			d.emit(string(b))
			return
		}
		d.setup[d.setupIdx] = byte(hexValue(d.setupIn[0])<<4 | hexValue(d.setupIn[1]))
		d.setupIn = d.setupIn[:0]
		d.emit(string(b) + "\b")
	}
}

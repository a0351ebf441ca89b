// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Command framing. Each key function echoes its mnemonic, a CR, the prompt
// and the function's name.
var (
	pretestHeader = pattern{lit("PR\r>PRETEST "), until(CR, 1), lit("\r\n")}
	pretestParams = pattern{
		lit("\r "), hexDigits(AddressSize), lit("-"), hexDigits(AddressSize),
		charIn("=#"), hexDigits(AddressSize), lit(strings.Repeat("\b", 17)),
	}
	escapeEcho = pattern{lit("\r\nEsc\r\n>")}

	fileFormatHeader = pattern{lit("FF\r>FILE FORMAT\r\n")}
	fileFormatChoice = pattern{oneOf(formatTokens()...)}

	receiveHeader  = pattern{lit("RE\r>RECEIVE " + FormatBinary.Label() + "\r\n")}
	sendHeader     = pattern{lit("SE\r>SEND " + FormatBinary.Label() + "\r\n")}
	checksumHeader = pattern{lit("CH\r>CHECKSUM RAM\r\n")}
	chipSumHeader  = pattern{lit("CR\r>CHKSUM "), until(CR, 1)}
	emulateHeader  = pattern{lit("EM\r>EMULATE ")}

	sumResult = pattern{lit("\r\nSUM = "), hexDigits(SumDigits), lit("\r\n>")}
	idle      = pattern{lit("\r\n>")}
)

// queryDeviceInfo runs the green TEST key function (PRETEST) and escapes
// out of it once the device type and address range have been read.
func (s *Session) queryDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	const what = "PRETEST"
	l := s.link

	m, err := l.send(ctx, what, CmdPretest, pretestHeader, s.cfg.ReadTimeout)
	if err != nil {
		return DeviceInfo{}, err
	}
	deviceType := m.Group(0)

	pm, perr := l.expect(ctx, what, pretestParams, s.cfg.ReadTimeout)
	if perr != nil {
		l.discard()
	}
	if _, err := l.send(ctx, what, string(rune(Escape)), escapeEcho, s.cfg.ReadTimeout); err != nil {
		if perr != nil {
			return DeviceInfo{}, perr
		}
		return DeviceInfo{}, err
	}
	if perr != nil {
		return DeviceInfo{}, perr
	}

	if pm.Group(2) == "#" {
		return DeviceInfo{}, ErrRangeRestricted
	}
	start, _ := strconv.ParseUint(pm.Group(0), 16, 32)
	end, _ := strconv.ParseUint(pm.Group(1), 16, 32)
	r, err := NewAddressRange(uint32(start), uint32(end))
	if err != nil {
		return DeviceInfo{}, &UnexpectedResponseError{What: what, Got: []byte(pm.Group(0) + "-" + pm.Group(1))}
	}

	s.log().Debug("device information", "type", deviceType, "range", r.String())
	return DeviceInfo{Type: deviceType, Range: r}, nil
}

// selectFileFormat runs FILE FORMAT from the SETUP key. The S4 shows one
// format at a time; a space advances to the next and CR locks the shown
// one in. The loop is bounded by the number of known formats.
func (s *Session) selectFileFormat(ctx context.Context, f FileFormat) error {
	const what = "FILE FORMAT"
	l := s.link
	timeout := s.cfg.ReadTimeout

	if _, err := l.send(ctx, what, CmdFileFormat, fileFormatHeader, timeout); err != nil {
		return err
	}
	for try := 0; try < len(fileFormats); try++ {
		m, err := l.expect(ctx, what, fileFormatChoice, timeout)
		if err != nil {
			if errors.Is(err, ErrUnexpectedResponse) {
				s.cancelFileFormat()
			}
			return err
		}
		shown, _ := formatFromToken(m.Group(0))
		if shown == f {
			_, err := l.send(ctx, what, "\r", idle, timeout)
			return err
		}
		s.log().Debug("skipping file format", "shown", shown.String(), "want", f.String())
		if err := l.writeString(" "); err != nil {
			return err
		}
	}
	s.cancelFileFormat()
	return fmt.Errorf("%w: %s", ErrFormatNotFound, f)
}

// cancelFileFormat leaves the format menu without changing the format.
func (s *Session) cancelFileFormat() {
	if err := s.link.write([]byte{Escape}); err != nil {
		s.log().Error("failed to leave file format menu", "error", err)
	}
}

// receive runs RECEIVE: the device takes r.Len() raw bytes into its RAM.
func (s *Session) receive(ctx context.Context, r AddressRange, data []byte) error {
	const what = "RECEIVE BINARY"
	l := s.link

	if _, err := l.send(ctx, what, CmdReceive, receiveHeader, s.cfg.ReadTimeout); err != nil {
		return err
	}
	if err := l.negotiateRange(ctx, what, r, s.rangeMode(true)); err != nil {
		return err
	}

	began := time.Now()
	chunk := s.cfg.ChunkSize
	for off := 0; off < len(data); off += chunk {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		end := min(off+chunk, len(data))
		if err := l.write(data[off:end]); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		s.report(Progress{Phase: PhaseWriting, Done: end, Total: len(data), Elapsed: time.Since(began)})
	}

	timeout := TransferTimeout(s.cfg.ReadTimeout, len(data), s.cfg.BaudRate)
	if _, err := l.expect(ctx, what, idle, timeout); err != nil {
		return err
	}
	s.log().Debug("transmission complete", "bytes", len(data), "elapsed", time.Since(began))
	return nil
}

// send runs SEND: the device transmits r.Len() raw bytes of its RAM.
func (s *Session) send(ctx context.Context, r AddressRange) ([]byte, error) {
	const what = "SEND BINARY"
	l := s.link

	if _, err := l.send(ctx, what, CmdSend, sendHeader, s.cfg.ReadTimeout); err != nil {
		return nil, err
	}
	if err := l.negotiateRange(ctx, what, r, s.rangeMode(true)); err != nil {
		return nil, err
	}

	began := time.Now()
	s.report(Progress{Phase: PhaseReading, Total: r.Len()})
	body := pattern{lit("\r\n"), rawBytes(r.Len()), lit("\r\n>")}
	timeout := TransferTimeout(s.cfg.ReadTimeout, r.Len(), s.cfg.BaudRate)
	m, err := l.expect(ctx, what, body, timeout)
	if err != nil {
		return nil, err
	}
	s.report(Progress{Phase: PhaseReading, Done: r.Len(), Total: r.Len(), Elapsed: time.Since(began)})
	return m.Groups[0], nil
}

// checksumRAM runs CHECKSUM RAM from the grey SUM key over r.
func (s *Session) checksumRAM(ctx context.Context, r AddressRange) (uint32, error) {
	const what = "CHECKSUM RAM"
	l := s.link

	if _, err := l.send(ctx, what, CmdChecksumRAM, checksumHeader, s.cfg.ReadTimeout); err != nil {
		return 0, err
	}
	if err := l.negotiateRange(ctx, what, r, s.rangeMode(false)); err != nil {
		return 0, err
	}
	return s.readSum(ctx, what, r.Len())
}

// checksumChip runs the green SUM key, which sums the whole target device.
func (s *Session) checksumChip(ctx context.Context) (uint32, error) {
	const what = "CHKSUM"
	if _, err := s.link.send(ctx, what, CmdChecksumChip, chipSumHeader, s.cfg.ReadTimeout); err != nil {
		return 0, err
	}
	return s.readSum(ctx, what, s.info.Range.Len())
}

// readSum waits for a SUM = line. The S4 sums at a fixed rate, so the wait
// grows with the number of bytes summed.
func (s *Session) readSum(ctx context.Context, what string, size int) (uint32, error) {
	s.report(Progress{Phase: PhaseChecksum, Total: size})
	timeout := ChecksumTimeout(s.cfg.ReadTimeout, size, s.cfg.ChecksumRate)
	m, err := s.link.expect(ctx, what, sumResult, timeout)
	if err != nil {
		return 0, err
	}
	sum, err := strconv.ParseUint(m.Group(0), 16, 32)
	if err != nil {
		return 0, &UnexpectedResponseError{What: what, Got: m.Groups[0]}
	}
	s.report(Progress{Phase: PhaseChecksum, Done: size, Total: size})
	s.log().Debug("checksum", "what", what, "sum", fmt.Sprintf("0x%08X", sum))
	return uint32(sum), nil
}

// emulate runs EMUL. The S4 announces the device it emulates and stays in
// emulation until interrupted.
func (s *Session) emulate(ctx context.Context) (string, error) {
	const what = "EMULATE"
	if _, err := s.link.send(ctx, what, CmdEmulate, emulateHeader, s.cfg.ReadTimeout); err != nil {
		return "", err
	}
	line, err := s.link.readLine()
	if err != nil {
		return "", fmt.Errorf("%s: %w", what, err)
	}
	return string(bytes.TrimSpace(line)), nil
}

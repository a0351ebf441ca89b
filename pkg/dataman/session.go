// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DeviceInfo is what PRETEST reports about the target device.
type DeviceInfo struct {
	Type  string
	Range AddressRange
}

// Session is a synchronized control session with one S4.
//
// A Session is not safe for concurrent use. After any protocol error the
// session refuses further commands with ErrDesynchronized until Resync
// succeeds.
type Session struct {
	port   Port
	link   *link
	cfg    Config
	state  SyncState
	info   DeviceInfo
	rng    AddressRange
	format FileFormat
	known  bool
}

// Connect synchronizes with the S4 on port and reads the target device's
// type and address range. The session's range starts out as the device
// range.
func Connect(ctx context.Context, port Port, opts ...Option) (*Session, error) {
	if port == nil {
		return nil, errors.New("port cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	l, err := newLink(port, cfg.ReadTimeout, cfg.Logger)
	if err != nil {
		return nil, err
	}
	s := &Session{port: port, link: l, cfg: cfg}

	if err := s.Resync(ctx); err != nil {
		return nil, err
	}
	if _, err := s.QueryDeviceInfo(ctx); err != nil {
		return nil, err
	}
	s.log().Info("connected", "device", s.info.Type, "range", s.info.Range.String())
	return s, nil
}

func (s *Session) log() Logger {
	return s.cfg.Logger
}

func (s *Session) report(p Progress) {
	if s.cfg.Progress != nil {
		s.cfg.Progress(p)
	}
}

// rangeMode resolves RangeAuto for the command about to run.
func (s *Session) rangeMode(transfer bool) RangeMode {
	if s.cfg.RangeMode != RangeAuto {
		return s.cfg.RangeMode
	}
	if transfer {
		return RangePerChar
	}
	return RangeBulk
}

// run executes one device command. Any failure other than a restricted
// range leaves the device in an unknown state.
func (s *Session) run(fn func() error) error {
	if s.state != SyncSynchronized {
		return ErrDesynchronized
	}
	err := fn()
	if err != nil && !errors.Is(err, ErrRangeRestricted) {
		s.state = SyncFailed
		s.known = false
		s.log().Error("session lost sync", "error", err)
	}
	return err
}

// Resync interrupts whatever the S4 is doing and waits for its prompt.
func (s *Session) Resync(ctx context.Context) error {
	s.report(Progress{Phase: PhaseSync})
	state, err := s.link.synchronize(ctx)
	s.state = state
	if err != nil {
		s.log().Error("synchronization failed", "error", err)
		return err
	}
	s.log().Debug("synchronized")
	return nil
}

// State returns the synchronization state.
func (s *Session) State() SyncState {
	return s.state
}

// Synchronized reports whether the session will accept commands.
func (s *Session) Synchronized() bool {
	return s.state == SyncSynchronized
}

// DeviceInfo returns the device information read at connect time.
func (s *Session) DeviceInfo() DeviceInfo {
	return s.info
}

// QueryDeviceInfo reads the device information again. If the device range
// is restricted, ErrRangeRestricted is returned and the session stays usable.
func (s *Session) QueryDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	var info DeviceInfo
	err := s.run(func() error {
		var err error
		info, err = s.queryDeviceInfo(ctx)
		return err
	})
	if err != nil {
		return DeviceInfo{}, err
	}
	s.info = info
	s.rng = info.Range
	return info, nil
}

// Range returns the range used by whole-range operations.
func (s *Session) Range() AddressRange {
	return s.rng
}

// SetRange changes the range used by whole-range operations.
func (s *Session) SetRange(r AddressRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.rng = r
	return nil
}

// FileFormat returns the last file format selected through this session.
func (s *Session) FileFormat() (FileFormat, bool) {
	return s.format, s.known
}

// SetFileFormat selects the S4's transfer file format.
func (s *Session) SetFileFormat(ctx context.Context, f FileFormat) error {
	s.report(Progress{Phase: PhaseFormat})
	err := s.run(func() error {
		return s.selectFileFormat(ctx, f)
	})
	if err != nil {
		return err
	}
	s.format = f
	s.known = true
	return nil
}

// WriteImage loads data into the S4's RAM from the device's native start
// address. The session range is ignored.
func (s *Session) WriteImage(ctx context.Context, data []byte) error {
	return s.WriteImageAt(ctx, s.info.Range.Start, data)
}

// WriteImageAt loads data into the S4's RAM starting at start. On success
// the session range becomes the range written.
func (s *Session) WriteImageAt(ctx context.Context, start uint32, data []byte) error {
	r, err := RangeForLength(start, len(data))
	if err != nil {
		return err
	}
	return s.writeImage(ctx, r, data)
}

func (s *Session) writeImage(ctx context.Context, r AddressRange, data []byte) error {
	if !s.info.Range.Contains(r) {
		s.log().Debug("range outside device range", "range", r.String(), "device", s.info.Range.String())
	}
	if err := s.SetFileFormat(ctx, FormatBinary); err != nil {
		return err
	}
	s.report(Progress{Phase: PhaseRange})
	err := s.run(func() error {
		return s.receive(ctx, r, data)
	})
	if err != nil {
		return err
	}
	s.rng = r
	s.report(Progress{Phase: PhaseComplete, Done: len(data), Total: len(data)})
	return nil
}

// ReadImage reads the session range back from the S4's RAM.
func (s *Session) ReadImage(ctx context.Context) ([]byte, error) {
	return s.ReadImageRange(ctx, s.rng)
}

// ReadImageRange reads r back from the S4's RAM.
func (s *Session) ReadImageRange(ctx context.Context, r AddressRange) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.SetFileFormat(ctx, FormatBinary); err != nil {
		return nil, err
	}
	var data []byte
	err := s.run(func() error {
		var err error
		data, err = s.send(ctx, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.report(Progress{Phase: PhaseComplete, Done: len(data), Total: len(data)})
	return data, nil
}

// Checksum asks the S4 for the checksum of its RAM over the session range.
func (s *Session) Checksum(ctx context.Context) (uint32, error) {
	return s.ChecksumRange(ctx, s.rng)
}

// ChecksumRange asks the S4 for the checksum of its RAM over r.
func (s *Session) ChecksumRange(ctx context.Context, r AddressRange) (uint32, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	var sum uint32
	err := s.run(func() error {
		var err error
		sum, err = s.checksumRAM(ctx, r)
		return err
	})
	return sum, err
}

// ChecksumDevice asks the S4 for the checksum of the whole target device.
func (s *Session) ChecksumDevice(ctx context.Context) (uint32, error) {
	var sum uint32
	err := s.run(func() error {
		var err error
		sum, err = s.checksumChip(ctx)
		return err
	})
	return sum, err
}

// VerifyImage compares the S4's checksum of the range data was written to
// against the sum of data.
func (s *Session) VerifyImage(ctx context.Context, r AddressRange, data []byte) error {
	if err := CheckImageLength(data, r); err != nil {
		return err
	}
	sum, err := s.ChecksumRange(ctx, r)
	if err != nil {
		return err
	}
	return Verify(data, sum)
}

// AdvancedSetup reads the advanced setup table, applying changes keyed by
// parameter name. It returns every parameter with its final value.
func (s *Session) AdvancedSetup(ctx context.Context, changes map[string]byte) ([]SetupParam, error) {
	for name := range changes {
		if !validSetupParam(name) {
			return nil, fmt.Errorf("unknown setup parameter %q", name)
		}
	}
	var params []SetupParam
	err := s.run(func() error {
		var err error
		params, err = s.advancedSetup(ctx, changes)
		return err
	})
	return params, err
}

// SetMute silences the S4's tones, or restores the factory tones.
func (s *Session) SetMute(ctx context.Context, mute bool) error {
	_, err := s.AdvancedSetup(ctx, MuteSettings(mute))
	return err
}

// Emulate puts the S4 into emulation and returns the device it reports.
// The session needs Resync before it accepts further commands.
func (s *Session) Emulate(ctx context.Context) (string, error) {
	var device string
	err := s.run(func() error {
		var err error
		device, err = s.emulate(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	s.state = SyncUnknown
	s.log().Info("emulating", "device", device)
	return device, nil
}

// Close closes the port if it implements io.Closer.
func (s *Session) Close() error {
	if c, ok := s.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"context"
	"fmt"
	"strconv"
)

// Advanced setup parameter names, in the order the S4 presents them.
const (
	ParamShutdownTime  = "Shutdown Time"
	ParamHighTone      = "High Tone"
	ParamLowTone       = "Low Tone"
	ParamBusyTone      = "Busy Tone"
	ParamMaxBattTemp   = "Max Batt Temp"
	ParamMinBattTemp   = "Min Batt Temp"
	ParamChargeTime    = "Charge Time"
	ParamDischargeTime = "Discharge Time"
	ParamDeepDischarge = "Deep Discharge"
	ParamNormDischarge = "Norm Discharge"
)

// SetupParams lists the advanced setup table.
var SetupParams = []string{
	ParamShutdownTime,
	ParamHighTone,
	ParamLowTone,
	ParamBusyTone,
	ParamMaxBattTemp,
	ParamMinBattTemp,
	ParamChargeTime,
	ParamDischargeTime,
	ParamDeepDischarge,
	ParamNormDischarge,
}

// Factory tone settings.
const (
	DefaultHighTone = 0x98
	DefaultLowTone  = 0xAC
	DefaultBusyTone = 0x50
)

// SetupParam is one advanced setup entry as read, and possibly changed.
type SetupParam struct {
	Name     string
	Value    byte
	Previous byte
	Changed  bool
}

// MuteSettings returns the tone changes that silence the S4, or restore its
// factory tones when mute is false.
func MuteSettings(mute bool) map[string]byte {
	if mute {
		return map[string]byte{ParamHighTone: 0, ParamLowTone: 0, ParamBusyTone: 0}
	}
	return map[string]byte{
		ParamHighTone: DefaultHighTone,
		ParamLowTone:  DefaultLowTone,
		ParamBusyTone: DefaultBusyTone,
	}
}

func validSetupParam(name string) bool {
	for _, p := range SetupParams {
		if p == name {
			return true
		}
	}
	return false
}

// advancedSetup walks the FUNC SETUP advanced table. Each entry shows its
// current value with the cursor backed over it; typing two hex digits
// replaces it, CR advances and ESC after the last entry returns to the
// prompt.
func (s *Session) advancedSetup(ctx context.Context, changes map[string]byte) ([]SetupParam, error) {
	const what = "ADVANCED SETUP"
	l := s.link
	timeout := s.cfg.ReadTimeout

	if _, err := l.send(ctx, what, CmdAdvancedSetup, pattern{lit("AS\r> ADVANCED SETUP")}, timeout); err != nil {
		return nil, err
	}

	params := make([]SetupParam, 0, len(SetupParams))
	for i, name := range SetupParams {
		entry := pattern{lit(fmt.Sprintf("\r\n%-15s", name)), hexDigits(2), lit("\b\b")}
		m, err := l.expect(ctx, what, entry, timeout)
		if err != nil {
			return nil, err
		}
		cur, _ := strconv.ParseUint(m.Group(0), 16, 8)
		p := SetupParam{Name: name, Value: byte(cur), Previous: byte(cur)}

		if v, ok := changes[name]; ok && v != p.Value {
			digits := fmt.Sprintf("%02X", v)
			if _, err := l.send(ctx, what, digits, pattern{lit(digits + "\b")}, timeout); err != nil {
				return nil, err
			}
			p.Value = v
			p.Changed = true
			s.log().Debug("setup parameter changed", "name", name,
				"from", fmt.Sprintf("0x%02X", p.Previous), "to", fmt.Sprintf("0x%02X", v))
		}
		params = append(params, p)

		next := "\r"
		if i == len(SetupParams)-1 {
			next = string(rune(Escape))
		}
		if err := l.writeString(next); err != nil {
			return nil, err
		}
	}

	if _, err := l.expect(ctx, what, idle, timeout); err != nil {
		return nil, err
	}
	return params, nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

// parseAddress parses a hex address, with or without a 0x prefix.
func parseAddress(s string) (uint32, error) {
	t := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(t, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	if v > dataman.MaxAddress {
		return 0, fmt.Errorf("address %q beyond 0x%05X", s, dataman.MaxAddress)
	}
	return uint32(v), nil
}

// parseRange builds a range from --start and --end strings, falling back to
// def for either that is empty.
func parseRange(start, end string, def dataman.AddressRange) (dataman.AddressRange, error) {
	r := def
	var err error
	if start != "" {
		if r.Start, err = parseAddress(start); err != nil {
			return r, err
		}
	}
	if end != "" {
		if r.End, err = parseAddress(end); err != nil {
			return r, err
		}
	}
	return r, r.Validate()
}

// parseByte parses a hex setup value.
func parseByte(s string) (byte, error) {
	t := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(t, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q (want two hex digits)", s)
	}
	return byte(v), nil
}

// canonicalParam maps user spellings such as high-tone or HIGH_TONE to the
// advanced setup parameter name.
func canonicalParam(name string) (string, error) {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		return strings.NewReplacer("-", " ", "_", " ").Replace(s)
	}
	want := norm(name)
	for _, p := range dataman.SetupParams {
		if norm(p) == want {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown setup parameter %q", name)
}

// parseSetupChanges parses NAME=HEX assignments.
func parseSetupChanges(assignments []string) (map[string]byte, error) {
	changes := make(map[string]byte, len(assignments))
	for _, a := range assignments {
		name, value, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q (want NAME=HEX)", a)
		}
		param, err := canonicalParam(name)
		if err != nil {
			return nil, err
		}
		v, err := parseByte(value)
		if err != nil {
			return nil, err
		}
		changes[param] = v
	}
	return changes, nil
}

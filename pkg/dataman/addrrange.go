// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"context"
	"fmt"
	"strings"
)

// AddressRange is an inclusive window of device addresses.
type AddressRange struct {
	Start uint32
	End   uint32
}

// NewAddressRange validates and returns the range [start, end].
func NewAddressRange(start, end uint32) (AddressRange, error) {
	r := AddressRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return AddressRange{}, err
	}
	return r, nil
}

// RangeForLength returns the range of length bytes beginning at start.
func RangeForLength(start uint32, length int) (AddressRange, error) {
	if length <= 0 {
		return AddressRange{}, fmt.Errorf("length must be positive, got %d", length)
	}
	if uint64(start)+uint64(length)-1 > MaxAddress {
		return AddressRange{}, fmt.Errorf("0x%X bytes from 0x%05X exceeds address space (max 0x%05X)",
			length, start, MaxAddress)
	}
	return NewAddressRange(start, start+uint32(length)-1)
}

// Validate checks the range invariants.
func (r AddressRange) Validate() error {
	if r.End > MaxAddress {
		return fmt.Errorf("end address 0x%X exceeds 0x%05X", r.End, MaxAddress)
	}
	if r.Start > r.End {
		return fmt.Errorf("start address 0x%05X is after end address 0x%05X", r.Start, r.End)
	}
	return nil
}

// Len returns the number of bytes covered by the range.
func (r AddressRange) Len() int {
	return int(r.End-r.Start) + 1
}

// Contains reports whether other lies entirely within r.
func (r AddressRange) Contains(other AddressRange) bool {
	return other.Start >= r.Start && other.End <= r.End
}

func (r AddressRange) String() string {
	return fmt.Sprintf("0x%05X-0x%05X", r.Start, r.End)
}

// rangeDigits returns the 5 digit start and end fields.
func (r AddressRange) rangeDigits() (string, string) {
	return fmt.Sprintf("%05X", r.Start), fmt.Sprintf("%05X", r.End)
}

// rangePlaceholder is what the S4 prints when prompting for a range: the
// current start and end, a trailing comma, and cursor movement back to the
// first digit.
var rangePlaceholder = pattern{
	hexDigits(AddressSize), lit(","), hexDigits(AddressSize),
	lit(",\b \b" + strings.Repeat("\b", 12)),
}

// negotiateRange answers the S4's start/end prompt with r and starts the
// operation. what names the command for error reporting.
func (l *link) negotiateRange(ctx context.Context, what string, r AddressRange, mode RangeMode) error {
	if err := r.Validate(); err != nil {
		return err
	}
	what += " range"
	if _, err := l.expect(ctx, what, rangePlaceholder, l.timeout); err != nil {
		return err
	}

	start, end := r.rangeDigits()
	switch mode {
	case RangePerChar:
		if err := l.sendDigits(ctx, what, start); err != nil {
			return err
		}
		if _, err := l.expect(ctx, what, pattern{lit(",")}, l.timeout); err != nil {
			return err
		}
		if err := l.sendDigits(ctx, what, end); err != nil {
			return err
		}
		if _, err := l.expect(ctx, what, pattern{lit("\b")}, l.timeout); err != nil {
			return err
		}
	default:
		echo := pattern{lit(start + "," + end + "\b")}
		if _, err := l.send(ctx, what, start+end, echo, l.timeout); err != nil {
			return err
		}
	}

	_, err := l.send(ctx, what, "\r", pattern{lit("\r")}, l.timeout)
	return err
}

// sendDigits sends each character of digits and waits for its echo before
// sending the next.
func (l *link) sendDigits(ctx context.Context, what, digits string) error {
	for i := 0; i < len(digits); i++ {
		ch := digits[i : i+1]
		if _, err := l.send(ctx, what, ch, pattern{lit(ch)}, l.timeout); err != nil {
			return err
		}
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// ============================================================
// Address Range Tests
// ============================================================

func TestAddressRange_Validate(t *testing.T) {
	tests := []struct {
		name    string
		r       AddressRange
		wantErr bool
	}{
		{"single byte", AddressRange{0, 0}, false},
		{"27C040", AddressRange{0, 0x7FFFF}, false},
		{"full address space", AddressRange{0, MaxAddress}, false},
		{"end past address space", AddressRange{0, MaxAddress + 1}, true},
		{"start after end", AddressRange{0x800, 0x7FF}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRangeForLength(t *testing.T) {
	r, err := RangeForLength(0, 0x800)
	if err != nil {
		t.Fatalf("RangeForLength: %v", err)
	}
	if r.Start != 0 || r.End != 0x7FF {
		t.Errorf("range = %s, want 0x00000-0x007FF", r)
	}
	if r.Len() != 2048 {
		t.Errorf("Len = %d, want 2048", r.Len())
	}

	if _, err := RangeForLength(0, 0); err == nil {
		t.Error("zero length should fail")
	}
	if _, err := RangeForLength(MaxAddress, 2); err == nil {
		t.Error("range past the address space should fail")
	}
}

func TestAddressRange_Contains(t *testing.T) {
	dev := AddressRange{0, 0x7FFFF}
	if !dev.Contains(AddressRange{0x100, 0x1FF}) {
		t.Error("inner range should be contained")
	}
	if dev.Contains(AddressRange{0x7FF00, 0x80000}) {
		t.Error("overlapping range should not be contained")
	}
}

func TestAddressRange_String(t *testing.T) {
	if got := (AddressRange{0, 0x7FF}).String(); got != "0x00000-0x007FF" {
		t.Errorf("String() = %q", got)
	}
}

// ============================================================
// Range Negotiation Tests
// ============================================================

const placeholder = "00000,7FFFF,\b \b\b\b\b\b\b\b\b\b\b\b\b\b"

// echoRange answers range entry the way the S4 does: each digit echoed,
// a comma after the fifth and a backspace after the tenth.
func echoRange() func(p []byte) []byte {
	typed := 0
	return func(p []byte) []byte {
		var out []byte
		for _, b := range p {
			if b == CR {
				out = append(out, CR)
				continue
			}
			typed++
			out = append(out, b)
			switch typed {
			case 5:
				out = append(out, ',')
			case 10:
				out = append(out, '\b')
			}
		}
		return out
	}
}

func TestNegotiateRange_Modes(t *testing.T) {
	for _, mode := range []RangeMode{RangeBulk, RangePerChar} {
		t.Run(mode.String(), func(t *testing.T) {
			port := newFakePort(echoRange())
			port.queue(placeholder)
			l := newTestLink(t, port)

			r := AddressRange{0, 0x7FF}
			if err := l.negotiateRange(context.Background(), "RECEIVE", r, mode); err != nil {
				t.Fatalf("negotiateRange: %v", err)
			}
			if port.Written() != "00000007FF\r" {
				t.Errorf("written %q", port.Written())
			}
			if len(l.pending) != 0 {
				t.Errorf("pending %q", l.pending)
			}
		})
	}
}

// Bulk entry of the ten digits of any valid range is echoed back as
// start, comma, end, backspace.
func TestNegotiateRange_BulkEchoLaw(t *testing.T) {
	rounds := getFuzzRounds() / 10
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		a := uint32(rng.Intn(MaxAddress + 1))
		b := uint32(rng.Intn(MaxAddress + 1))
		if a > b {
			a, b = b, a
		}
		r := AddressRange{a, b}

		var sent []byte
		echo := echoRange()
		port := newFakePort(func(p []byte) []byte {
			if len(p) == 10 {
				sent = append([]byte(nil), p...)
			}
			return echo(p)
		})
		port.queue(placeholder)
		l := newTestLink(t, port)

		if err := l.negotiateRange(context.Background(), "CHECKSUM RAM", r, RangeBulk); err != nil {
			t.Fatalf("round %d: range %s: %v", i, r, err)
		}
		want := fmt.Sprintf("%05X%05X", a, b)
		if string(sent) != want {
			t.Fatalf("round %d: sent %q, want %q", i, sent, want)
		}
	}
}

func TestNegotiateRange_EchoMismatch(t *testing.T) {
	port := newFakePort(func(p []byte) []byte {
		return []byte("00000,007FE\b")
	})
	port.queue(placeholder)
	l := newTestLink(t, port)

	err := l.negotiateRange(context.Background(), "RECEIVE BINARY", AddressRange{0, 0x7FF}, RangeBulk)
	var ue *UnexpectedResponseError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnexpectedResponseError, got %v", err)
	}
	if !strings.Contains(ue.What, "RECEIVE BINARY") {
		t.Errorf("What = %q", ue.What)
	}
	if string(ue.Got) != "00000,007FE\b" {
		t.Errorf("Got = %q", ue.Got)
	}
}

func TestNegotiateRange_InvalidRange(t *testing.T) {
	port := newFakePort(nil)
	l := newTestLink(t, port)
	if err := l.negotiateRange(context.Background(), "SEND", AddressRange{5, 4}, RangeBulk); err == nil {
		t.Fatal("expected error for inverted range")
	}
	if port.Written() != "" {
		t.Errorf("nothing should be written, got %q", port.Written())
	}
}

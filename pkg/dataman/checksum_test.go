// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestSum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint32
	}{
		{"empty", nil, 0},
		{"single byte", []byte{0x42}, 0x42},
		{"2K of 0xFF", bytes.Repeat([]byte{0xFF}, 2048), 0x0007F800},
		{"512K of 0xFF", bytes.Repeat([]byte{0xFF}, MemorySize), 0x07F80000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sum(tt.data); got != tt.want {
				t.Errorf("Sum() = 0x%08X, want 0x%08X", got, tt.want)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	data := bytes.Repeat([]byte{0xFF}, 2048)
	if err := Verify(data, 0x0007F800); err != nil {
		t.Errorf("matching checksum: %v", err)
	}

	err := Verify(data, 0x0007F801)
	var me *ChecksumMismatchError
	if !errors.As(err, &me) {
		t.Fatalf("expected *ChecksumMismatchError, got %v", err)
	}
	if me.Expected != 0x0007F800 || me.Actual != 0x0007F801 {
		t.Errorf("mismatch = %+v", me)
	}
	if IsProtocolError(err) {
		t.Error("checksum mismatch is not a protocol error")
	}
}

func TestCheckImageLength(t *testing.T) {
	r := AddressRange{0, 0x7FF}
	if err := CheckImageLength(make([]byte, 2048), r); err != nil {
		t.Errorf("exact length: %v", err)
	}
	err := CheckImageLength(make([]byte, 2047), r)
	var le *ImageLengthError
	if !errors.As(err, &le) {
		t.Fatalf("expected *ImageLengthError, got %v", err)
	}
	if le.Got != 2047 || le.Want != 2048 {
		t.Errorf("error = %+v", le)
	}
}

// ============================================================
// Timeout Scaling Tests
// ============================================================

func TestChecksumTimeout(t *testing.T) {
	base := 300 * time.Millisecond
	if got := ChecksumTimeout(base, 0, DefaultChecksumRate); got != base {
		t.Errorf("empty range: %v, want %v", got, base)
	}
	if got := ChecksumTimeout(base, MemorySize, DefaultChecksumRate); got != base+21*time.Second {
		t.Errorf("full memory: %v, want %v", got, base+21*time.Second)
	}
}

func TestChecksumTimeout_Monotonic(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		a := rng.Intn(MaxAddress + 2)
		b := rng.Intn(MaxAddress + 2)
		if a > b {
			a, b = b, a
		}
		ta := ChecksumTimeout(DefaultReadTimeout, a, DefaultChecksumRate)
		tb := ChecksumTimeout(DefaultReadTimeout, b, DefaultChecksumRate)
		if ta > tb {
			t.Fatalf("round %d: timeout(%d)=%v > timeout(%d)=%v", i, a, ta, b, tb)
		}
		if ta < DefaultReadTimeout {
			t.Fatalf("round %d: timeout %v below base", i, ta)
		}
	}
}

func TestTransferTimeout(t *testing.T) {
	base := DefaultReadTimeout
	small := TransferTimeout(base, 2048, 115200)
	large := TransferTimeout(base, MemorySize, 115200)
	slow := TransferTimeout(base, 2048, 9600)

	if small <= base+receiveSettle {
		t.Errorf("2K transfer timeout %v should exceed base and settle time", small)
	}
	if large <= small {
		t.Errorf("timeout should grow with size: %v <= %v", large, small)
	}
	if slow <= small {
		t.Errorf("timeout should grow as baud falls: %v <= %v", slow, small)
	}
	// 512K at 115200 baud is about 45s on the wire.
	if large < 90*time.Second {
		t.Errorf("512K timeout %v is shorter than twice the wire time", large)
	}
}

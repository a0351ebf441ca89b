// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

// Sum returns the S4 checksum of data: the sum of all bytes modulo 2^32.
func Sum(data []byte) uint32 {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return sum
}

// Verify compares the checksum of data with one reported by the device.
// A mismatch means the data was corrupted in transfer; the control channel
// itself is unaffected.
func Verify(data []byte, reported uint32) error {
	if expected := Sum(data); expected != reported {
		return &ChecksumMismatchError{Expected: expected, Actual: reported}
	}
	return nil
}

// CheckImageLength returns an *ImageLengthError unless data exactly fills r.
func CheckImageLength(data []byte, r AddressRange) error {
	if len(data) != r.Len() {
		return &ImageLengthError{Got: len(data), Want: r.Len()}
	}
	return nil
}

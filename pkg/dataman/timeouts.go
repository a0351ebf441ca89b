// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import "time"

// ChecksumTimeout returns how long to wait for a SUM result over size
// bytes: the base read timeout plus the device's summing time, which is
// proportional to size.
func ChecksumTimeout(base time.Duration, size int, rate time.Duration) time.Duration {
	if size < 0 {
		size = 0
	}
	return base + time.Duration(int64(size)*int64(rate)/MemorySize)
}

// wireTime returns how long size bytes take on the line at baud with one
// start and one stop bit.
func wireTime(size, baud int) time.Duration {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return time.Duration(int64(size) * 10 * int64(time.Second) / int64(baud))
}

// TransferTimeout returns how long to wait for a RECEIVE or SEND of size
// bytes to complete. Twice the wire time allows for the device's own
// processing between bytes.
func TransferTimeout(base time.Duration, size, baud int) time.Duration {
	if size < 0 {
		size = 0
	}
	return base + receiveSettle + 2*wireTime(size, baud)
}

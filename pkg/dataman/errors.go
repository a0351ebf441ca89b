// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSyncFailed is returned when the S4 never produced its idle prompt.
	ErrSyncFailed = errors.New("could not synchronize with Dataman S4, try pressing the orange ESC key on it")

	// ErrRangeRestricted is returned when the S4 reports a restricted
	// address window instead of the full device range.
	ErrRangeRestricted = errors.New("device range is restricted, use the TEST key to reset range to cover entire device")

	// ErrFormatNotFound is returned when file format selection cycled through
	// every candidate without the S4 offering the requested one.
	ErrFormatNotFound = errors.New("file format not offered by device")

	// ErrDesynchronized is returned by session operations after an earlier
	// protocol failure until Resync succeeds.
	ErrDesynchronized = errors.New("session is out of sync with device, resync required")

	// ErrUnexpectedResponse matches any *UnexpectedResponseError.
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrTimeout matches any *TimeoutError.
	ErrTimeout = errors.New("timeout")
)

// UnexpectedResponseError indicates that the S4 answered with bytes that
// cannot be the expected response.
type UnexpectedResponseError struct {
	What string
	Got  []byte
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected %s response %q", e.What, e.Got)
}

func (e *UnexpectedResponseError) Is(target error) bool {
	return target == ErrUnexpectedResponse
}

// TimeoutError indicates that a deadline elapsed before the expected response
// was complete. Got holds whatever partial response had arrived.
type TimeoutError struct {
	What  string
	Got   []byte
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if len(e.Got) == 0 {
		return fmt.Sprintf("timeout after %v waiting for %s response", e.After, e.What)
	}
	return fmt.Sprintf("timeout after %v waiting for %s response, got %q", e.After, e.What, e.Got)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ImageLengthError indicates that an image does not fill its target range.
type ImageLengthError struct {
	Got  int
	Want int
}

func (e *ImageLengthError) Error() string {
	return fmt.Sprintf("image is %d bytes, target range is %d bytes", e.Got, e.Want)
}

// ChecksumMismatchError indicates that the device checksum of a range does
// not match the sum of the data written to it.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("device checksum 0x%08X does not match data checksum 0x%08X",
		e.Actual, e.Expected)
}

// IsProtocolError returns true if err leaves the control channel in an
// unknown state.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrUnexpectedResponse) || errors.Is(err, ErrTimeout)
}

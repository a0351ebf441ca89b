// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// pollInterval caps a single read so cancellation is noticed promptly
// during long waits.
const pollInterval = 250 * time.Millisecond

// expect reads from the port until the buffered input matches p from its
// first byte, the buffered input can no longer match, the timeout elapses,
// or ctx is done. Bytes following the match stay buffered.
//
// The read timeout is adjusted per read to the remaining deadline and
// restored before returning.
func (l *link) expect(ctx context.Context, what string, p pattern, timeout time.Duration) (Match, error) {
	deadline := time.Now().Add(timeout)
	var m Match

	err := l.withTimeout(l.timeout, func() error {
		for {
			var st matchStatus
			m, st = p.match(l.pending)
			switch st {
			case matchOK:
				l.pending = l.pending[m.Len:]
				l.log.Trace("matched", "what", what, "pattern", p.String())
				return nil
			case matchFail:
				return &UnexpectedResponseError{What: what, Got: bytes.Clone(l.pending)}
			}

			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%s: %w", what, err)
			}
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return &TimeoutError{What: what, Got: bytes.Clone(l.pending), After: timeout}
			}
			if err := l.setTimeout(min(remaining, pollInterval)); err != nil {
				return err
			}
			if _, err := l.read(); err != nil {
				return fmt.Errorf("%s: %w", what, err)
			}
		}
	})
	return m, err
}

// send writes s and expects its response in one step.
func (l *link) send(ctx context.Context, what, s string, p pattern, timeout time.Duration) (Match, error) {
	if err := l.writeString(s); err != nil {
		return Match{}, fmt.Errorf("%s: %w", what, err)
	}
	return l.expect(ctx, what, p, timeout)
}

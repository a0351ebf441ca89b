// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"context"
	"fmt"
	"time"
)

// SyncState is a step of synchronisation with the S4 prompt.
type SyncState int

const (
	SyncUnknown SyncState = iota
	SyncInterrupting
	SyncAwaitingPrompt
	SyncSynchronized
	SyncFailed
)

func (s SyncState) String() string {
	switch s {
	case SyncUnknown:
		return "unknown"
	case SyncInterrupting:
		return "interrupting"
	case SyncAwaitingPrompt:
		return "awaiting prompt"
	case SyncSynchronized:
		return "synchronized"
	case SyncFailed:
		return "failed"
	default:
		return fmt.Sprintf("SyncState(%d)", int(s))
	}
}

// synchronize brings the S4 from an unknown state to its idle prompt.
//
// ESC aborts whatever command the device is running and CR asks for a
// fresh prompt. The device may still have output queued from earlier, so
// every line is drained until the device falls silent for a whole read
// timeout; synchronisation succeeds if a bare prompt appeared on its own
// line at any point.
func (l *link) synchronize(ctx context.Context) (SyncState, error) {
	l.discard()

	if err := l.write([]byte{Escape}); err != nil {
		return SyncFailed, err
	}
	if err := l.writeString("\r"); err != nil {
		return SyncFailed, err
	}

	state := SyncAwaitingPrompt
	deadline := time.Now().Add(maxDrain)
	for {
		if err := ctx.Err(); err != nil {
			return SyncFailed, err
		}
		line, err := l.readLine()
		if err != nil {
			return SyncFailed, err
		}
		if len(line) == 0 {
			break
		}
		if string(line) == PromptMark {
			state = SyncSynchronized
		}
		if time.Now().After(deadline) {
			l.log.Error("device did not fall silent", "after", maxDrain)
			return SyncFailed, ErrSyncFailed
		}
	}

	if state != SyncSynchronized {
		return SyncFailed, ErrSyncFailed
	}
	return state, nil
}

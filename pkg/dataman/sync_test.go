// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

// ============================================================
// Synchronisation Tests
// ============================================================

func TestSynchronize(t *testing.T) {
	tests := []struct {
		name   string
		stale  string // output queued before synchronising
		reply  string // answer to ESC
		synced bool
	}{
		{
			name:   "idle device",
			reply:  "\r\nEsc\r\n>\r\n>",
			synced: true,
		},
		{
			name:   "stale output discarded first",
			stale:  "SUM = 0000",
			reply:  "\r\nEsc\r\n>",
			synced: true,
		},
		{
			name:   "prompt only as a terminated line",
			reply:  "\r\n>\r\nEMULATE 27C040\r\n",
			synced: false,
		},
		{
			name:   "prompt followed by text on the same line",
			reply:  "\r\n> ADVANCED SETUP",
			synced: false,
		},
		{
			name:   "silent device",
			synced: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := newFakePort(func(p []byte) []byte {
				if len(p) == 1 && p[0] == Escape {
					return []byte(tt.reply)
				}
				return nil
			})
			l := newTestLink(t, port)
			l.pending = append(l.pending, tt.stale...)

			state, err := l.synchronize(context.Background())
			if tt.synced {
				if err != nil {
					t.Fatalf("synchronize: %v", err)
				}
				if state != SyncSynchronized {
					t.Errorf("state = %s, want synchronized", state)
				}
			} else {
				if !errors.Is(err, ErrSyncFailed) {
					t.Fatalf("expected ErrSyncFailed, got %v", err)
				}
				if state != SyncFailed {
					t.Errorf("state = %s, want failed", state)
				}
			}
			if port.Written() != "\x1b\r" {
				t.Errorf("written %q, want ESC CR", port.Written())
			}
		})
	}
}

// promptSeen splits reply the way the device stream is read, keeping line
// terminators and the trailing partial line, and reports whether any line
// is a bare prompt.
func promptSeen(reply []byte) bool {
	for len(reply) > 0 {
		i := bytes.IndexByte(reply, LF)
		if i < 0 {
			return string(reply) == PromptMark
		}
		if string(reply[:i+1]) == PromptMark {
			return true
		}
		reply = reply[i+1:]
	}
	return false
}

// Synchronisation succeeds exactly when the reply holds a bare prompt line,
// whatever noise surrounds it.
func TestSynchronize_Noise(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds() / 10
	if rounds < 1 {
		rounds = 1
	}
	const alphabet = "ab>\r\n X"

	for round := 0; round < rounds; round++ {
		reply := make([]byte, rng.Intn(24))
		for i := range reply {
			reply[i] = alphabet[rng.Intn(len(alphabet))]
		}
		// Bias towards replies that end in a prompt
		if rng.Intn(3) == 0 {
			reply = append(reply, "\r\n>"...)
		}

		port := newFakePort(func(p []byte) []byte {
			if len(p) == 1 && p[0] == Escape {
				return reply
			}
			return nil
		})
		l := newTestLink(t, port)

		state, err := l.synchronize(context.Background())
		want := promptSeen(reply)
		if got := state == SyncSynchronized; got != want {
			t.Fatalf("round %d: reply %q synchronized = %v (err %v), want %v", round, reply, got, err, want)
		}
		if !want && !errors.Is(err, ErrSyncFailed) {
			t.Fatalf("round %d: reply %q: expected ErrSyncFailed, got %v", round, reply, err)
		}
	}
}

func TestSyncState_String(t *testing.T) {
	if SyncSynchronized.String() != "synchronized" {
		t.Errorf("got %q", SyncSynchronized.String())
	}
	if SyncState(42).String() != "SyncState(42)" {
		t.Errorf("got %q", SyncState(42).String())
	}
}

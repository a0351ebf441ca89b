// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"math/rand"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// fakePort is a scripted Port. Each Write is passed to reply, whose result
// is queued for Read. Read waits out the read timeout when nothing is
// queued.
type fakePort struct {
	mu       sync.Mutex
	out      []byte
	written  []byte
	timeouts []time.Duration
	timeout  time.Duration
	reply    func(p []byte) []byte
}

func newFakePort(reply func(p []byte) []byte) *fakePort {
	return &fakePort{reply: reply, timeout: DefaultReadTimeout}
}

func (f *fakePort) queue(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, s...)
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	if len(f.out) > 0 {
		n := copy(p, f.out)
		f.out = f.out[n:]
		f.mu.Unlock()
		return n, nil
	}
	timeout := f.timeout
	f.mu.Unlock()
	time.Sleep(timeout)
	return 0, nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, p...)
	if f.reply != nil {
		f.out = append(f.out, f.reply(p)...)
	}
	return len(p), nil
}

func (f *fakePort) SetReadTimeout(t time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = t
	f.timeouts = append(f.timeouts, t)
	return nil
}

func (f *fakePort) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.written)
}

func newTestLink(t *testing.T, port Port) *link {
	t.Helper()
	l, err := newLink(port, 20*time.Millisecond, nopLogger{})
	if err != nil {
		t.Fatalf("newLink: %v", err)
	}
	return l
}

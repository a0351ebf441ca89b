// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package trace

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/oklog/ulid/v2"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
)

// Recorder is a dataman.Port that copies all traffic through port into a
// trace stream.
type Recorder struct {
	port    dataman.Port
	mu      sync.Mutex
	enc     *cbor.Encoder
	out     io.Writer
	started time.Time
	header  Header
	err     error
}

// NewSessionID returns a new ULID string.
func NewSessionID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return id.String(), nil
}

// NewRecorder writes a Header describing portName and baud to out and
// returns a Recorder wrapping port.
func NewRecorder(port dataman.Port, out io.Writer, portName string, baud int) (*Recorder, error) {
	now := time.Now()
	id, err := NewSessionID(now)
	if err != nil {
		return nil, err
	}
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	r := &Recorder{
		port:    port,
		enc:     em.NewEncoder(out),
		out:     out,
		started: now,
		header: Header{
			Version: FormatVersion,
			Session: id,
			Started: now.UTC(),
			Port:    portName,
			Baud:    baud,
		},
	}
	if err := r.enc.Encode(r.header); err != nil {
		return nil, fmt.Errorf("failed to write trace header: %w", err)
	}
	return r, nil
}

// Header returns the header written at creation.
func (r *Recorder) Header() Header {
	return r.header
}

// Err returns the first error encountered writing the trace. Trace write
// failures never fail the traffic itself.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) record(dir Direction, p []byte) {
	if len(p) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	rec := Record{Dir: dir, Offset: time.Since(r.started), Data: append([]byte(nil), p...)}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("failed to write trace record: %w", err)
	}
}

func (r *Recorder) Read(p []byte) (int, error) {
	n, err := r.port.Read(p)
	r.record(Rx, p[:n])
	return n, err
}

func (r *Recorder) Write(p []byte) (int, error) {
	n, err := r.port.Write(p)
	r.record(Tx, p[:n])
	return n, err
}

// SetReadTimeout passes through to the wrapped port.
func (r *Recorder) SetReadTimeout(t time.Duration) error {
	return r.port.SetReadTimeout(t)
}

// Drain passes through to the wrapped port if it supports draining.
func (r *Recorder) Drain() error {
	if d, ok := r.port.(interface{ Drain() error }); ok {
		return d.Drain()
	}
	return nil
}

// Close closes the trace output and then the wrapped port, where either
// is an io.Closer.
func (r *Recorder) Close() error {
	var first error
	if c, ok := r.out.(io.Closer); ok {
		first = c.Close()
	}
	if c, ok := r.port.(io.Closer); ok {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

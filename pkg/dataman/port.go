// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// Port is the byte transport to the S4.
//
// Read must return (0, nil) when the current read timeout elapses without
// data, which is how go.bug.st/serial ports behave. A Port that also
// implements Drain() error has it called after every write.
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
}

type drainer interface {
	Drain() error
}

// link owns the Port on behalf of a Session. It tracks the applied read
// timeout and buffers bytes read past the end of a matched response.
type link struct {
	port    Port
	timeout time.Duration
	pending []byte
	buf     []byte
	log     Logger
}

func newLink(port Port, timeout time.Duration, log Logger) (*link, error) {
	l := &link{
		port: port,
		buf:  make([]byte, 4096),
		log:  log,
	}
	if err := l.setTimeout(timeout); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *link) setTimeout(d time.Duration) error {
	if d == l.timeout {
		return nil
	}
	if err := l.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	l.timeout = d
	return nil
}

// withTimeout runs fn with the read timeout set to d and restores the
// previous timeout afterwards, whatever fn returns.
func (l *link) withTimeout(d time.Duration, fn func() error) (err error) {
	prev := l.timeout
	if err := l.setTimeout(d); err != nil {
		return err
	}
	defer func() {
		if rerr := l.setTimeout(prev); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}

// read performs one Port read with the current timeout and appends the
// result to the pending buffer. It returns the number of new bytes.
func (l *link) read() (int, error) {
	n, err := l.port.Read(l.buf)
	if n > 0 {
		l.log.Trace("<<<<", "data", fmt.Sprintf("%q", l.buf[:n]))
		l.pending = append(l.pending, l.buf[:n]...)
	}
	if err != nil {
		return n, fmt.Errorf("read: %w", err)
	}
	return n, nil
}

func (l *link) write(p []byte) error {
	l.log.Trace(">>>>", "data", fmt.Sprintf("%q", abbreviate(p)))
	if _, err := l.port.Write(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if d, ok := l.port.(drainer); ok {
		if err := d.Drain(); err != nil {
			return fmt.Errorf("drain: %w", err)
		}
	}
	return nil
}

func (l *link) writeString(s string) error {
	return l.write([]byte(s))
}

// readLine returns the next line including its '\n', or whatever partial
// line was buffered when a read timed out. An empty result means the device
// was silent for a whole read timeout.
func (l *link) readLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(l.pending, LF); i >= 0 {
			line := bytes.Clone(l.pending[:i+1])
			l.pending = l.pending[i+1:]
			return line, nil
		}
		n, err := l.read()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			line := bytes.Clone(l.pending)
			l.pending = l.pending[:0]
			return line, nil
		}
	}
}

// discard drops buffered input.
func (l *link) discard() {
	l.pending = l.pending[:0]
}

// abbreviate shortens bulk image data for trace logging.
func abbreviate(p []byte) []byte {
	const max = 48
	if len(p) <= max {
		return p
	}
	out := make([]byte, 0, max+16)
	out = append(out, p[:max]...)
	return append(out, fmt.Sprintf("...(%d bytes)", len(p))...)
}

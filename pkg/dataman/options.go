// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"fmt"
	"time"
)

// RangeMode selects how start and end addresses are sent to the S4.
type RangeMode int

const (
	// RangeAuto sends digits one at a time for image transfers and in
	// bulk for checksums.
	RangeAuto RangeMode = iota
	// RangeBulk sends all ten digits in one write.
	RangeBulk
	// RangePerChar sends each digit and waits for its echo. The S4
	// occasionally drops characters from burst input.
	RangePerChar
)

func (m RangeMode) String() string {
	switch m {
	case RangeAuto:
		return "auto"
	case RangeBulk:
		return "bulk"
	case RangePerChar:
		return "per-char"
	default:
		return fmt.Sprintf("RangeMode(%d)", int(m))
	}
}

// ParseRangeMode parses the names returned by RangeMode.String.
func ParseRangeMode(s string) (RangeMode, error) {
	switch s {
	case "", "auto":
		return RangeAuto, nil
	case "bulk":
		return RangeBulk, nil
	case "per-char", "perchar":
		return RangePerChar, nil
	}
	return RangeAuto, fmt.Errorf("unknown range mode %q (use auto, bulk or per-char)", s)
}

// Phase names reported through Progress.
const (
	PhaseSync     = "sync"
	PhaseFormat   = "format"
	PhaseRange    = "range"
	PhaseWriting  = "writing"
	PhaseReading  = "reading"
	PhaseChecksum = "checksum"
	PhaseComplete = "complete"
)

// Progress describes the state of a long running operation.
type Progress struct {
	Phase   string
	Done    int
	Total   int
	Elapsed time.Duration
}

// Percentage returns completion in the range 0 to 100.
func (p Progress) Percentage() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Done) * 100 / float64(p.Total)
}

// ProgressCallback receives Progress updates. It runs on the caller's
// goroutine and should return quickly.
type ProgressCallback func(Progress)

// Logger is the logging interface used by a Session. hclog.Logger
// satisfies it.
type Logger interface {
	Trace(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Trace(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Config holds Session settings.
type Config struct {
	// ReadTimeout bounds each read while waiting for ordinary responses.
	ReadTimeout time.Duration

	// BaudRate of the serial line, used to size transfer timeouts.
	BaudRate int

	// RangeMode selects address negotiation style.
	RangeMode RangeMode

	// ChecksumRate is how long the S4 takes to sum MemorySize bytes.
	ChecksumRate time.Duration

	// ChunkSize is the write size used when sending images.
	ChunkSize int

	Logger   Logger
	Progress ProgressCallback
}

func defaultConfig() Config {
	return Config{
		ReadTimeout:  DefaultReadTimeout,
		BaudRate:     DefaultBaudRate,
		RangeMode:    RangeAuto,
		ChecksumRate: DefaultChecksumRate,
		ChunkSize:    DefaultChunkSize,
		Logger:       nopLogger{},
	}
}

// Option configures a Session.
type Option func(*Config)

// WithReadTimeout sets the per-read timeout for ordinary responses. It is
// also how long the device must stay silent for synchronisation to finish.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ReadTimeout = d
		}
	}
}

// WithBaudRate tells the session the line speed so transfer timeouts scale
// correctly.
func WithBaudRate(rate int) Option {
	return func(c *Config) {
		if rate > 0 {
			c.BaudRate = rate
		}
	}
}

// WithRangeMode selects the address negotiation style.
func WithRangeMode(m RangeMode) Option {
	return func(c *Config) {
		c.RangeMode = m
	}
}

// WithChecksumRate overrides the measured time the S4 takes to checksum
// its whole memory.
func WithChecksumRate(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.ChecksumRate = d
		}
	}
}

// WithChunkSize sets the write size used when sending images.
func WithChunkSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ChunkSize = n
		}
	}
}

// WithLogger sets the session logger.
//
// Example:
//
//	s, err := dataman.Connect(ctx, port, dataman.WithLogger(hclog.Default()))
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithProgress sets a callback for transfer and checksum progress.
func WithProgress(cb ProgressCallback) Option {
	return func(c *Config) {
		c.Progress = cb
	}
}

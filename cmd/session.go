// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/Thermoquad/s4ctl/pkg/dataman"
	"github.com/Thermoquad/s4ctl/pkg/trace"
)

// commandContext returns a context cancelled by Ctrl-C.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// openPort opens the configured connection and wraps it in a trace
// recorder when --trace is set.
func openPort(s Settings) (dataman.Port, string, error) {
	port, connInfo, err := OpenConnection(s)
	if err != nil {
		return nil, "", connectionError(err)
	}
	if s.Trace == "" {
		return port, connInfo, nil
	}

	f, err := os.Create(s.Trace)
	if err != nil {
		closePort(port)
		return nil, "", fmt.Errorf("failed to create trace file: %w", err)
	}
	rec, err := trace.NewRecorder(port, f, connInfo, s.Baud)
	if err != nil {
		f.Close()
		closePort(port)
		return nil, "", err
	}
	logger.Info("recording trace", "file", s.Trace, "session", rec.Header().Session)
	return rec, connInfo, nil
}

func closePort(port dataman.Port) {
	if c, ok := port.(io.Closer); ok {
		c.Close()
	}
}

// openSession opens the connection and synchronizes with the S4. Failing
// to reach or synchronize with the device is a connection error.
func openSession(ctx context.Context, extra ...dataman.Option) (*dataman.Session, error) {
	port, connInfo, err := openPort(settings)
	if err != nil {
		return nil, err
	}
	logger.Info("opened connection", "connection", connInfo)

	opts := append(settings.SessionOptions(), dataman.WithLogger(logger))
	opts = append(opts, extra...)

	s, err := dataman.Connect(ctx, port, opts...)
	if err != nil {
		closePort(port)
		if errors.Is(err, dataman.ErrSyncFailed) || errors.Is(err, dataman.ErrTimeout) {
			return nil, connectionError(fmt.Errorf("%s: %w", connInfo, err))
		}
		return nil, err
	}
	return s, nil
}

// closeSession closes s along with its port and any trace file.
func closeSession(s *dataman.Session) {
	if err := s.Close(); err != nil {
		logger.Warn("failed to close connection", "error", err)
	}
}

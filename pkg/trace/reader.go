// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package trace

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Reader decodes a trace stream.
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads the stream header from in.
func NewReader(in io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(in)
	var h Header
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty trace")
		}
		return nil, fmt.Errorf("failed to decode trace header: %w", err)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported trace version %d", h.Version)
	}
	return &Reader{dec: dec, header: h}, nil
}

// Header returns the stream header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to decode trace record: %w", err)
	}
	if rec.Dir != Tx && rec.Dir != Rx {
		return Record{}, fmt.Errorf("invalid direction %d in trace record", rec.Dir)
	}
	return rec, nil
}

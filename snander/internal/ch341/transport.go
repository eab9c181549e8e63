// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ch341

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every single bulk transfer.
const DefaultTimeout = 1000 * time.Millisecond

// Direction selects one of the two bulk endpoints.
type Direction uint8

const (
	Out Direction = epWrite // host to device
	In  Direction = epRead  // device to host
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "write"
	case In:
		return "read"
	}
	return "unknown"
}

// OutPipe is the host to device bulk endpoint (*gousb.OutEndpoint).
type OutPipe interface {
	WriteContext(ctx context.Context, p []byte) (int, error)
}

// InPipe is the device to host bulk endpoint (*gousb.InEndpoint).
type InPipe interface {
	ReadContext(ctx context.Context, p []byte) (int, error)
}

// Transferer moves one buffer over one of the bulk endpoints.
type Transferer interface {
	Transfer(dir Direction, buf []byte) (int, error)
}

// Transport performs single, blocking bulk transfers bounded by Timeout.
// It never retries: a failed or timed out transfer is reported as is.
type Transport struct {
	out OutPipe
	in  InPipe
	log *zap.Logger

	Timeout time.Duration
}

// NewTransport returns a transport using DefaultTimeout.
func NewTransport(out OutPipe, in InPipe, log *zap.Logger) *Transport {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{out: out, in: in, log: log, Timeout: DefaultTimeout}
}

// Transfer writes buf to the OUT endpoint or fills it from the IN endpoint.
// It returns the number of bytes actually transferred or an error, never
// both.
func (t *Transport) Transfer(dir Direction, buf []byte) (n int, err error) {
	defer wrapErr(dir.String(), &err)
	if t == nil || t.out == nil || t.in == nil {
		return 0, ErrNoSession
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	switch dir {
	case Out:
		n, err = t.out.WriteContext(ctx, buf)
	case In:
		n, err = t.in.ReadContext(ctx, buf)
	default:
		return 0, errors.New("bad direction")
	}
	if err != nil {
		t.log.Debug("bulk transfer failed",
			zap.Stringer("dir", dir),
			zap.Int("len", len(buf)),
			zap.Error(err),
		)
		return 0, err
	}
	return n, nil
}

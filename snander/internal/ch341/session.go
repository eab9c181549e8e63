// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ch341

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Handle is an opened, not yet claimed bridge device.
type Handle interface {
	// DetachKernelDriver makes sure no OS driver owns the interface.
	DetachKernelDriver() error
	// Claim claims the communication interface and returns its bulk pipes.
	Claim() (OutPipe, InPipe, error)
	// Release releases the claimed interface. It is a no-op if the
	// interface was never claimed.
	Release() error
	// Close closes the device and the underlying USB context.
	Close() error
}

// Opener opens the bridge device.
type Opener func() (Handle, error)

// Session is the exclusively owned connection to one opened and claimed
// bridge.
type Session struct {
	h   Handle
	t   *Transport
	log *zap.Logger
}

// Open opens the device, detaches any kernel driver and claims the
// interface. Any failure leaves nothing open or claimed.
func Open(open Opener, log *zap.Logger) (s *Session, err error) {
	defer wrapErr("Open", &err)
	if log == nil {
		log = zap.NewNop()
	}
	h, err := open()
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrNotFound
	}
	if err = h.DetachKernelDriver(); err != nil {
		log.Debug("failed to detach kernel driver", zap.Error(err))
		return nil, multierr.Append(err, h.Close())
	}
	out, in, err := h.Claim()
	if err != nil {
		log.Debug("failed to claim interface", zap.Error(err))
		return nil, multierr.Append(err, h.Close())
	}
	return &Session{h: h, t: NewTransport(out, in, log), log: log}, nil
}

// Live reports whether the session holds an opened device.
func (s *Session) Live() bool {
	return s != nil && s.h != nil
}

// Transport gives access to the transfer parameters (eg. Timeout).
func (s *Session) Transport() *Transport {
	if !s.Live() {
		return nil
	}
	return s.t
}

// Transfer performs one bulk transfer. It fails with ErrNoSession once the
// session is closed.
func (s *Session) Transfer(dir Direction, buf []byte) (int, error) {
	if !s.Live() {
		return 0, &Error{dir.String(), ErrNoSession}
	}
	return s.t.Transfer(dir, buf)
}

// Close releases the interface and closes the device. Closing a closed
// session does nothing.
func (s *Session) Close() (err error) {
	if !s.Live() {
		return nil
	}
	defer wrapErr("Close", &err)
	err = multierr.Append(s.h.Release(), s.h.Close())
	s.h, s.t = nil, nil
	return
}

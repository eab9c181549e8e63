// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctrl

import (
	"github.com/embeddedgo/flashtools/snander/internal/ch341"
	"github.com/pkg/errors"
)

// Bus is the controller-facing API of the flash command layer. It hides the
// packet limit of the tunneled backend by splitting long transfers.
type Bus struct {
	c      Controller
	kind   Kind
	packet int
}

// NewBus wraps c. Transfers longer than packet bytes are split unless kind is
// NativeSPI or packet <= 0.
func NewBus(c Controller, kind Kind, packet int) *Bus {
	return &Bus{c: c, kind: kind, packet: packet}
}

func (b *Bus) Controller() Controller {
	return b.c
}

func (b *Bus) Kind() Kind {
	return b.kind
}

func (b *Bus) Init(opts ch341.Options) error {
	return errors.Wrapf(b.c.Init(opts), "%s: programmer device not found", b.c.Name())
}

func (b *Bus) Shutdown() error {
	return b.c.Shutdown()
}

// ChipSelectLow asserts the chip select.
func (b *Bus) ChipSelectLow() error {
	return b.c.CSRelease(true)
}

// ChipSelectHigh releases the chip select.
func (b *Bus) ChipSelectHigh() error {
	return b.c.CSRelease(false)
}

func (b *Bus) WriteOneByte(v byte) error {
	return b.c.SendCommand([]byte{v}, nil)
}

func (b *Bus) chunked() bool {
	return b.kind != NativeSPI && b.packet > 0
}

// WriteNBytes writes p. On the tunneled backend p is sent in consecutive
// chunks of at most the packet size; the first failing chunk stops the
// transfer and the chunks already sent stay written.
func (b *Bus) WriteNBytes(p []byte) error {
	if !b.chunked() {
		return b.c.SendCommand(p, nil)
	}
	for pos := 0; pos < len(p); {
		n := min(len(p)-pos, b.packet)
		if err := b.c.SendCommand(p[pos:pos+n], nil); err != nil {
			return errors.Wrapf(err, "write chunk at %d", pos)
		}
		pos += n
	}
	return nil
}

// ReadNBytes fills p. Reads that fit in one packet go straight through;
// longer ones are split like writes.
func (b *Bus) ReadNBytes(p []byte) error {
	if !b.chunked() || len(p) <= b.packet {
		return b.c.SendCommand(nil, p)
	}
	for pos := 0; pos < len(p); {
		n := min(len(p)-pos, b.packet)
		if err := b.c.SendCommand(nil, p[pos:pos+n]); err != nil {
			return errors.Wrapf(err, "read chunk at %d", pos)
		}
		pos += n
	}
	return nil
}

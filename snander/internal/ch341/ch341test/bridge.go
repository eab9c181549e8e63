// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ch341test provides a fake CH341A that decodes the command frames
// and simulates the I2C slaves and the SPI chip behind the bridge.
package ch341test

import (
	"context"
	"errors"
	"math/bits"
	"time"

	"github.com/embeddedgo/flashtools/snander/internal/ch341"
)

var ErrInjected = errors.New("injected failure")

// Slave is a simulated I2C slave.
type Slave struct {
	NACK   int      // number of reads to reject before acknowledging
	Data   []byte   // bytes returned by reads, zeros when exhausted
	Writes [][]byte // payloads written to the slave
	Reads  []int    // lengths of the acknowledged reads
}

func (s *Slave) read(n int) []byte {
	p := make([]byte, n)
	k := copy(p, s.Data)
	s.Data = s.Data[k:]
	s.Reads = append(s.Reads, n)
	return p
}

// Write is one decoded I2C write frame.
type Write struct {
	Addr uint16
	Data []byte
}

// Bridge implements ch341.Handle and both bulk pipes.
type Bridge struct {
	Slaves map[uint16]*Slave

	// Handle state and failures.
	OpenErr, DetachErr, ClaimErr error
	Detached, Claimed            bool
	Released, Closed             int

	// FailOut, if not nil, is consulted before every OUT transfer.
	FailOut func(frame []byte) error
	// FailIn, if not nil, is consulted before every IN transfer.
	FailIn func(n int) error
	// MISO returns the bytes the SPI chip shifts out while mosi is shifted
	// in. nil means 0xff for every byte.
	MISO func(mosi []byte) []byte

	Frames   [][]byte // every OUT transfer
	InLens   []int    // length of every IN transfer
	Modes    []byte   // stream mode bytes (STM_SET frames)
	Writes   []Write  // decoded I2C writes, in order
	Probes   []uint16 // addresses of zero length reads
	UIO      [][]byte // pin control frames
	MOSI     []byte   // all bytes shifted out on SPI
	Deadline time.Duration

	pending []byte
}

// New returns a bridge with slaves at the given addresses.
func New(addrs ...uint16) *Bridge {
	b := &Bridge{Slaves: make(map[uint16]*Slave)}
	for _, a := range addrs {
		b.Slaves[a] = new(Slave)
	}
	return b
}

// Opener returns an opener that hands out b.
func (b *Bridge) Opener() ch341.Opener {
	return func() (ch341.Handle, error) {
		if b.OpenErr != nil {
			return nil, b.OpenErr
		}
		return b, nil
	}
}

func (b *Bridge) DetachKernelDriver() error {
	if b.DetachErr != nil {
		return b.DetachErr
	}
	b.Detached = true
	return nil
}

func (b *Bridge) Claim() (ch341.OutPipe, ch341.InPipe, error) {
	if b.ClaimErr != nil {
		return nil, nil, b.ClaimErr
	}
	b.Claimed = true
	return b, b, nil
}

func (b *Bridge) Release() error {
	if b.Claimed {
		b.Claimed = false
		b.Released++
	}
	return nil
}

func (b *Bridge) Close() error {
	b.Closed++
	return nil
}

func (b *Bridge) deadline(ctx context.Context) {
	if d, ok := ctx.Deadline(); ok {
		b.Deadline = time.Until(d)
	}
}

func (b *Bridge) WriteContext(ctx context.Context, p []byte) (int, error) {
	b.deadline(ctx)
	frame := append([]byte(nil), p...)
	if b.FailOut != nil {
		if err := b.FailOut(frame); err != nil {
			return 0, err
		}
	}
	b.Frames = append(b.Frames, frame)
	b.decode(frame)
	return len(p), nil
}

func (b *Bridge) ReadContext(ctx context.Context, p []byte) (int, error) {
	b.deadline(ctx)
	b.InLens = append(b.InLens, len(p))
	if b.FailIn != nil {
		if err := b.FailIn(len(p)); err != nil {
			return 0, err
		}
	}
	n := copy(p, b.pending)
	b.pending = nil
	return n, nil
}

func (b *Bridge) decode(f []byte) {
	if len(f) == 0 {
		return
	}
	switch f[0] {
	case 0xaa:
		b.decodeI2C(f)
	case 0xab:
		b.UIO = append(b.UIO, f)
	case 0xa8:
		mosi := make([]byte, len(f)-1)
		for i, v := range f[1:] {
			mosi[i] = bits.Reverse8(v)
		}
		b.MOSI = append(b.MOSI, mosi...)
		miso := make([]byte, len(mosi))
		if b.MISO != nil {
			copy(miso, b.MISO(mosi))
		} else {
			for i := range miso {
				miso[i] = 0xff
			}
		}
		for i, v := range miso {
			miso[i] = bits.Reverse8(v)
		}
		b.pending = miso
	}
}

func (b *Bridge) decodeI2C(f []byte) {
	if len(f) == 3 {
		b.Modes = append(b.Modes, f[1])
		return
	}
	if len(f) < 6 || f[1] != 0x74 {
		return
	}
	addr := uint16(f[3] >> 1)
	slave := b.Slaves[addr]
	if f[2] == 0x80 {
		// Read: IN|(n-1) and/or IN before STOP.
		n := 0
		for _, v := range f[4 : len(f)-2] {
			if v == 0xc0 {
				n++
			} else {
				n += int(v & 0x3f)
			}
		}
		if n == 0 {
			b.Probes = append(b.Probes, addr)
		}
		resp := make([]byte, n+1)
		switch {
		case slave == nil:
			resp[0] = 0x80
		case slave.NACK > 0:
			slave.NACK--
			resp[0] = 0x80
		default:
			copy(resp[1:], slave.read(n))
		}
		b.pending = resp
		return
	}
	n := int(f[2]&0x3f) - 1
	data := append([]byte(nil), f[4:4+n]...)
	b.Writes = append(b.Writes, Write{addr, data})
	if slave != nil {
		slave.Writes = append(slave.Writes, data)
	}
}

// WritesTo returns the payloads written to addr.
func (b *Bridge) WritesTo(addr uint16) [][]byte {
	var ws [][]byte
	for _, w := range b.Writes {
		if w.Addr == addr {
			ws = append(ws, w.Data)
		}
	}
	return ws
}

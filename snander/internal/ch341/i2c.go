// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ch341

import (
	"fmt"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Maximum data lengths of a single I2C transaction, limited by the 6-bit
// length fields of the OUT and IN stream commands. Frames this long do not
// fit in one PacketLen bulk packet (a 62-byte write makes a 68-byte frame);
// how the bridge handles such frames is still to be checked on real
// hardware.
const (
	MaxI2CWrite = i2cStmLen - 1 // OUT carries the address byte too
	MaxI2CRead  = i2cStmLen + 1 // IN|(n-1) followed by a plain IN
)

// LegacyStreamMode is the speed byte older snander builds put on the wire for
// both speed settings: `STM_SET | fast ? 2 : 1` parses as
// `(STM_SET | fast) ? 2 : 1`, which is always 2. It is probably a latent bug
// and is sent only on request (see StreamMode).
const LegacyStreamMode byte = 0x02

// Bridge speed codes (low bits of STM_SET).
const (
	speed20k  = 0
	speed100k = 1
	speed400k = 2
	speed750k = 3
)

// StreamMode returns the STM_SET byte selecting 400 kHz (fast) or 100 kHz.
func StreamMode(fast bool) byte {
	if fast {
		return i2cStmSet | speed400k
	}
	return i2cStmSet | speed100k
}

// I2C is the bridge's I2C master. Every operation is one self-contained
// START ... STOP transaction.
type I2C struct {
	t   Transferer
	log *zap.Logger
}

var _ i2c.Bus = (*I2C)(nil)

// NewI2C returns the I2C master of the bridge reachable via t (usually
// a *Session).
func NewI2C(t Transferer, log *zap.Logger) *I2C {
	if log == nil {
		log = zap.NewNop()
	}
	return &I2C{t: t, log: log}
}

func (b *I2C) String() string {
	return "ch341a-i2c"
}

func checkAddr(addr uint16) error {
	if addr > 0x7f {
		return fmt.Errorf("%w: %#x", ErrBadAddress, addr)
	}
	return nil
}

// readFrame builds the command frame of an n-byte read from addr. All bytes
// but the last are read by IN|(n-1) that acknowledges them, the last one by
// a plain IN that does not.
func readFrame(addr uint16, n int) ([]byte, error) {
	if err := checkAddr(addr); err != nil {
		return nil, err
	}
	if n < 0 || n > MaxI2CRead {
		return nil, ErrFrameTooLong
	}
	f := make([]byte, 0, 8)
	f = append(f, cmdI2CStream, i2cStmSta, i2cStmOut, byte(addr<<1)|1)
	if n > 1 {
		f = append(f, i2cStmIn|byte(n-1))
	}
	if n > 0 {
		f = append(f, i2cStmIn)
	}
	return append(f, i2cStmSto, i2cStmEnd), nil
}

// writeFrame builds the command frame that writes data to addr.
func writeFrame(addr uint16, data []byte) ([]byte, error) {
	if err := checkAddr(addr); err != nil {
		return nil, err
	}
	if len(data) > MaxI2CWrite {
		return nil, ErrFrameTooLong
	}
	f := make([]byte, 0, len(data)+6)
	f = append(f, cmdI2CStream, i2cStmSta, i2cStmOut|byte(len(data)+1), byte(addr<<1))
	f = append(f, data...)
	return append(f, i2cStmSto, i2cStmEnd), nil
}

// Read reads len(p) bytes from the slave at addr. A zero length read only
// checks that the slave acknowledges its address.
func (b *I2C) Read(addr uint16, p []byte) (err error) {
	defer wrapErr("i2c read", &err)
	f, err := readFrame(addr, len(p))
	if err != nil {
		return err
	}
	if _, err = b.t.Transfer(Out, f); err != nil {
		return err
	}
	var buf [MaxI2CRead + 1]byte
	resp := buf[:len(p)+1]
	n, err := b.t.Transfer(In, resp)
	if err != nil {
		return err
	}
	if n < len(resp) {
		return ErrShortTransfer
	}
	if resp[0]&0x80 != 0 {
		return ErrNACK
	}
	copy(p, resp[1:])
	return nil
}

// Write writes p to the slave at addr. The bridge reports only transfer
// errors for writes, a missing acknowledge goes unnoticed.
func (b *I2C) Write(addr uint16, p []byte) (err error) {
	defer wrapErr("i2c write", &err)
	f, err := writeFrame(addr, p)
	if err != nil {
		return err
	}
	_, err = b.t.Transfer(Out, f)
	return err
}

// Probe reports whether a slave acknowledges addr.
func (b *I2C) Probe(addr uint16) bool {
	return b.Read(addr, nil) == nil
}

// Tx implements i2c.Bus. The write and the read are separate transactions.
// Tx with both w and r empty probes addr.
func (b *I2C) Tx(addr uint16, w, r []byte) error {
	if len(w) != 0 {
		if err := b.Write(addr, w); err != nil {
			return err
		}
		if len(r) == 0 {
			return nil
		}
	}
	return b.Read(addr, r)
}

// SetStreamMode sends the STM_SET byte mode to the bridge.
func (b *I2C) SetStreamMode(mode byte) (err error) {
	defer wrapErr("set stream mode", &err)
	b.log.Debug("configure stream", zap.Uint8("mode", mode))
	_, err = b.t.Transfer(Out, []byte{cmdI2CStream, mode, i2cStmEnd})
	return err
}

// SetSpeed implements i2c.Bus. Only the four bridge clocks are accepted:
// 20 kHz, 100 kHz, 400 kHz and 750 kHz.
func (b *I2C) SetSpeed(f physic.Frequency) error {
	var code byte
	switch f {
	case 20 * physic.KiloHertz:
		code = speed20k
	case 100 * physic.KiloHertz:
		code = speed100k
	case 400 * physic.KiloHertz:
		code = speed400k
	case 750 * physic.KiloHertz:
		code = speed750k
	default:
		return &Error{"set speed", fmt.Errorf("unsupported I2C clock %s", f)}
	}
	return b.SetStreamMode(i2cStmSet | code)
}

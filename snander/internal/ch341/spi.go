// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ch341

import (
	"math/bits"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
)

// UIO pin states. D0 is CS0, D3 SCK, D5 MOSI.
const (
	pinsIdle     = 0x37 // CS0 high
	pinsSelected = 0x36 // CS0 low
	pinsOutputs  = 0x3f
)

// SPI is the bridge's SPI master (mode 0, MSB first). The bridge shifts
// bytes out LSB first so every byte is bit reversed on the way in and out.
type SPI struct {
	t   Transferer
	log *zap.Logger
}

var _ spi.Conn = (*SPI)(nil)

func NewSPI(t Transferer, log *zap.Logger) *SPI {
	if log == nil {
		log = zap.NewNop()
	}
	return &SPI{t: t, log: log}
}

func (s *SPI) String() string {
	return "ch341a-spi"
}

// Duplex implements conn.Conn.
func (s *SPI) Duplex() conn.Duplex {
	return conn.Full
}

// EnablePins switches the SPI pins between outputs and inputs.
func (s *SPI) EnablePins(on bool) (err error) {
	defer wrapErr("enable pins", &err)
	dir := uioStmDir
	if on {
		dir |= pinsOutputs
	}
	_, err = s.t.Transfer(Out, []byte{cmdUIOStream, uioStmOut | pinsIdle, dir, uioStmEnd})
	return err
}

// SetCS drives the chip select line low (assert) or high.
func (s *SPI) SetCS(assert bool) (err error) {
	defer wrapErr("chip select", &err)
	pins := byte(pinsIdle)
	if assert {
		pins = pinsSelected
	}
	_, err = s.t.Transfer(Out, []byte{cmdUIOStream, uioStmOut | pins, uioStmEnd})
	return err
}

// exchange clocks out through the bus and returns the bytes clocked in.
// Every USB packet carries the stream command and up to PacketLen-1 bytes.
func (s *SPI) exchange(out []byte) (in []byte, err error) {
	defer wrapErr("spi stream", &err)
	in = make([]byte, len(out))
	var pkt [PacketLen]byte
	pkt[0] = cmdSPIStream
	for pos := 0; pos < len(out); {
		n := min(len(out)-pos, PacketLen-1)
		for i, b := range out[pos : pos+n] {
			pkt[1+i] = bits.Reverse8(b)
		}
		if _, err = s.t.Transfer(Out, pkt[:n+1]); err != nil {
			return nil, err
		}
		got, err := s.t.Transfer(In, in[pos:pos+n])
		if err != nil {
			return nil, err
		}
		if got != n {
			return nil, ErrShortTransfer
		}
		for i := pos; i < pos+n; i++ {
			in[i] = bits.Reverse8(in[i])
		}
		pos += n
	}
	return in, nil
}

// Command writes w and then reads len(r) bytes clocking out 0xff. The chip
// select line is not touched.
func (s *SPI) Command(w, r []byte) error {
	if len(w)+len(r) == 0 {
		return nil
	}
	out := make([]byte, len(w)+len(r))
	copy(out, w)
	for i := len(w); i < len(out); i++ {
		out[i] = 0xff
	}
	in, err := s.exchange(out)
	if err != nil {
		return err
	}
	copy(r, in[len(w):])
	return nil
}

// Tx implements conn.Conn: a full duplex transfer of max(len(w), len(r))
// bytes. A short w is padded with 0xff. The chip select line is not touched.
func (s *SPI) Tx(w, r []byte) error {
	out := make([]byte, max(len(w), len(r)))
	n := copy(out, w)
	for i := n; i < len(out); i++ {
		out[i] = 0xff
	}
	in, err := s.exchange(out)
	if err != nil {
		return err
	}
	copy(r, in)
	return nil
}

// TxPackets implements spi.Conn. The chip select is asserted for the whole
// sequence and pulsed high between packets that do not have KeepCS set.
func (s *SPI) TxPackets(p []spi.Packet) (err error) {
	if err = s.SetCS(true); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.SetCS(false))
	}()
	for i := range p {
		if err = s.Tx(p[i].W, p[i].R); err != nil {
			return err
		}
		if !p[i].KeepCS && i < len(p)-1 {
			if err = s.SetCS(false); err != nil {
				return err
			}
			if err = s.SetCS(true); err != nil {
				return err
			}
		}
	}
	return nil
}

// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ch341_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/embeddedgo/flashtools/snander/internal/ch341"
	"github.com/embeddedgo/flashtools/snander/internal/ch341/ch341test"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

func openI2C(t *testing.T, b *ch341test.Bridge) *ch341.I2C {
	t.Helper()
	s, err := ch341.Open(b.Opener(), zaptest.NewLogger(t))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { s.Close() })
	return ch341.NewI2C(s, zaptest.NewLogger(t))
}

func TestI2CRead(t *testing.T) {
	b := ch341test.New(0x50)
	b.Slaves[0x50].Data = []byte{0xde, 0xad, 0xbe, 0xef}
	bus := openI2C(t, b)

	p := make([]byte, 3)
	test.That(t, bus.Read(0x50, p), test.ShouldBeNil)
	test.That(t, p, test.ShouldResemble, []byte{0xde, 0xad, 0xbe})
	test.That(t, b.Frames, test.ShouldResemble, [][]byte{
		{0xaa, 0x74, 0x80, 0xa1, 0xc2, 0xc0, 0x75, 0x00},
	})
	test.That(t, b.InLens, test.ShouldResemble, []int{4})

	p = p[:1]
	test.That(t, bus.Read(0x50, p), test.ShouldBeNil)
	test.That(t, p, test.ShouldResemble, []byte{0xef})
}

func TestI2CReadNACK(t *testing.T) {
	b := ch341test.New()
	bus := openI2C(t, b)
	p := []byte{0x55}
	err := bus.Read(0x50, p)
	test.That(t, errors.Is(err, ch341.ErrNACK), test.ShouldBeTrue)
	test.That(t, p, test.ShouldResemble, []byte{0x55})
}

func TestI2CReadShort(t *testing.T) {
	bus := ch341.NewI2C(shortReader{}, nil)
	err := bus.Read(0x50, make([]byte, 2))
	test.That(t, errors.Is(err, ch341.ErrShortTransfer), test.ShouldBeTrue)
	var cerr *ch341.Error
	test.That(t, errors.As(err, &cerr), test.ShouldBeTrue)
	test.That(t, cerr.Op, test.ShouldEqual, "i2c read")
}

type shortReader struct{}

func (shortReader) Transfer(dir ch341.Direction, buf []byte) (int, error) {
	if dir == ch341.In {
		return 1, nil
	}
	return len(buf), nil
}

func TestI2CWrite(t *testing.T) {
	b := ch341test.New()
	bus := openI2C(t, b)
	// Writes are not acknowledged: a missing slave is not an error.
	test.That(t, bus.Write(0x49, []byte{0x10, 0x9f}), test.ShouldBeNil)
	test.That(t, b.Frames, test.ShouldResemble, [][]byte{
		{0xaa, 0x74, 0x83, 0x92, 0x10, 0x9f, 0x75, 0x00},
	})
	test.That(t, b.InLens, test.ShouldBeEmpty)

	b.FailOut = func([]byte) error { return ch341test.ErrInjected }
	err := bus.Write(0x49, []byte{0x10})
	test.That(t, errors.Is(err, ch341test.ErrInjected), test.ShouldBeTrue)

	err = bus.Write(0x49, make([]byte, ch341.MaxI2CWrite+1))
	test.That(t, errors.Is(err, ch341.ErrFrameTooLong), test.ShouldBeTrue)
}

func TestI2CTx(t *testing.T) {
	b := ch341test.New(0x49)
	b.Slaves[0x49].Data = []byte{7, 8}
	bus := openI2C(t, b)
	dev := &i2c.Dev{Bus: bus, Addr: 0x49}

	r := make([]byte, 2)
	test.That(t, dev.Tx([]byte{0x11}, r), test.ShouldBeNil)
	test.That(t, r, test.ShouldResemble, []byte{7, 8})
	test.That(t, b.Slaves[0x49].Writes, test.ShouldResemble, [][]byte{{0x11}})

	test.That(t, dev.Tx(nil, nil), test.ShouldBeNil)
	test.That(t, b.Probes, test.ShouldResemble, []uint16{0x49})
	test.That(t, bus.Probe(0x48), test.ShouldBeFalse)
}

func TestI2CSetSpeed(t *testing.T) {
	b := ch341test.New()
	bus := openI2C(t, b)
	test.That(t, bus.SetSpeed(20*physic.KiloHertz), test.ShouldBeNil)
	test.That(t, bus.SetSpeed(750*physic.KiloHertz), test.ShouldBeNil)
	test.That(t, bus.SetSpeed(1*physic.MegaHertz), test.ShouldNotBeNil)
	test.That(t, bus.SetStreamMode(ch341.LegacyStreamMode), test.ShouldBeNil)
	test.That(t, b.Modes, test.ShouldResemble, []byte{0x60, 0x63, 0x02})
}

func TestScan(t *testing.T) {
	b := ch341test.New(0x00, 0x49, 0x59, 0x7f)
	bus := openI2C(t, b)
	test.That(t, bus.Scan(), test.ShouldResemble, []uint16{0x00, 0x49, 0x59, 0x7f})
	test.That(t, b.Probes, test.ShouldHaveLength, 0x80)

	// Transfer failures read as absent devices.
	b.FailIn = func(int) error { return ch341test.ErrInjected }
	test.That(t, bus.Scan(), test.ShouldBeEmpty)
}

func TestDetect(t *testing.T) {
	b := ch341test.New(0x49, 0x59)
	bus := openI2C(t, b)
	var out bytes.Buffer
	bus.Detect(&out)
	lines := strings.Split(out.String(), "\n")
	test.That(t, lines[0], test.ShouldEqual, "     0  1  2  3  4  5  6  7  8  9  a  b  c  d  e  f")
	test.That(t, lines, test.ShouldHaveLength, 1+8+2)
	test.That(t, lines[1], test.ShouldEqual, "00: -- -- -- -- -- -- -- -- -- -- -- -- -- -- -- -- ")
	test.That(t, lines[5], test.ShouldEqual, "40: -- -- -- -- -- -- -- -- -- 49 -- -- -- -- -- -- ")
	test.That(t, lines[6], test.ShouldEqual, "50: -- -- -- -- -- -- -- -- -- 59 -- -- -- -- -- -- ")
}

// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ch341_test

import (
	"errors"
	"testing"

	"github.com/embeddedgo/flashtools/snander/internal/ch341"
	"github.com/embeddedgo/flashtools/snander/internal/ch341/ch341test"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
	"periph.io/x/conn/v3/spi"
)

func openSPI(t *testing.T, b *ch341test.Bridge) *ch341.SPI {
	t.Helper()
	s, err := ch341.Open(b.Opener(), zaptest.NewLogger(t))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { s.Close() })
	return ch341.NewSPI(s, zaptest.NewLogger(t))
}

// echo makes the chip return every byte incremented by one.
func echo(mosi []byte) []byte {
	miso := make([]byte, len(mosi))
	for i, v := range mosi {
		miso[i] = v + 1
	}
	return miso
}

func TestSPIPackets(t *testing.T) {
	b := ch341test.New()
	b.MISO = echo
	s := openSPI(t, b)

	w := make([]byte, 70)
	for i := range w {
		w[i] = byte(i)
	}
	r := make([]byte, 70)
	test.That(t, s.Tx(w, r), test.ShouldBeNil)
	test.That(t, b.MOSI, test.ShouldResemble, w)
	test.That(t, r, test.ShouldResemble, echo(w))

	test.That(t, b.Frames, test.ShouldHaveLength, 3)
	for i, n := range []int{31, 31, 8} {
		test.That(t, b.Frames[i], test.ShouldHaveLength, n+1)
		test.That(t, b.Frames[i][0], test.ShouldEqual, byte(0xa8))
	}
	test.That(t, b.InLens, test.ShouldResemble, []int{31, 31, 8})

	// Bytes go out LSB first.
	test.That(t, b.Frames[0][2], test.ShouldEqual, byte(0x80))
	test.That(t, b.Frames[0][4], test.ShouldEqual, byte(0xc0))
}

func TestSPICommand(t *testing.T) {
	b := ch341test.New()
	b.MISO = func(mosi []byte) []byte {
		return []byte{0, 0xc2, 0x20, 0x18}
	}
	s := openSPI(t, b)
	id := make([]byte, 3)
	test.That(t, s.Command([]byte{0x9f}, id), test.ShouldBeNil)
	test.That(t, id, test.ShouldResemble, []byte{0xc2, 0x20, 0x18})
	test.That(t, b.MOSI, test.ShouldResemble, []byte{0x9f, 0xff, 0xff, 0xff})

	b.Frames = nil
	test.That(t, s.Command(nil, nil), test.ShouldBeNil)
	test.That(t, b.Frames, test.ShouldBeEmpty)
}

func TestSPIReadFailure(t *testing.T) {
	b := ch341test.New()
	s := openSPI(t, b)
	b.FailIn = func(n int) error {
		if n > 1 {
			return ch341test.ErrInjected
		}
		return nil
	}
	err := s.Tx([]byte{1, 2}, nil)
	test.That(t, errors.Is(err, ch341test.ErrInjected), test.ShouldBeTrue)
}

func TestSPIChipSelect(t *testing.T) {
	b := ch341test.New()
	s := openSPI(t, b)
	test.That(t, s.EnablePins(true), test.ShouldBeNil)
	test.That(t, s.SetCS(true), test.ShouldBeNil)
	test.That(t, s.SetCS(false), test.ShouldBeNil)
	test.That(t, s.EnablePins(false), test.ShouldBeNil)
	test.That(t, b.UIO, test.ShouldResemble, [][]byte{
		{0xab, 0xb7, 0x7f, 0x20},
		{0xab, 0xb6, 0x20},
		{0xab, 0xb7, 0x20},
		{0xab, 0xb7, 0x40, 0x20},
	})
}

func TestSPITxPackets(t *testing.T) {
	b := ch341test.New()
	s := openSPI(t, b)
	p := []spi.Packet{
		{W: []byte{0x06}},
		{W: []byte{0x02, 0x00, 0x00}, KeepCS: true},
		{W: []byte{0xaa}},
	}
	test.That(t, s.TxPackets(p), test.ShouldBeNil)
	test.That(t, b.MOSI, test.ShouldResemble, []byte{0x06, 0x02, 0x00, 0x00, 0xaa})
	test.That(t, b.UIO, test.ShouldResemble, [][]byte{
		{0xab, 0xb6, 0x20}, // select
		{0xab, 0xb7, 0x20}, // pulse after the first packet
		{0xab, 0xb6, 0x20},
		{0xab, 0xb7, 0x20}, // final release
	})

	// The chip select is released when a packet fails.
	b.UIO = nil
	b.FailOut = func(f []byte) error {
		if f[0] == 0xa8 {
			return ch341test.ErrInjected
		}
		return nil
	}
	err := s.TxPackets(p)
	test.That(t, errors.Is(err, ch341test.ErrInjected), test.ShouldBeTrue)
	test.That(t, b.UIO, test.ShouldResemble, [][]byte{
		{0xab, 0xb6, 0x20},
		{0xab, 0xb7, 0x20},
	})
}

func TestSPIController(t *testing.T) {
	b := ch341test.New()
	c := &ch341.SPIController{Open: b.Opener(), Log: zaptest.NewLogger(t)}
	test.That(t, c.Name(), test.ShouldEqual, "ch341a")

	err := c.SendCommand([]byte{0x9f}, nil)
	test.That(t, errors.Is(err, ch341.ErrNoSession), test.ShouldBeTrue)

	test.That(t, c.Init(ch341.Options{Fast: true}), test.ShouldBeNil)
	test.That(t, b.Modes, test.ShouldResemble, []byte{0x62})
	test.That(t, b.UIO, test.ShouldResemble, [][]byte{{0xab, 0xb7, 0x7f, 0x20}})

	err = c.Init(ch341.Options{})
	test.That(t, errors.Is(err, ch341.ErrSessionActive), test.ShouldBeTrue)

	test.That(t, c.CSRelease(true), test.ShouldBeNil)
	test.That(t, c.SendCommand([]byte{0x05}, make([]byte, 1)), test.ShouldBeNil)
	test.That(t, c.CSRelease(false), test.ShouldBeNil)
	test.That(t, b.MOSI, test.ShouldResemble, []byte{0x05, 0xff})

	test.That(t, c.Shutdown(), test.ShouldBeNil)
	test.That(t, b.Closed, test.ShouldEqual, 1)
	test.That(t, b.UIO[len(b.UIO)-1], test.ShouldResemble, []byte{0xab, 0xb7, 0x40, 0x20})
	test.That(t, c.Shutdown(), test.ShouldBeNil)
	test.That(t, b.Closed, test.ShouldEqual, 1)
}

func TestSPIControllerRollback(t *testing.T) {
	b := ch341test.New()
	b.FailOut = func(f []byte) error {
		if f[0] == 0xab {
			return ch341test.ErrInjected
		}
		return nil
	}
	c := &ch341.SPIController{Open: b.Opener()}
	err := c.Init(ch341.Options{})
	test.That(t, errors.Is(err, ch341test.ErrInjected), test.ShouldBeTrue)
	test.That(t, b.Closed, test.ShouldEqual, 1)
	test.That(t, b.Modes, test.ShouldResemble, []byte{0x61})

	// A failed bring-up leaves the controller free for another attempt.
	b.FailOut = nil
	test.That(t, c.Init(ch341.Options{}), test.ShouldBeNil)
	test.That(t, c.Shutdown(), test.ShouldBeNil)
}

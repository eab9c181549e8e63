// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ch341

import (
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SPIName is the name of the native SPI controller.
const SPIName = "ch341a"

var ErrSessionActive = errors.New("session already initialized")

// SPIController drives a flash chip connected directly to the SPI pins of
// the bridge.
type SPIController struct {
	Open Opener      // defaults to USB("")
	Log  *zap.Logger // defaults to a no-op logger

	s   *Session
	spi *SPI
}

func (c *SPIController) Name() string {
	return SPIName
}

func (c *SPIController) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// Init opens the bridge, sets the stream speed and enables the SPI pins.
func (c *SPIController) Init(opts Options) (err error) {
	defer wrapErr("spi init", &err)
	if c.s.Live() {
		return ErrSessionActive
	}
	open := c.Open
	if open == nil {
		open = USB("")
	}
	log := c.logger()
	s, err := Open(open, log)
	if err != nil {
		return err
	}
	log.Info("found programmer device", zap.String("device", "WinChipHead (WCH) - CH341A"))
	bus := NewSPI(s, log)
	err = NewI2C(s, log).SetStreamMode(opts.StreamMode())
	if err == nil {
		err = bus.EnablePins(true)
	}
	if err != nil {
		return multierr.Append(err, s.Close())
	}
	c.s, c.spi = s, bus
	return nil
}

// Shutdown releases the SPI pins and closes the session.
func (c *SPIController) Shutdown() (err error) {
	if !c.s.Live() {
		return nil
	}
	defer wrapErr("spi shutdown", &err)
	if perr := c.spi.EnablePins(false); perr != nil {
		c.logger().Debug("failed to release SPI pins", zap.Error(perr))
	}
	err = c.s.Close()
	c.s, c.spi = nil, nil
	return
}

// SendCommand writes w to the chip, then reads len(r) bytes.
func (c *SPIController) SendCommand(w, r []byte) error {
	if !c.s.Live() {
		return &Error{"spi command", ErrNoSession}
	}
	return c.spi.Command(w, r)
}

// CSRelease asserts (true) or deasserts (false) the chip select line.
func (c *SPIController) CSRelease(assert bool) error {
	if !c.s.Live() {
		return &Error{"chip select", ErrNoSession}
	}
	return c.spi.SetCS(assert)
}

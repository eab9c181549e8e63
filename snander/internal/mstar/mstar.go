// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mstar reaches the SPI flash of an MStar/SigmaStar SoC through its
// ISP command port, a tunnel on the I2C bus driven by a CH341A bridge.
package mstar

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/embeddedgo/flashtools/snander/internal/ch341"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
)

// Name is the name of the I2C-tunneled controller.
const Name = "mstar"

// Tunneled port addresses.
const (
	PortAddr  = 0x49 // ISP command port
	DebugAddr = 0x59 // serial debug port
)

// Command port request codes, the first byte of every tunneled payload.
const (
	reqWrite byte = 0x10
	reqRead  byte = 0x11
	reqEnd   byte = 0x12
)

// MaxPacket is the largest payload of one tunneled write (and read).
const MaxPacket = 31

var (
	ErrTooLong = errors.New("payload exceeds tunnel packet")
	ErrUnlock  = errors.New("debug port unlock rejected")
)

var ispTag = [...]byte{'M', 'S', 'T', 'A', 'R'}

type Error struct {
	Op  string
	Err error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return "mstar: " + e.Op + ": " + e.Err.Error()
}

func wrapErr(op string, err *error) {
	if *err != nil {
		*err = &Error{op, *err}
	}
}

// Controller is the I2C-tunneled backend of the flash programmer.
type Controller struct {
	Open ch341.Opener // defaults to ch341.USB("")
	Log  *zap.Logger  // defaults to a no-op logger
	Out  io.Writer    // bus scan output, defaults to os.Stdout

	s    *ch341.Session
	bus  *ch341.I2C
	port *i2c.Dev
}

func (c *Controller) Name() string {
	return Name
}

func (c *Controller) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

// Init opens the bridge and enters the ISP mode of the SoC. Any fatal step
// closes the session before returning.
func (c *Controller) Init(opts ch341.Options) (err error) {
	defer wrapErr("init", &err)
	if c.s.Live() {
		return ch341.ErrSessionActive
	}
	open := c.Open
	if open == nil {
		open = ch341.USB("")
	}
	log := c.logger()
	s, err := ch341.Open(open, log)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, s.Close())
		}
	}()
	log.Info("found programmer device", zap.String("device", "WinChipHead (WCH) - CH341A"))
	log.Info("using I2C speed mode", zap.String("speed", opts.SpeedName()))

	bus := ch341.NewI2C(s, log)
	if err = bus.SetStreamMode(opts.StreamMode()); err != nil {
		return fmt.Errorf("configure stream interface: %w", err)
	}
	if opts.Query {
		out := c.Out
		if out == nil {
			out = os.Stdout
		}
		bus.Detect(out)
	}
	port := &i2c.Dev{Bus: bus, Addr: PortAddr}
	if err = port.Tx(nil, nil); err != nil {
		return fmt.Errorf("i2c device %#x: %w: %w", PortAddr, ch341.ErrNotFound, err)
	}
	dbg := &i2c.Dev{Bus: bus, Addr: DebugAddr}
	if dbg.Tx(nil, nil) != nil {
		if uerr := unlockDebug(dbg); uerr != nil {
			log.Warn("failed to clear pm_uart bit", zap.Error(uerr))
		}
	}
	if _, werr := port.Write(ispTag[:]); werr != nil {
		log.Debug("ISP tag rejected, releasing the port", zap.Error(werr))
		if err = release(port); err != nil {
			return err
		}
	}
	c.s, c.bus, c.port = s, bus, port
	return nil
}

// Shutdown closes the session. It does nothing if Init did not succeed.
func (c *Controller) Shutdown() (err error) {
	defer wrapErr("shutdown", &err)
	err = c.s.Close()
	c.s, c.bus, c.port = nil, nil, nil
	return
}

// SendCommand performs the read phase (if len(r) > 0) and then the write
// phase (if len(w) > 0) of one tunneled command.
func (c *Controller) SendCommand(w, r []byte) (err error) {
	defer wrapErr("send command", &err)
	if len(w) > MaxPacket || len(r) > MaxPacket {
		return ErrTooLong
	}
	if len(r) > 0 {
		if err = c.ready(); err != nil {
			return err
		}
		if _, err = c.port.Write([]byte{reqRead}); err != nil {
			return err
		}
		if err = c.port.Tx(nil, r); err != nil {
			return err
		}
	}
	if len(w) > 0 {
		if err = c.ready(); err != nil {
			return err
		}
		var buf [MaxPacket + 1]byte
		buf[0] = reqWrite
		n := copy(buf[1:], w)
		if _, err = c.port.Write(buf[:1+n]); err != nil {
			return err
		}
	}
	return nil
}

// CSRelease ends the current command (the tunnel has no chip select line so
// assert is ignored).
func (c *Controller) CSRelease(assert bool) (err error) {
	defer wrapErr("release", &err)
	if err = c.ready(); err != nil {
		return err
	}
	return release(c.port)
}

// Bus returns the underlying I2C bus (nil if not initialized).
func (c *Controller) Bus() *ch341.I2C {
	return c.bus
}

func (c *Controller) ready() error {
	if !c.s.Live() {
		return ch341.ErrNoSession
	}
	return nil
}

func release(port *i2c.Dev) error {
	_, err := port.Write([]byte{reqEnd})
	return err
}

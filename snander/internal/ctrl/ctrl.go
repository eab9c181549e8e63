// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctrl is the seam between the flash command layer and the bridge
// backends. The flash layer sees only Controller and Bus; which backend
// sits behind them is decided once, by name, at startup.
package ctrl

import (
	"fmt"
	"io"
	"strings"

	"github.com/embeddedgo/flashtools/snander/internal/ch341"
	"github.com/embeddedgo/flashtools/snander/internal/mstar"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Controller is one bus backend.
type Controller interface {
	Name() string
	// Init opens the backend. It must leave nothing open if it fails.
	Init(opts ch341.Options) error
	// Shutdown closes the backend. It is safe to call it on a backend that
	// was never initialized.
	Shutdown() error
	// SendCommand writes w and then reads len(r) bytes into r.
	SendCommand(w, r []byte) error
	// CSRelease asserts (true) or releases (false) the chip select.
	CSRelease(assert bool) error
}

// Kind is the backend variant.
type Kind uint8

const (
	I2CTunnel Kind = iota
	NativeSPI
)

func (k Kind) String() string {
	switch k {
	case I2CTunnel:
		return "i2c-tunnel"
	case NativeSPI:
		return "native-spi"
	}
	return "unknown"
}

// Config carries what a backend needs from its environment.
type Config struct {
	Open ch341.Opener // nil selects the first CH341A on the bus
	Log  *zap.Logger
	Out  io.Writer // diagnostic output (bus scan)
}

// Descriptor describes one of the known backends.
type Descriptor struct {
	Name   string
	Kind   Kind
	Descr  string
	Packet int // maximum bytes per SendCommand call, 0 means unlimited

	newController func(cfg Config) Controller
}

// New returns a fresh, uninitialized controller of the d kind.
func (d Descriptor) New(cfg Config) Controller {
	return d.newController(cfg)
}

var descriptors = [...]Descriptor{
	{
		Name:   mstar.Name,
		Kind:   I2CTunnel,
		Descr:  "MStar ISP port tunneled over CH341A I2C",
		Packet: mstar.MaxPacket,
		newController: func(cfg Config) Controller {
			return &mstar.Controller{Open: cfg.Open, Log: cfg.Log, Out: cfg.Out}
		},
	},
	{
		Name:  ch341.SPIName,
		Kind:  NativeSPI,
		Descr: "CH341A native SPI",
		newController: func(cfg Config) Controller {
			return &ch341.SPIController{Open: cfg.Open, Log: cfg.Log}
		},
	},
}

var ErrUnknownController = errors.New("unknown programmer")

// Descriptors returns the table of known backends.
func Descriptors() []Descriptor {
	return descriptors[:]
}

// Lookup finds the descriptor of the named backend.
func Lookup(name string) (Descriptor, error) {
	for _, d := range descriptors {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, errors.Wrapf(
		ErrUnknownController, "%q (known: %s)", name, strings.Join(Names(), ", "),
	)
}

// Names lists the names of the known backends.
func Names() []string {
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	return names
}

// Select looks up the named backend and wraps a new instance in a Bus.
func Select(name string, cfg Config) (*Bus, error) {
	d, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return NewBus(d.New(cfg), d.Kind, d.Packet), nil
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Kind)
}

// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ch341 talks to the WCH CH341A USB bridge in its I2C/SPI mode. It
// turns bus operations into the bridge's command streams and moves them over
// the two bulk endpoints of the device.
package ch341

import "errors"

// USB identification of the CH341A in I2C/SPI (EPP/MEM) mode.
const (
	VID = 0x1a86
	PID = 0x5512
)

// Bulk endpoint addresses.
const (
	epWrite = 0x02
	epRead  = 0x82
)

// Stream commands. Every command frame starts with one of them.
const (
	cmdSPIStream byte = 0xa8
	cmdI2CStream byte = 0xaa
	cmdUIOStream byte = 0xab
)

// I2C stream sub-commands. OUT and IN carry a 6-bit length in their low bits.
const (
	i2cStmEnd byte = 0x00
	i2cStmSet byte = 0x60
	i2cStmSta byte = 0x74
	i2cStmSto byte = 0x75
	i2cStmOut byte = 0x80
	i2cStmIn  byte = 0xc0

	i2cStmLen = 0x3f
)

// UIO stream sub-commands (direct pin control).
const (
	uioStmIn  byte = 0x00
	uioStmDir byte = 0x40
	uioStmOut byte = 0x80
	uioStmEnd byte = 0x20
)

// PacketLen is the size of the bridge's USB bulk packet.
const PacketLen = 32

var (
	ErrNoSession     = errors.New("no live device session")
	ErrNotFound      = errors.New("device not found")
	ErrNACK          = errors.New("no acknowledge from slave")
	ErrFrameTooLong  = errors.New("transfer does not fit in the length field")
	ErrShortTransfer = errors.New("short transfer")
	ErrBadAddress    = errors.New("bad 7-bit I2C address")
)

type Error struct {
	Op  string
	Err error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return "ch341: " + e.Op + ": " + e.Err.Error()
}

func wrapErr(op string, err *error) {
	if *err != nil {
		*err = &Error{op, *err}
	}
}

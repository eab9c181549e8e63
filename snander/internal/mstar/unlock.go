// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mstar

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// Serial debug port sequence that clears the pm_uart bit. While it is set
// the UART pins are routed to the PM core and the ISP port stays closed.
var (
	debugTag  = [...]byte{'S', 'E', 'R', 'D', 'B'}
	debugInit = [...]byte{0x81, 0x83, 0x84, 0x53, 0x7f, 0x35, 0x71}
	debugUART = [...]byte{0x10, 0x00, 0x00, 0x0e, 0x12, 0x00, 0x00}
	debugExit = [...]byte{0x34, 0x45}
)

// unlockDebug runs the debug port sequence on dbg. It stops at the first
// failing step.
func unlockDebug(dbg *i2c.Dev) (err error) {
	defer wrapErr("unlock", &err)
	if _, err = dbg.Write(debugTag[:]); err != nil {
		return err
	}
	for _, b := range debugInit {
		if _, err = dbg.Write([]byte{b}); err != nil {
			return err
		}
	}
	if _, err = dbg.Write(debugUART[:]); err != nil {
		return err
	}
	if _, err = dbg.Write(debugUART[:6]); err != nil {
		return err
	}
	var reg [1]byte
	if err = dbg.Tx(nil, reg[:]); err != nil {
		return err
	}
	if reg[0] != 0 {
		return fmt.Errorf("%w: register %#02x", ErrUnlock, reg[0])
	}
	for _, b := range debugExit {
		if _, err = dbg.Write([]byte{b}); err != nil {
			return err
		}
	}
	return nil
}

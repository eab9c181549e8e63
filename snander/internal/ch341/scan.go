// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ch341

import (
	"fmt"
	"io"
)

// Scan probes every 7-bit address and returns the ones that acknowledged.
// A probe error only means that nobody answered.
func (b *I2C) Scan() []uint16 {
	var found []uint16
	for addr := uint16(0); addr < 0x80; addr++ {
		if b.Probe(addr) {
			found = append(found, addr)
		}
	}
	return found
}

// Detect scans the bus and prints the result as an i2cdetect-like grid.
func (b *I2C) Detect(w io.Writer) {
	present := make(map[uint16]bool)
	for _, a := range b.Scan() {
		present[a] = true
	}
	io.WriteString(w, "     0  1  2  3  4  5  6  7  8  9  a  b  c  d  e  f")
	for addr := uint16(0); addr < 0x80; addr++ {
		if addr%16 == 0 {
			fmt.Fprintf(w, "\n%02x: ", addr)
		}
		if present[addr] {
			fmt.Fprintf(w, "%02x ", addr)
		} else {
			io.WriteString(w, "-- ")
		}
	}
	io.WriteString(w, "\n\n")
}

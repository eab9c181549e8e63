// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xfer

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
	"go.uber.org/multierr"
)

const pad = 0xff

func isIntelHex(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".hex")
}

// readInput returns the content of a binary or Intel HEX file. The data
// segments of a HEX file are flattened, gaps are filled with pad.
func readInput(name string) ([]byte, error) {
	if !isIntelHex(name) {
		return os.ReadFile(name)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mem := gohex.NewMemory()
	if err = mem.ParseIntelHex(f); err != nil {
		return nil, err
	}
	return flatten(mem), nil
}

func flatten(mem *gohex.Memory) []byte {
	segs := mem.GetDataSegments()
	if len(segs) == 0 {
		return nil
	}
	start := segs[0].Address
	last := segs[len(segs)-1]
	end := last.Address + uint32(len(last.Data))
	return mem.ToBinary(start, end-start, pad)
}

// writeOutput stores data in a binary or Intel HEX file.
func writeOutput(name string, addr uint32, data []byte) (err error) {
	if !isIntelHex(name) {
		return os.WriteFile(name, data, 0o644)
	}
	mem := gohex.NewMemory()
	if err = mem.AddBinary(addr, data); err != nil {
		return err
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return mem.DumpIntelHex(f, 16)
}

// hexDump formats data like hexdump -C. A non-zero addr is printed in
// a header line, the offsets stay relative to it.
func hexDump(addr uint32, data []byte) string {
	s := hex.Dump(data)
	if addr != 0 {
		s = fmt.Sprintf("%#08x:\n%s", addr, s)
	}
	return s
}

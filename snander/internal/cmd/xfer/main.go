// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xfer

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/embeddedgo/flashtools/snander/internal/ch341"
	"github.com/embeddedgo/flashtools/snander/internal/ctrl"
	"github.com/embeddedgo/flashtools/snander/internal/util"
	"go.uber.org/multierr"
)

const Descr = "send one raw command to the flash chip and read the response"

func Main(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [OPTIONS]\nOptions:\n", cmd)
		fs.PrintDefaults()
	}
	name := fs.String(
		"p", ctrl.Names()[0],
		"select programmer device ("+strings.Join(ctrl.Names(), ", ")+")",
	)
	fast := fs.Bool("s", false, "enable I2C fast speed mode (mstar)")
	query := fs.Bool("q", false, "query connected I2C devices (mstar)")
	compat := fs.Bool("compat", false, "send the legacy stream speed byte")
	optText := fs.String("opt", "", "programmer `OPTIONS` as free text (speed, query, compat)")
	busAddr := fs.String("usb", "", "select the USB device by `BUS:ADDR`")
	wHex := fs.String("w", "", "`bytes` to write, in hex (eg. \"9f\" or \"03 00 10 00\")")
	inName := fs.String("i", "", "append the content of `FILE` to the written bytes (.hex: Intel HEX)")
	n := fs.Int("n", 0, "number of bytes to read")
	outName := fs.String("o", "", "save the response to `FILE` (.hex: Intel HEX) instead of printing it")
	addrStr := fs.String("addr", "0", "load `ADDRESS` of the response in the Intel HEX output")
	cs := fs.Bool("cs", true, "assert the chip select around the command")
	quiet := fs.Bool("quiet", false, "do not print the progress")
	verbose := fs.Bool("v", false, "print debug messages")
	fs.Parse(args)
	if fs.NArg() != 0 || *n < 0 {
		fs.Usage()
		os.Exit(1)
	}
	addr, err := util.ParseUint(*addrStr)
	util.FatalErr("addr", err)
	w, err := util.ParseHex(*wHex)
	util.FatalErr("w", err)
	if *inName != "" {
		data, err := readInput(*inName)
		util.FatalErr("", err)
		w = append(w, data...)
	}
	if len(w) == 0 && *n == 0 {
		util.Fatal("nothing to transfer, use -w, -i or -n")
	}

	log := util.NewLogger(*verbose)
	defer log.Sync()
	bus, err := ctrl.Select(*name, ctrl.Config{
		Open: ch341.USB(*busAddr),
		Log:  log,
		Out:  os.Stdout,
	})
	util.FatalErr("", err)
	opts := ch341.ParseOptions(util.JoinOptions(
		*optText,
		util.Flag{Name: "speed", Set: *fast},
		util.Flag{Name: "query", Set: *query},
		util.Flag{Name: "compat", Set: *compat},
	))
	util.FatalErr("", bus.Init(opts))

	r := make([]byte, *n)
	err = transfer(bus, w, r, *cs, *quiet)
	err = multierr.Append(err, bus.Shutdown())
	util.FatalErr(*name, err)

	if len(r) == 0 {
		return
	}
	if *outName == "" {
		os.Stdout.WriteString(hexDump(uint32(addr), r))
		return
	}
	util.FatalErr("", writeOutput(*outName, uint32(addr), r))
}

// blockSize is the amount of data handed to the bus between progress updates.
const blockSize = 4096

func transfer(bus *ctrl.Bus, w, r []byte, cs, quiet bool) (err error) {
	if cs {
		if err = bus.ChipSelectLow(); err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, bus.ChipSelectHigh())
		}()
	}
	progress := !quiet && len(w) > blockSize
	for i := 0; i < len(w); i += blockSize {
		if progress {
			util.Progress("Writing:", i, len(w), 1024, "KiB")
		}
		if err = bus.WriteNBytes(w[i:min(i+blockSize, len(w))]); err != nil {
			return err
		}
	}
	if progress {
		util.Progress("Written:", len(w), len(w), 1024, "KiB")
	}
	if len(r) != 0 {
		err = bus.ReadNBytes(r)
	}
	return err
}

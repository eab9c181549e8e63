// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package detect

import (
	"flag"
	"fmt"
	"os"

	"github.com/embeddedgo/flashtools/snander/internal/ch341"
	"github.com/embeddedgo/flashtools/snander/internal/ctrl"
	"github.com/embeddedgo/flashtools/snander/internal/mstar"
	"github.com/embeddedgo/flashtools/snander/internal/util"
)

const Descr = "scan the I2C bus of the CH341A and open the MStar ISP port"

func Main(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [OPTIONS]\nOptions:\n", cmd)
		fs.PrintDefaults()
	}
	fast := fs.Bool("s", false, "enable I2C fast speed mode")
	compat := fs.Bool("compat", false, "send the legacy stream speed byte")
	optText := fs.String("opt", "", "programmer `OPTIONS` as free text (speed, compat)")
	busAddr := fs.String("usb", "", "select the USB device by `BUS:ADDR`")
	verbose := fs.Bool("v", false, "print debug messages")
	fs.Parse(args)
	if fs.NArg() != 0 {
		fs.Usage()
		os.Exit(1)
	}
	log := util.NewLogger(*verbose)
	defer log.Sync()

	bus, err := ctrl.Select(mstar.Name, ctrl.Config{
		Open: ch341.USB(*busAddr),
		Log:  log,
		Out:  os.Stdout,
	})
	util.FatalErr("", err)
	opts := ch341.ParseOptions(util.JoinOptions(
		*optText,
		util.Flag{Name: "speed", Set: *fast},
		util.Flag{Name: "query", Set: true},
		util.Flag{Name: "compat", Set: *compat},
	))
	util.FatalErr("", bus.Init(opts))
	fmt.Printf("ISP port %#02x is open\n", mstar.PortAddr)
	util.FatalErr("", bus.Shutdown())
}

// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	usb "github.com/google/gousb"
)

var ErrNoDevice = errors.New("no matching USB device")

func parseBusAddr(busAddr string) (int, int) {
	s := strings.Split(busAddr, ":")
	if len(s) != 2 {
		return -1, -1
	}
	bus, err := strconv.ParseUint(s[0], 10, 8)
	if err != nil {
		return -1, -1
	}
	dev, err := strconv.ParseUint(s[1], 10, 8)
	if err != nil {
		return -1, -1
	}
	return int(bus), int(dev)
}

// OpenUSB opens all devices with the given vendor and product identifiers.
// If busAddr (BUS:ADDR) is not empty only the device at this location is
// considered.
func OpenUSB(vendor, product usb.ID, busAddr string) (ctx *usb.Context, devs []*usb.Device, err error) {
	bus, addr := parseBusAddr(busAddr)
	if busAddr != "" && bus < 0 {
		err = errors.New("bad USB device address: " + busAddr)
		return
	}
	ctx = usb.NewContext()
	devs, err = ctx.OpenDevices(func(desc *usb.DeviceDesc) bool {
		if bus >= 0 && (desc.Bus != bus || desc.Address != addr) {
			return false
		}
		if desc.Vendor != vendor || desc.Product != product {
			return false
		}
		return true
	})
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		ctx.Close()
		devs = nil
	}
	return
}

// OpenOneUSB works like OpenUSB but requires exactly one matching device.
func OpenOneUSB(vendor, product usb.ID, busAddr string) (*usb.Context, *usb.Device, error) {
	ctx, devs, err := OpenUSB(vendor, product, busAddr)
	if err != nil {
		return nil, nil, err
	}
	switch len(devs) {
	case 1:
		return ctx, devs[0], nil
	case 0:
		ctx.Close()
		return nil, nil, fmt.Errorf("%w [%s:%s]", ErrNoDevice, vendor, product)
	}
	for _, d := range devs {
		d.Close()
	}
	ctx.Close()
	return nil, nil, fmt.Errorf(
		"found %d devices [%s:%s], select one with BUS:ADDR",
		len(devs), vendor, product,
	)
}

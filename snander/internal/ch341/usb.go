// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ch341

import (
	"errors"

	"github.com/embeddedgo/flashtools/snander/internal/util"
	usb "github.com/google/gousb"
	"go.uber.org/multierr"
)

// USB returns an Opener that finds the CH341A by its VID:PID. You can select
// the concrete device on the USB bus by providing BUS:ADDR string where both
// BUS and ADDR are decimal unsigned integers.
func USB(busAddr string) Opener {
	return func() (Handle, error) {
		ctx, dev, err := util.OpenOneUSB(VID, PID, busAddr)
		if err != nil {
			if errors.Is(err, util.ErrNoDevice) {
				err = multierr.Append(ErrNotFound, err)
			}
			return nil, err
		}
		return &usbHandle{ctx: ctx, dev: dev}, nil
	}
}

type usbHandle struct {
	ctx  *usb.Context
	dev  *usb.Device
	cfg  *usb.Config
	intf *usb.Interface
}

func (h *usbHandle) DetachKernelDriver() error {
	return h.dev.SetAutoDetach(true)
}

func (h *usbHandle) Claim() (OutPipe, InPipe, error) {
	cfg, err := h.dev.Config(1)
	if err != nil {
		return nil, nil, err
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		return nil, nil, err
	}
	oe, err := intf.OutEndpoint(epWrite &^ 0x80)
	if err == nil {
		var ie *usb.InEndpoint
		ie, err = intf.InEndpoint(epRead &^ 0x80)
		if err == nil {
			h.cfg, h.intf = cfg, intf
			return oe, ie, nil
		}
	}
	intf.Close()
	cfg.Close()
	return nil, nil, err
}

func (h *usbHandle) Release() (err error) {
	if h.intf != nil {
		h.intf.Close()
		h.intf = nil
	}
	if h.cfg != nil {
		err = h.cfg.Close()
		h.cfg = nil
	}
	return
}

func (h *usbHandle) Close() error {
	err := multierr.Append(h.dev.Close(), h.ctx.Close())
	h.dev, h.ctx = nil, nil
	return err
}

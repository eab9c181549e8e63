// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package list

import (
	"fmt"
	"os"

	"github.com/embeddedgo/flashtools/snander/internal/ctrl"
)

const Descr = "list the supported programmers"

func Main(cmd string, args []string) {
	if len(args) != 0 {
		fmt.Fprintf(os.Stderr, "Usage:\n  %s\n", cmd)
		os.Exit(1)
	}
	ds := ctrl.Descriptors()
	maxLen := 0
	for _, d := range ds {
		maxLen = max(maxLen, len(d.Name))
	}
	for _, d := range ds {
		limit := "unlimited"
		if d.Packet > 0 {
			limit = fmt.Sprintf("%d B/packet", d.Packet)
		}
		fmt.Printf("%-*s  %-10s  %-14s  %s\n", maxLen, d.Name, d.Kind, limit, d.Descr)
	}
}

// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ch341

import "strings"

// Options are the bring-up settings of a controller.
type Options struct {
	Fast   bool // fast bus speed
	Query  bool // scan the I2C bus during bring-up
	Compat bool // send LegacyStreamMode instead of the computed speed byte
}

// ParseOptions recognizes the option words anywhere in s: "speed", "query"
// and "compat".
func ParseOptions(s string) Options {
	return Options{
		Fast:   strings.Contains(s, "speed"),
		Query:  strings.Contains(s, "query"),
		Compat: strings.Contains(s, "compat"),
	}
}

func (o Options) String() string {
	var words []string
	if o.Fast {
		words = append(words, "speed")
	}
	if o.Query {
		words = append(words, "query")
	}
	if o.Compat {
		words = append(words, "compat")
	}
	return strings.Join(words, ",")
}

// StreamMode returns the STM_SET byte selected by o.
func (o Options) StreamMode() byte {
	if o.Compat {
		return LegacyStreamMode
	}
	return StreamMode(o.Fast)
}

// SpeedName names the bus speed selected by o.
func (o Options) SpeedName() string {
	if o.Fast {
		return "fast"
	}
	return "default"
}

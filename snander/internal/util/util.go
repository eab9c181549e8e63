// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func Warn(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
}

func Fatal(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

// FatalErr prints an error description and exits the program if the
// err != nil.
func FatalErr(what string, err error) {
	if err == nil {
		return
	}
	s := err.Error() + "\n"
	if what != "" {
		s = what + ": " + s
	}
	os.Stderr.WriteString(s)
	os.Exit(1)
}

// ParseHex parses bytes written in hex. Spaces, commas, colons and 0x
// prefixes between the bytes are ignored: "9f", "0x9f 0x00", "03:00:10:00"
// are all accepted.
func ParseHex(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == ':' || r == '\t'
	})
	var buf []byte
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		if len(f)%2 != 0 {
			f = "0" + f
		}
		b, err := hex.DecodeString(f)
		if err != nil {
			return nil, fmt.Errorf("bad hex bytes %q: %w", f, err)
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// Flag is a boolean command line option that contributes the word Name to
// a free-text option string.
type Flag struct {
	Name string
	Set  bool
}

// JoinOptions appends the names of the set flags to the free-text options s.
func JoinOptions(s string, flags ...Flag) string {
	words := strings.Fields(s)
	for _, f := range flags {
		if f.Set {
			words = append(words, f.Name)
		}
	}
	return strings.Join(words, " ")
}

// ParseUint parses a decimal or 0x prefixed hexadecimal number.
func ParseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

var pbuf = make([]byte, 80)

const (
	ptodo = "                         ] "
	pdone = " [========================="
)

func Progress(pre string, cur, max, scale int, post string) {
	if max <= 0 {
		return
	}
	pbuf = pbuf[:0]
	pbuf = append(pbuf, '\r')
	pbuf = append(pbuf, pre...)
	done := 25 * cur / max
	pbuf = append(pbuf, pdone[:2+done]...)
	pbuf = append(pbuf, ptodo[done:]...)
	pbuf = strconv.AppendInt(pbuf, int64(cur/scale), 10)
	pbuf = append(pbuf, ' ')
	pbuf = append(pbuf, post...)
	if cur == max {
		pbuf = append(pbuf, '\n')
	}
	os.Stderr.Write(pbuf)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dataman

import (
	"bytes"
	"fmt"
	"strings"
)

// matchStatus is the outcome of evaluating a pattern against buffered bytes.
type matchStatus int

const (
	matchMore matchStatus = iota // buffer is a valid prefix, need more bytes
	matchOK
	matchFail
)

// maxUntil bounds free-text fields such as device type names.
const maxUntil = 64

// element is one piece of an anchored pattern.
type element interface {
	// match evaluates the element at the start of b and returns the
	// number of bytes it spans.
	match(b []byte) (int, matchStatus)
	capturing() bool
	String() string
}

// pattern is a sequence of elements anchored at the start of the buffer.
type pattern []element

// Match holds the result of a successful expect.
type Match struct {
	Len    int
	Groups [][]byte
}

// Group returns capture group i as a string.
func (m Match) Group(i int) string {
	if i < 0 || i >= len(m.Groups) {
		return ""
	}
	return string(m.Groups[i])
}

func (p pattern) match(b []byte) (Match, matchStatus) {
	var m Match
	off := 0
	for _, el := range p {
		n, st := el.match(b[off:])
		if st != matchOK {
			return Match{}, st
		}
		if el.capturing() {
			m.Groups = append(m.Groups, bytes.Clone(b[off:off+n]))
		}
		off += n
	}
	m.Len = off
	return m, matchOK
}

func (p pattern) String() string {
	var sb strings.Builder
	for _, el := range p {
		sb.WriteString(el.String())
	}
	return sb.String()
}

// literal

type literal []byte

func lit(s string) literal { return literal(s) }

func (l literal) match(b []byte) (int, matchStatus) {
	n := len(l)
	if len(b) < n {
		if !bytes.Equal(b, l[:len(b)]) {
			return 0, matchFail
		}
		return 0, matchMore
	}
	if !bytes.Equal(b[:n], l) {
		return 0, matchFail
	}
	return n, matchOK
}

func (l literal) capturing() bool { return false }
func (l literal) String() string  { return strings.Trim(fmt.Sprintf("%q", []byte(l)), `"`) }

// hex digit run

type hexRun int

func hexDigits(n int) hexRun { return hexRun(n) }

func isUpperHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

func (h hexRun) match(b []byte) (int, matchStatus) {
	n := int(h)
	for i := 0; i < n; i++ {
		if i >= len(b) {
			return 0, matchMore
		}
		if !isUpperHex(b[i]) {
			return 0, matchFail
		}
	}
	return n, matchOK
}

func (h hexRun) capturing() bool { return true }
func (h hexRun) String() string  { return fmt.Sprintf("([0-9A-F]{%d})", int(h)) }

// single character class

type charSet string

func charIn(set string) charSet { return charSet(set) }

func (c charSet) match(b []byte) (int, matchStatus) {
	if len(b) == 0 {
		return 0, matchMore
	}
	if strings.IndexByte(string(c), b[0]) < 0 {
		return 0, matchFail
	}
	return 1, matchOK
}

func (c charSet) capturing() bool { return true }
func (c charSet) String() string  { return "([" + string(c) + "])" }

// alternative tokens

type tokens []string

func oneOf(alts ...string) tokens { return tokens(alts) }

func (t tokens) match(b []byte) (int, matchStatus) {
	status := matchFail
	for _, alt := range t {
		n, st := lit(alt).match(b)
		if st == matchOK {
			return n, matchOK
		}
		if st == matchMore {
			status = matchMore
		}
	}
	return 0, status
}

func (t tokens) capturing() bool { return true }
func (t tokens) String() string {
	quoted := make([]string, len(t))
	for i, alt := range t {
		quoted[i] = lit(alt).String()
	}
	return "(" + strings.Join(quoted, "|") + ")"
}

// run of bytes up to a stop byte; the stop byte is left unconsumed

type untilByte struct {
	stop byte
	min  int
}

func until(stop byte, min int) untilByte { return untilByte{stop: stop, min: min} }

func (u untilByte) match(b []byte) (int, matchStatus) {
	i := bytes.IndexByte(b, u.stop)
	if i < 0 {
		if len(b) > maxUntil {
			return 0, matchFail
		}
		return 0, matchMore
	}
	if i < u.min || i > maxUntil {
		return 0, matchFail
	}
	return i, matchOK
}

func (u untilByte) capturing() bool { return true }
func (u untilByte) String() string {
	return fmt.Sprintf("([^%s]{%d,})", lit(string(u.stop)).String(), u.min)
}

// fixed number of arbitrary bytes

type rawRun int

func rawBytes(n int) rawRun { return rawRun(n) }

func (r rawRun) match(b []byte) (int, matchStatus) {
	if len(b) < int(r) {
		return 0, matchMore
	}
	return int(r), matchOK
}

func (r rawRun) capturing() bool { return true }
func (r rawRun) String() string  { return fmt.Sprintf("(.{%d})", int(r)) }

// This file is part of FM2KNet.
//
// FM2KNet is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// FM2KNet is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with FM2KNet.  If not, see <https://www.gnu.org/licenses/>.

// Package input defines the input word understood by the host. A single
// input is an 11-bit field packed into 16 bits:
//
//	bit  0  left
//	bit  1  right
//	bit  2  up
//	bit  3  down
//	bit  4  A
//	bit  5  B
//	bit  6  C
//	bit  7  D
//	bit  8  E
//	bit  9  F
//	bit 10  start
//
// Opposite directions may be set at the same time. It is for the host to
// decide what that means. Bits above bit 10 must always be zero.
package input

import (
	"strconv"
	"strings"

	"github.com/fm2knet/fm2knet/curated"
)

// Input is the state of one player's controls for one frame.
type Input uint16

// List of input bits.
const (
	Left  Input = 0x001
	Right Input = 0x002
	Up    Input = 0x004
	Down  Input = 0x008
	A     Input = 0x010
	B     Input = 0x020
	C     Input = 0x040
	D     Input = 0x080
	E     Input = 0x100
	F     Input = 0x200
	Start Input = 0x400
)

// Neutral is the input with no controls held.
const Neutral Input = 0

// Mask of all valid bits.
const Mask Input = 0x7ff

// Size of an Input in bytes, on the wire and in host memory.
const Size = 2

// the order in which bits are named by String()
var names = []struct {
	bit  Input
	name string
}{
	{Left, "L"}, {Right, "R"}, {Up, "U"}, {Down, "D"},
	{A, "A"}, {B, "B"}, {C, "C"}, {D, "D4"}, {E, "E"}, {F, "F"},
	{Start, "S"},
}

// Valid returns false if any bit above bit 10 is set.
func (in Input) Valid() bool {
	return in&^Mask == 0
}

// Masked returns the input with the invalid bits cleared.
func (in Input) Masked() Input {
	return in & Mask
}

// Has returns true if all bits in b are set.
func (in Input) Has(b Input) bool {
	return in&b == b
}

func (in Input) String() string {
	if in.Masked() == Neutral {
		return "neutral"
	}
	s := make([]string, 0, len(names))
	for _, n := range names {
		if in&n.bit == n.bit {
			s = append(s, n.name)
		}
	}
	return strings.Join(s, "+")
}

// ParseError is the pattern for errors returned by Parse().
const ParseError = "input: cannot parse %q"

// Parse accepts either the output of String() or a hexadecimal number with
// the 0x prefix.
func Parse(s string) (Input, error) {
	s = strings.TrimSpace(s)
	if s == "neutral" {
		return Neutral, nil
	}

	if strings.HasPrefix(strings.ToLower(s), "0x") {
		v, err := strconv.ParseUint(s[2:], 16, 16)
		if err != nil || !Input(v).Valid() {
			return Neutral, curated.Errorf(ParseError, s)
		}
		return Input(v), nil
	}

	var in Input
	for _, p := range strings.Split(s, "+") {
		found := false
		for _, n := range names {
			if n.name == p {
				in |= n.bit
				found = true
				break
			}
		}
		if !found {
			return Neutral, curated.Errorf(ParseError, s)
		}
	}
	return in, nil
}

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

package input_test

import (
	"testing"

	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/test"
)

func TestValid(t *testing.T) {
	test.ExpectSuccess(t, (input.Left | input.Right | input.Start).Valid())
	test.ExpectSuccess(t, input.Mask.Valid())
	test.ExpectFailure(t, input.Input(0x800).Valid())
	test.ExpectEquality(t, input.Input(0xffff).Masked(), input.Mask)
}

func TestString(t *testing.T) {
	test.ExpectEquality(t, input.Neutral.String(), "neutral")
	test.ExpectEquality(t, (input.Right | input.A).String(), "R+A")
	test.ExpectEquality(t, (input.Down | input.D).String(), "D+D4")
}

func TestParse(t *testing.T) {
	for _, in := range []input.Input{input.Neutral, input.Right | input.A, input.Mask, input.Down | input.D | input.Start} {
		p, err := input.Parse(in.String())
		test.ExpectSuccess(t, err)
		test.ExpectEquality(t, p, in)
	}

	p, err := input.Parse("0x012")
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, p, input.Right|input.A)

	_, err = input.Parse("0x800")
	test.ExpectFailure(t, err)
	_, err = input.Parse("R+X")
	test.ExpectFailure(t, err)
}

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

package digest_test

import (
	"testing"

	"github.com/fm2knet/fm2knet/digest"
	"github.com/fm2knet/fm2knet/test"
)

// reference implementation of Fletcher-32 without the blocked reduction. the
// modulo arithmetic is carried out at every step so the result must be
// congruent with the optimised version
func reference(data []byte) uint32 {
	sum1 := uint32(0xffff)
	sum2 := uint32(0xffff)
	for len(data) >= 2 {
		sum1 = (sum1 + (uint32(data[0])<<8 | uint32(data[1]))) % 0xffff
		sum2 = (sum2 + sum1) % 0xffff
		data = data[2:]
	}
	if len(data) == 1 {
		sum1 = (sum1 + uint32(data[0])<<8) % 0xffff
		sum2 = (sum2 + sum1) % 0xffff
	}
	return sum2<<16 | sum1
}

// the optimised version may produce 0xffff where the reference produces zero
func congruent(a, b uint32) bool {
	norm := func(v uint32) uint32 {
		if v == 0xffff {
			return 0
		}
		return v
	}
	return norm(a>>16) == norm(b>>16) && norm(a&0xffff) == norm(b&0xffff)
}

func testData(n int) []byte {
	d := make([]byte, n)
	x := uint32(0x1234567)
	for i := range d {
		x = x*0x343fd + 0x269ec3
		d[i] = byte(x >> 16)
	}
	return d
}

func TestEmpty(t *testing.T) {
	test.ExpectEquality(t, digest.Fletcher32(nil), uint32(0xffffffff))
}

func TestKnownValues(t *testing.T) {
	for _, n := range []int{1, 2, 3, 100, 717, 718, 719, 720, 4096, 65537} {
		d := testData(n)
		test.ExpectSuccess(t, congruent(digest.Fletcher32(d), reference(d)), n)
	}
}

func TestSensitivity(t *testing.T) {
	d := testData(1024)
	a := digest.Fletcher32(d)
	d[500] ^= 0x01
	b := digest.Fletcher32(d)
	test.ExpectInequality(t, a, b)

	// swapping two words changes the result, unlike a simple sum
	d = testData(1024)
	a = digest.Fletcher32(d)
	d[0], d[1], d[2], d[3] = d[2], d[3], d[0], d[1]
	b = digest.Fletcher32(d)
	if d[0] != d[2] || d[1] != d[3] {
		test.ExpectInequality(t, a, b)
	}
}

func TestStreaming(t *testing.T) {
	d := testData(5000)
	expected := digest.Fletcher32(d)

	for _, split := range []int{1, 2, 3, 7, 358, 359, 718, 1001} {
		h := digest.NewFletcher32()
		for i := 0; i < len(d); i += split {
			e := i + split
			if e > len(d) {
				e = len(d)
			}
			h.Write(d[i:e])
		}
		test.ExpectEquality(t, h.Sum32(), expected, split)

		s := h.Sum(nil)
		test.ExpectEquality(t, len(s), digest.Size)
		test.ExpectEquality(t, uint32(s[0])<<24|uint32(s[1])<<16|uint32(s[2])<<8|uint32(s[3]), expected)
	}

	// odd length input
	d = testData(4097)
	h := digest.NewFletcher32()
	h.Write(d[:2000])
	h.Write(d[2000:])
	test.ExpectEquality(t, h.Sum32(), digest.Fletcher32(d))

	h.Reset()
	test.ExpectEquality(t, h.Sum32(), digest.Fletcher32(nil))
}

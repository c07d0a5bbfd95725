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

package digest

import (
	"hash"
)

// the number of 16-bit words that can be summed before the sums must be
// reduced in order to avoid overflow of the 32-bit accumulators
const blockWords = 359

// Size of a Fletcher-32 checksum in bytes.
const Size = 4

func reduce(s uint32) uint32 {
	return (s & 0xffff) + (s >> 16)
}

// Fletcher32 returns the Fletcher-32 checksum of data.
func Fletcher32(data []byte) uint32 {
	sum1 := uint32(0xffff)
	sum2 := uint32(0xffff)

	words := len(data) / 2
	for words > 0 {
		n := words
		if n > blockWords {
			n = blockWords
		}
		words -= n

		for ; n > 0; n-- {
			sum1 += uint32(data[0])<<8 | uint32(data[1])
			sum2 += sum1
			data = data[2:]
		}

		sum1 = reduce(sum1)
		sum2 = reduce(sum2)
	}

	// odd trailing byte
	if len(data) > 0 {
		sum1 += uint32(data[0]) << 8
		sum2 += sum1
		sum1 = reduce(sum1)
		sum2 = reduce(sum2)
	}

	sum1 = reduce(sum1)
	sum2 = reduce(sum2)

	return sum2<<16 | sum1
}

// fletcher is the streaming implementation of Fletcher32().
type fletcher struct {
	sum1 uint32
	sum2 uint32

	// number of words summed since the last reduction
	words int

	// a byte left over from the last call to Write()
	pending    byte
	hasPending bool
}

// NewFletcher32 returns a hash.Hash32 computing the Fletcher-32 checksum.
func NewFletcher32() hash.Hash32 {
	f := &fletcher{}
	f.Reset()
	return f
}

func (f *fletcher) Reset() {
	f.sum1 = 0xffff
	f.sum2 = 0xffff
	f.words = 0
	f.hasPending = false
}

func (f *fletcher) Size() int {
	return Size
}

func (f *fletcher) BlockSize() int {
	return 2
}

func (f *fletcher) word(w uint32) {
	f.sum1 += w
	f.sum2 += f.sum1
	f.words++
	if f.words == blockWords {
		f.sum1 = reduce(f.sum1)
		f.sum2 = reduce(f.sum2)
		f.words = 0
	}
}

// Write implements the io.Writer interface. It never returns an error.
func (f *fletcher) Write(p []byte) (int, error) {
	n := len(p)

	if f.hasPending && len(p) > 0 {
		f.word(uint32(f.pending)<<8 | uint32(p[0]))
		f.hasPending = false
		p = p[1:]
	}

	for len(p) >= 2 {
		f.word(uint32(p[0])<<8 | uint32(p[1]))
		p = p[2:]
	}

	if len(p) == 1 {
		f.pending = p[0]
		f.hasPending = true
	}

	return n, nil
}

func (f *fletcher) Sum32() uint32 {
	sum1 := f.sum1
	sum2 := f.sum2

	// a partial block is reduced in the same way as the one-shot function
	if f.words > 0 {
		sum1 = reduce(sum1)
		sum2 = reduce(sum2)
	}

	if f.hasPending {
		sum1 += uint32(f.pending) << 8
		sum2 += sum1
		sum1 = reduce(sum1)
		sum2 = reduce(sum2)
	}

	sum1 = reduce(sum1)
	sum2 = reduce(sum2)

	return sum2<<16 | sum1
}

func (f *fletcher) Sum(b []byte) []byte {
	s := f.Sum32()
	return append(b, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

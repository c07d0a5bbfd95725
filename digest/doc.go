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

// Package digest computes the checksums used by FM2KNet to compare state
// between peers. The checksum is Fletcher-32 computed over big-endian 16-bit
// words of the input. An odd trailing byte is treated as the high byte of a
// final word.
//
// The one-shot Fletcher32() function is used by the snapshot engine. The
// streaming form, created with NewFletcher32(), implements the hash.Hash32
// interface and produces exactly the same value for any division of the input.
package digest

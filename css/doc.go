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

// Package css implements the character-select side channel. Before a rollback
// session begins the two players pick their characters and colours. The
// cursors are exchanged over a reliable TCP stream on the base port plus 200.
//
// Every message is 16 bytes, little-endian, in the layout of the C struct
// used by the host:
//
//	offset  field
//	0       u32 magic 0xC55C55C5
//	4       u8  p1 x
//	5       u8  p1 y
//	6       u8  p1 confirmed
//	7       padding
//	8       u16 p1 colour button
//	10      u8  p2 x
//	11      u8  p2 y
//	12      u8  p2 confirmed
//	13      padding
//	14      u16 p2 colour button
//
// The host side of the channel owns the p1 cursor and the client owns the p2
// cursor. Each side writes its own cursor and reads the other's.
//
// The channel has no helper goroutine. Poll() is called from the game thread
// and never blocks for more than a millisecond.
package css

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

// Package snapshot saves and restores the mutable state of the host.
//
// The Engine owns a fixed number of slots. Each slot holds one serialised
// state and the metadata for it. Slot buffers are allocated when the engine is
// created (or when the profile changes) and are reused for every save. A slot
// is only changed when a save succeeds completely.
//
// How much of the host is saved is decided by the Profile. Minimal saves the
// frame counter, the core scalar values, the RNG, the input buffers and the
// object pool. The object pool is saved in whatever form the object tracker
// thinks is most compact. Standard adds the hit judge tables, the render state
// and the animation control area. Complete saves the entire object pool and the
// entire player data area instead.
//
// A serialised state is a 12 byte header followed by a series of sections.
//
//	header:  u32 magic "FMSS", u32 frame, u8 profile, 3 bytes reserved
//	section: u8 id, u32 length, [length]byte
//
// Sections are stored in the order they must be restored: the object pool
// first, then the runtime arrays, then the scalar values and input buffers,
// and finally the RNG. Regions of the host overlap in places and this order
// means that the smaller regions always win.
//
// The checksum of a slot is the Fletcher-32 checksum of the serialised state.
// Timestamps are kept outside of the serialised state so that two hosts at
// the same frame and in the same state produce the same checksum.
package snapshot

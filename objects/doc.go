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

// Package objects tracks the host's object pool. The pool is a fixed array of
// 1024 entries of 382 bytes. An entry is active if the 32-bit word at the start
// of the entry (the type tag) is non-zero.
//
// The Tracker scans the pool once per frame with Update(). It keeps a bitmap of
// active entries, emits events when entries are created, deleted or changed,
// and keeps statistics about the number of active objects.
//
// The tracker also knows how to save and restore the pool compactly. When only
// a few objects are active it is cheaper to save the active entries than the
// entire pool. SaveAdaptive() chooses between three formats based on the
// number of active objects:
//
//	Minimal	fewer than 50 active objects
//	Standard	fewer than 200 active objects
//	Full	200 or more active objects, or if the pool could not be scanned
//
// The tracker only writes to the pool in the restore functions.
package objects

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

// Package ipc implements the region of shared memory between the core and
// the launcher. The core publishes its status into the region every frame and
// reads-and-clears the commands that the launcher writes into it.
//
// The layout of the region is fixed and all values are little-endian. The
// offsets are given by the constants in layout.go and must agree with the
// launcher. The Bridge type offers both sides of the region: Publish(),
// SetSlot(), TakeCommands() and NetworkConfig() are for the core; Status(),
// Slot(), Request() and Configure() are for the launcher.
package ipc

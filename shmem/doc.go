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

// Package shmem provides regions of memory that can be shared between the two
// ends of a connection. An anonymous region is shared between goroutines of
// the same process. A named region is a memory mapping that can be opened by
// more than one process.
//
// The 32-bit words of a region can be accessed atomically. Offsets of atomic
// words must be a multiple of four.
package shmem

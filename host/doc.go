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

// Package host defines the ports through which the core touches the host
// process. The host is the unmodified game executable; the core never calls
// into it directly. Instead it:
//
//   - reads and writes host memory through the Memory interface, guarded by
//     readability probes,
//   - registers a single callback at the host's input-processing entry point
//     through the Installer interface,
//   - looks up the addresses of host capabilities through the Resolver
//     interface rather than hard-coding them.
//
// The Layout type collects the addresses of every region the core reads or
// writes. DefaultLayout() returns the addresses for the FM2K engine.
package host

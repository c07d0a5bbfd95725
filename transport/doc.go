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

// Package transport moves datagrams between the peers of a session. The
// transport is unreliable and unordered. Datagrams may be lost, delayed or
// arrive more than once and the session protocol is expected to cope.
//
// Two implementations of the Transport interface are provided. UDP sends
// datagrams over a UDP socket. Loopback sends datagrams through a pair of ring
// buffers in shared memory and is useful for running both peers in the same
// process, or in two processes on the same machine.
//
// Both implementations can impair the connection artificially by adding
// latency, jitter and loss. See the Impairment type.
//
// Every datagram has a small header that is added and removed by the
// transport. The header layout, in little-endian order, is:
//
//	u32 sequence
//	u32 payload length
//	u64 send timestamp in microseconds
//
// The payload follows the header and is never more than MaxPayload bytes.
// Sequence numbers are counted per destination and are used to drop
// duplicate datagrams.
//
// Send and receive errors never reach the caller. They are logged and counted
// and the datagram is dropped.
package transport

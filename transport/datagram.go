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

package transport

import (
	"encoding/binary"
	"net/netip"

	"github.com/fm2knet/fm2knet/curated"
)

// Patterns for errors returned by the transport package.
const (
	PayloadTooLarge = "transport: payload too large (%d bytes)"
	Malformed       = "transport: malformed datagram: %v"
	BufferTooSmall  = "transport: buffer too small"
	Closed          = "transport: closed"
	Listen          = "transport: listen: %v"
	Resolve         = "transport: resolve: %v"
	RegionTooSmall  = "transport: shared memory region too small (%d bytes)"
)

// Size of the datagram header.
const HeaderSize = 16

// MaxPayload is the largest payload that can be sent in a single datagram.
const MaxPayload = 1016

// MaxDatagram is the largest possible datagram including the header.
const MaxDatagram = HeaderSize + MaxPayload

// Datagram is a decoded datagram.
type Datagram struct {
	Seq uint32

	// time the datagram was sent in microseconds. the clock is the sender's
	// clock
	SendTime uint64

	// the payload slice is only valid for the duration of the Receive()
	// callback
	Payload []byte
}

// Encode a datagram into dst. Returns the number of bytes written.
func Encode(dst []byte, seq uint32, sendTime uint64, payload []byte) (int, error) {
	if len(payload) > MaxPayload {
		return 0, curated.Errorf(PayloadTooLarge, len(payload))
	}
	n := HeaderSize + len(payload)
	if len(dst) < n {
		return 0, curated.Errorf(BufferTooSmall)
	}
	binary.LittleEndian.PutUint32(dst[0:], seq)
	binary.LittleEndian.PutUint32(dst[4:], uint32(len(payload)))
	binary.LittleEndian.PutUint64(dst[8:], sendTime)
	copy(dst[HeaderSize:], payload)
	return n, nil
}

// Decode a datagram. The payload of the returned Datagram refers to src.
func Decode(src []byte) (Datagram, error) {
	if len(src) < HeaderSize {
		return Datagram{}, curated.Errorf(Malformed, "short header")
	}
	n := binary.LittleEndian.Uint32(src[4:])
	if n > MaxPayload {
		return Datagram{}, curated.Errorf(Malformed, "payload too large")
	}
	if int(n) != len(src)-HeaderSize {
		return Datagram{}, curated.Errorf(Malformed, "length mismatch")
	}
	return Datagram{
		Seq:      binary.LittleEndian.Uint32(src[0:]),
		SendTime: binary.LittleEndian.Uint64(src[8:]),
		Payload:  src[HeaderSize:],
	}, nil
}

// Sequencer counts sequence numbers for each destination. The first sequence
// number for any destination is 1.
type Sequencer struct {
	next map[netip.AddrPort]uint32
}

// Next returns the next sequence number for the destination.
func (s *Sequencer) Next(to netip.AddrPort) uint32 {
	if s.next == nil {
		s.next = make(map[netip.AddrPort]uint32)
	}
	s.next[to]++
	return s.next[to]
}

// the number of sequence numbers remembered by the window
const windowSize = 64

// Window drops duplicate datagrams. It remembers the most recent 64 sequence
// numbers seen from a sender. Datagrams that are older than that are also
// dropped.
type Window struct {
	highest uint32
	seen    uint64
}

// Accept returns true if the sequence number has not been seen before.
func (w *Window) Accept(seq uint32) bool {
	if seq == 0 {
		return false
	}

	if seq > w.highest {
		d := seq - w.highest
		if d >= windowSize {
			w.seen = 0
		} else {
			w.seen <<= d
		}
		w.seen |= 1
		w.highest = seq
		return true
	}

	d := w.highest - seq
	if d >= windowSize {
		return false
	}
	bit := uint64(1) << d
	if w.seen&bit != 0 {
		return false
	}
	w.seen |= bit
	return true
}

// windows keeps one Window for every sender
type windows map[netip.AddrPort]*Window

func (ws windows) accept(from netip.AddrPort, seq uint32) bool {
	w, ok := ws[from]
	if !ok {
		w = &Window{}
		ws[from] = w
	}
	return w.Accept(seq)
}

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
	"github.com/fm2knet/fm2knet/logger"
	"github.com/fm2knet/fm2knet/random"
	"github.com/fm2knet/fm2knet/shmem"
)

// the loopback region is two rings, one for each direction. each ring is a
// header followed by a fixed number of packets.
//
//	ring header: u32 write index, u32 read index, u32 count, u32 reserved
//	packet:      u32 sequence, u32 length, u64 deliver at (us), [1024]byte
//
// the data of a packet is the u64 send timestamp followed by the payload.
// there is a single writer and a single reader for each ring. the write index
// is only changed by the writer and the read index only by the reader. the
// count is changed by both, atomically
const (
	ringCapacity   = 64
	packetHeader   = 16
	packetData     = 1024
	packetSize     = packetHeader + packetData
	ringHeaderSize = 16
	ringSize       = ringHeaderSize + ringCapacity*packetSize

	offWrite = 0
	offRead  = 4
	offCount = 8
)

// LoopbackRegionSize is the size of the shared memory region required by a
// Loopback.
const LoopbackRegionSize = 2 * ringSize

type ring struct {
	r   *shmem.Region
	off int
}

func (rg ring) packet(idx uint32) []byte {
	p := rg.off + ringHeaderSize + int(idx%ringCapacity)*packetSize
	return rg.r.Bytes()[p : p+packetSize]
}

// push a packet into the ring. returns false if the ring is full
func (rg ring) push(seq uint32, deliverAt uint64, sendTime uint64, payload []byte) bool {
	if rg.r.LoadUint32(rg.off+offCount) >= ringCapacity {
		return false
	}

	w := rg.r.LoadUint32(rg.off + offWrite)
	pkt := rg.packet(w)
	binary.LittleEndian.PutUint32(pkt[0:], seq)
	binary.LittleEndian.PutUint32(pkt[4:], uint32(8+len(payload)))
	binary.LittleEndian.PutUint64(pkt[8:], deliverAt)
	binary.LittleEndian.PutUint64(pkt[packetHeader:], sendTime)
	copy(pkt[packetHeader+8:], payload)

	rg.r.StoreUint32(rg.off+offWrite, w+1)
	rg.r.AddUint32(rg.off+offCount, 1)
	return true
}

// pop the oldest packet in the ring if it is due. the packet is copied to dst
// and the number of bytes in the packet is returned. returns -1 if there is
// nothing to pop
func (rg ring) pop(now uint64, dst []byte) (uint32, int) {
	if rg.r.LoadUint32(rg.off+offCount) == 0 {
		return 0, -1
	}

	rd := rg.r.LoadUint32(rg.off + offRead)
	pkt := rg.packet(rd)
	if binary.LittleEndian.Uint64(pkt[8:]) > now {
		return 0, -1
	}

	seq := binary.LittleEndian.Uint32(pkt[0:])
	n := int(binary.LittleEndian.Uint32(pkt[4:]))
	if n > packetData {
		n = packetData
	}
	copy(dst, pkt[packetHeader:packetHeader+n])

	rg.r.StoreUint32(rg.off+offRead, rd+1)
	rg.r.AddUint32(rg.off+offCount, ^uint32(0))
	return seq, n
}

// LoopbackConfig is used to create a Loopback.
type LoopbackConfig struct {
	// role zero writes to the first ring and reads from the second. role one
	// does the opposite
	Role int

	Impairment Impairment
	Clock      Clock

	// seed for the impairment random numbers
	Seed     int64
	ZeroSeed bool
}

// LoopbackAddress returns the address of the loopback end with the role.
func LoopbackAddress(role int) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), uint16(role+1))
}

// Loopback is a Transport that uses a pair of rings in shared memory.
type Loopback struct {
	region *shmem.Region

	tx ring
	rx ring

	local  netip.AddrPort
	remote netip.AddrPort

	imp   Impairment
	rnd   *random.Random
	clock Clock

	seq  Sequencer
	wins windows

	// packets are copied out of the ring before being passed to the
	// receiving function
	scratch [packetData]byte

	counters Counters
	closed   bool
}

// NewLoopback creates one end of a loopback over the region. The region must
// be at least LoopbackRegionSize bytes. The other end is created with the
// other role over the same region.
func NewLoopback(region *shmem.Region, cfg LoopbackConfig) (*Loopback, error) {
	if region.Size() < LoopbackRegionSize {
		return nil, curated.Errorf(RegionTooSmall, region.Size())
	}
	if cfg.Role != 0 && cfg.Role != 1 {
		return nil, curated.Errorf("transport: loopback: illegal role (%d)", cfg.Role)
	}
	if err := cfg.Impairment.Validate(); err != nil {
		return nil, err
	}

	lb := &Loopback{
		region: region,
		local:  LoopbackAddress(cfg.Role),
		remote: LoopbackAddress(1 - cfg.Role),
		imp:    cfg.Impairment,
		rnd:    random.NewRandom(cfg.Seed + int64(cfg.Role)),
		clock:  clockOrDefault(cfg.Clock),
		wins:   make(windows),
	}
	lb.rnd.ZeroSeed = cfg.ZeroSeed

	lb.tx = ring{r: region, off: cfg.Role * ringSize}
	lb.rx = ring{r: region, off: (1 - cfg.Role) * ringSize}

	return lb, nil
}

// NewLoopbackPair creates both ends of a loopback over a new anonymous region.
// The first end has role zero.
func NewLoopbackPair(imp Impairment, clock Clock, seed int64, zeroSeed bool) (*Loopback, *Loopback, error) {
	region, err := shmem.NewAnonymous(LoopbackRegionSize)
	if err != nil {
		return nil, nil, err
	}

	a, err := NewLoopback(region, LoopbackConfig{Role: 0, Impairment: imp, Clock: clock, Seed: seed, ZeroSeed: zeroSeed})
	if err != nil {
		return nil, nil, err
	}
	b, err := NewLoopback(region, LoopbackConfig{Role: 1, Impairment: imp, Clock: clock, Seed: seed, ZeroSeed: zeroSeed})
	if err != nil {
		return nil, nil, err
	}

	return a, b, nil
}

// SetImpairment changes the impairment of datagrams sent from this end.
func (lb *Loopback) SetImpairment(imp Impairment) error {
	if err := imp.Validate(); err != nil {
		return err
	}
	lb.imp = imp
	return nil
}

// Send implements the Transport interface.
func (lb *Loopback) Send(to netip.AddrPort, payload []byte) {
	if lb.closed {
		return
	}
	if to != lb.remote {
		lb.counters.SendErrors++
		logger.Logf(logger.Allow, "transport", "loopback: no route to %v", to)
		return
	}
	if len(payload) > MaxPayload {
		lb.counters.SendErrors++
		return
	}

	seq := lb.seq.Next(to)

	if lb.rnd.Chance(lb.imp.Loss) {
		lb.counters.DroppedLoss++
		return
	}

	now := lb.clock.micros()
	deliverAt := now + uint64(lb.imp.delay(lb.rnd).Microseconds())
	if !lb.tx.push(seq, deliverAt, now, payload) {
		lb.counters.DroppedFull++
		return
	}
	lb.counters.Sent++
}

// Receive implements the Transport interface. Receiving stops at the first
// datagram that is not yet due.
func (lb *Loopback) Receive(fn func(from netip.AddrPort, dg Datagram)) {
	if lb.closed {
		return
	}

	now := lb.clock.micros()
	for {
		seq, n := lb.rx.pop(now, lb.scratch[:])
		if n < 0 {
			return
		}
		if n < 8 {
			lb.counters.Malformed++
			continue
		}
		if !lb.wins.accept(lb.remote, seq) {
			lb.counters.Duplicates++
			continue
		}
		lb.counters.Received++
		fn(lb.remote, Datagram{
			Seq:      seq,
			SendTime: binary.LittleEndian.Uint64(lb.scratch[:]),
			Payload:  lb.scratch[8:n],
		})
	}
}

// Close implements the Transport interface. The shared memory region is not
// closed.
func (lb *Loopback) Close() error {
	if lb.closed {
		return curated.Errorf(Closed)
	}
	lb.closed = true
	return nil
}

// LocalAddress implements the Transport interface.
func (lb *Loopback) LocalAddress() netip.AddrPort {
	return lb.local
}

// RemoteAddress returns the address of the other end of the loopback.
func (lb *Loopback) RemoteAddress() netip.AddrPort {
	return lb.remote
}

// Counters implements the Transport interface.
func (lb *Loopback) Counters() Counters {
	return lb.counters
}

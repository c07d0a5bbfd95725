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

package objects

import (
	"encoding/binary"
	"math/bits"

	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/logger"
)

// Patterns for errors returned by the tracker.
const (
	BufferTooSmall = "objects: buffer too small (%d bytes needed)"
	Malformed      = "objects: malformed object data: %v"
	Unreadable     = "objects: object pool is unreadable"
	Mismatch       = "objects: checksum mismatch for object %d"
)

// field offsets within an object entry.
const (
	fieldType = 0
	fieldX    = 8
	fieldY    = 12
	fieldVX   = 16
	fieldVY   = 20
)

// number of frames over which the creation and deletion rates are measured.
const rateWindow = 100

type bitmap [host.ObjectCount / 64]uint64

func (b *bitmap) set(i int) {
	b[i/64] |= 1 << (i % 64)
}

func (b *bitmap) isSet(i int) bool {
	return b[i/64]&(1<<(i%64)) != 0
}

func (b *bitmap) clear() {
	*b = bitmap{}
}

func (b *bitmap) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// Statistics about the number of active objects.
type Statistics struct {
	Current int
	Peak    int
	Average float64

	// objects created and deleted per frame, measured over the most recent
	// 100 frames
	CreationRate float64
	DeletionRate float64

	TotalCreated int
	TotalDeleted int

	// number of frames the pool could not be read
	ScanFailures int
}

// Tracker follows the active entries of the host's object pool.
type Tracker struct {
	mem  host.Memory
	base uint32

	// the pool as of the most recent scan
	pool []byte

	// bitmap, type and checksum of every entry as of the most recent scan
	active bitmap
	count  int
	types  [host.ObjectCount]uint32
	sums   [host.ObjectCount]uint32

	// the state of the pool as of the most recent successful Update(). this
	// is what the edge detection in Update() compares against
	prev      bitmap
	prevTypes [host.ObjectCount]uint32
	prevSums  [host.ObjectCount]uint32

	scanFailed bool
	frame      uint32

	events events

	stats Statistics

	// number of active objects summed over every frame. used for the average
	activeSum    int
	activeFrames int

	// created and deleted counts for the most recent frames
	created [rateWindow]int
	deleted [rateWindow]int
	rateIdx int
	rateLen int
}

// NewTracker is the preferred method of initialisation for the Tracker type.
// The base argument is the address of the object pool in host memory.
func NewTracker(mem host.Memory, base uint32) *Tracker {
	trk := &Tracker{
		mem:  mem,
		base: base,
		pool: make([]byte, host.PoolSize),
	}
	return trk
}

// Reset the tracker. Forgets every object, event and statistic.
func (trk *Tracker) Reset() {
	trk.active.clear()
	trk.prev.clear()
	trk.count = 0
	trk.types = [host.ObjectCount]uint32{}
	trk.sums = [host.ObjectCount]uint32{}
	trk.prevTypes = [host.ObjectCount]uint32{}
	trk.prevSums = [host.ObjectCount]uint32{}
	trk.scanFailed = false
	trk.frame = 0
	trk.events.reset()
	trk.stats = Statistics{}
	trk.activeSum = 0
	trk.activeFrames = 0
	trk.created = [rateWindow]int{}
	trk.deleted = [rateWindow]int{}
	trk.rateIdx = 0
	trk.rateLen = 0
}

// scan reads the pool and rebuilds the active bitmap. it does not emit events
// or change the statistics. returns false if the pool could not be read, in
// which case the bitmap is empty
func (trk *Tracker) scan() bool {
	trk.active.clear()
	trk.count = 0

	if !trk.mem.Readable(trk.base, host.PoolSize) {
		trk.scanFailed = true
		return false
	}
	if err := trk.mem.Read(trk.base, trk.pool); err != nil {
		trk.scanFailed = true
		return false
	}
	trk.scanFailed = false

	for i := 0; i < host.ObjectCount; i++ {
		o := trk.pool[i*host.ObjectSize:]
		t := binary.LittleEndian.Uint32(o[fieldType:])
		trk.types[i] = t
		if t == 0 {
			trk.sums[i] = 0
			continue
		}
		trk.active.set(i)
		trk.count++
		trk.sums[i] = entryChecksum(o)
	}

	return true
}

// the checksum of an entry is the XOR of the type, position and velocity
func entryChecksum(o []byte) uint32 {
	return binary.LittleEndian.Uint32(o[fieldType:]) ^
		binary.LittleEndian.Uint32(o[fieldX:]) ^
		binary.LittleEndian.Uint32(o[fieldY:]) ^
		binary.LittleEndian.Uint32(o[fieldVX:]) ^
		binary.LittleEndian.Uint32(o[fieldVY:])
}

// baseline makes the current scan the state that Update() compares against
func (trk *Tracker) baseline() {
	trk.prev = trk.active
	trk.prevTypes = trk.types
	trk.prevSums = trk.sums
}

// Update scans the pool and records events and statistics for the frame. If
// the pool cannot be read the active set is empty for the frame but no events
// are emitted. The next call to Update() will try again.
func (trk *Tracker) Update(frame uint32) {
	trk.frame = frame

	wasFailed := trk.scanFailed
	if !trk.scan() {
		if !wasFailed {
			logger.Logf(logger.Allow, "objects", "object pool unreadable at frame %d", frame)
		}
		trk.stats.ScanFailures++
		trk.stats.Current = 0
		trk.recordRates(0, 0)
		return
	}

	var created, deleted int

	for w := range trk.active {
		cw := trk.active[w] &^ trk.prev[w]
		dw := trk.prev[w] &^ trk.active[w]
		sw := trk.active[w] & trk.prev[w]

		for cw != 0 {
			i := w*64 + bits.TrailingZeros64(cw)
			cw &= cw - 1
			trk.events.push(Event{Frame: frame, Index: i, Kind: Created, Type: trk.types[i], Checksum: trk.sums[i]})
			created++
		}
		for dw != 0 {
			i := w*64 + bits.TrailingZeros64(dw)
			dw &= dw - 1
			trk.events.push(Event{Frame: frame, Index: i, Kind: Deleted, Type: trk.prevTypes[i], Checksum: trk.prevSums[i]})
			deleted++
		}
		for sw != 0 {
			i := w*64 + bits.TrailingZeros64(sw)
			sw &= sw - 1
			if trk.types[i] != trk.prevTypes[i] {
				trk.events.push(Event{Frame: frame, Index: i, Kind: TypeChanged, Type: trk.types[i], Checksum: trk.sums[i]})
			} else if trk.sums[i] != trk.prevSums[i] {
				trk.events.push(Event{Frame: frame, Index: i, Kind: Modified, Type: trk.types[i], Checksum: trk.sums[i]})
			}
		}
	}

	trk.baseline()

	trk.stats.Current = trk.count
	if trk.count > trk.stats.Peak {
		trk.stats.Peak = trk.count
	}
	trk.activeSum += trk.count
	trk.activeFrames++
	trk.stats.Average = float64(trk.activeSum) / float64(trk.activeFrames)
	trk.stats.TotalCreated += created
	trk.stats.TotalDeleted += deleted
	trk.recordRates(created, deleted)
}

func (trk *Tracker) recordRates(created, deleted int) {
	trk.created[trk.rateIdx] = created
	trk.deleted[trk.rateIdx] = deleted
	trk.rateIdx = (trk.rateIdx + 1) % rateWindow
	if trk.rateLen < rateWindow {
		trk.rateLen++
	}

	var c, d int
	for i := 0; i < trk.rateLen; i++ {
		c += trk.created[i]
		d += trk.deleted[i]
	}
	trk.stats.CreationRate = float64(c) / float64(trk.rateLen)
	trk.stats.DeletionRate = float64(d) / float64(trk.rateLen)
}

// IsActive returns true if the entry was active at the most recent scan.
func (trk *Tracker) IsActive(index int) bool {
	if index < 0 || index >= host.ObjectCount {
		return false
	}
	return trk.active.isSet(index)
}

// ActiveCount returns the number of active entries at the most recent scan.
func (trk *Tracker) ActiveCount() int {
	return trk.count
}

// ScanFailed returns true if the most recent scan could not read the pool.
func (trk *Tracker) ScanFailed() bool {
	return trk.scanFailed
}

// ObjectChecksum returns the checksum of the entry as of the most recent
// scan. Inactive entries have a checksum of zero.
func (trk *Tracker) ObjectChecksum(index int) uint32 {
	if !trk.IsActive(index) {
		return 0
	}
	return trk.sums[index]
}

// ActiveIndices appends the index of every active entry to dst.
func (trk *Tracker) ActiveIndices(dst []int) []int {
	for w, v := range trk.active {
		for v != 0 {
			dst = append(dst, w*64+bits.TrailingZeros64(v))
			v &= v - 1
		}
	}
	return dst
}

// TypeHistogram returns the number of active objects of each type.
func (trk *Tracker) TypeHistogram() map[uint32]int {
	h := make(map[uint32]int)
	for w, v := range trk.active {
		for v != 0 {
			h[trk.types[w*64+bits.TrailingZeros64(v)]]++
			v &= v - 1
		}
	}
	return h
}

// Statistics returns a copy of the current statistics.
func (trk *Tracker) Statistics() Statistics {
	return trk.stats
}

// Events returns every event in the event ring. Oldest first.
func (trk *Tracker) Events() []Event {
	return trk.events.list()
}

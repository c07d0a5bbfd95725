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

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/host"
)

// Format of saved object data.
type Format int

// List of valid Format values.
const (
	Minimal Format = iota
	Standard
	Full
)

func (f Format) String() string {
	switch f {
	case Minimal:
		return "minimal"
	case Standard:
		return "standard"
	case Full:
		return "full"
	}
	return "unknown format"
}

// thresholds for the choice of format in SaveAdaptive()
const (
	standardThreshold = 50
	fullThreshold     = 200
)

// the minimal format is a header followed by a table of entries.
//
//	header: u32 frame, u16 count, u16 reserved
//	entry:  u16 index, u16 type, u32 checksum, u32 x, u32 y
const (
	minimalHeader = 8
	minimalEntry  = 16
)

// the standard format is a header followed by the index and data of every
// active entry.
//
//	header: u32 magic, u32 count
//	entry:  u16 index, [382]byte
const (
	standardMagic  = 0x4f424a53
	standardHeader = 8
	standardEntry  = 2 + host.ObjectSize
)

// MinimalSize returns the number of bytes required by SaveMinimal() for count
// active objects.
func MinimalSize(count int) int {
	return minimalHeader + count*minimalEntry
}

// the minimal form used by SaveAdaptive() is the minimal table followed by the
// entry data of every object in the table
func adaptiveMinimalSize(count int) int {
	return MinimalSize(count) + count*host.ObjectSize
}

func standardSize(count int) int {
	return standardHeader + count*standardEntry
}

// MaxSize is the largest number of bytes SaveAdaptive() will ever need.
const MaxSize = host.PoolSize

// SaveMinimal writes the table of active objects, as of the most recent scan,
// to buf. Returns the number of bytes written.
func (trk *Tracker) SaveMinimal(buf []byte) (int, error) {
	n := MinimalSize(trk.count)
	if len(buf) < n {
		return 0, curated.Errorf(BufferTooSmall, n)
	}
	trk.writeTable(buf, trk.frame)
	return n, nil
}

func (trk *Tracker) writeTable(buf []byte, frame uint32) {
	binary.LittleEndian.PutUint32(buf[0:], frame)
	binary.LittleEndian.PutUint16(buf[4:], uint16(trk.count))
	binary.LittleEndian.PutUint16(buf[6:], 0)

	p := minimalHeader
	for w, v := range trk.active {
		for v != 0 {
			i := w*64 + bitIndex(v)
			v &= v - 1

			o := trk.pool[i*host.ObjectSize:]
			binary.LittleEndian.PutUint16(buf[p:], uint16(i))
			binary.LittleEndian.PutUint16(buf[p+2:], uint16(trk.types[i]))
			binary.LittleEndian.PutUint32(buf[p+4:], trk.sums[i])
			copy(buf[p+8:p+12], o[fieldX:fieldX+4])
			copy(buf[p+12:p+16], o[fieldY:fieldY+4])
			p += minimalEntry
		}
	}
}

// readTable checks the header and table of the minimal format. returns the
// count of entries in the table
func readTable(buf []byte) (int, error) {
	if len(buf) < minimalHeader {
		return 0, curated.Errorf(Malformed, "short header")
	}
	count := int(binary.LittleEndian.Uint16(buf[4:]))
	if count > host.ObjectCount {
		return 0, curated.Errorf(Malformed, "too many entries")
	}
	if len(buf) < MinimalSize(count) {
		return 0, curated.Errorf(Malformed, "short table")
	}

	last := -1
	for e := 0; e < count; e++ {
		i := int(binary.LittleEndian.Uint16(buf[minimalHeader+e*minimalEntry:]))
		if i >= host.ObjectCount || i <= last {
			return 0, curated.Errorf(Malformed, "bad index in table")
		}
		last = i
	}

	return count, nil
}

// RestoreMinimal rebuilds the active bitmap from a table written by
// SaveMinimal(). The pool itself is not written to. If the pool can be read
// then the checksum of every entry in the table is verified against the pool.
func (trk *Tracker) RestoreMinimal(buf []byte) error {
	count, err := readTable(buf)
	if err != nil {
		return err
	}

	trk.active.clear()
	trk.count = count
	trk.types = [host.ObjectCount]uint32{}
	trk.sums = [host.ObjectCount]uint32{}
	trk.frame = binary.LittleEndian.Uint32(buf[0:])

	for e := 0; e < count; e++ {
		p := minimalHeader + e*minimalEntry
		i := int(binary.LittleEndian.Uint16(buf[p:]))
		trk.active.set(i)
		trk.types[i] = uint32(binary.LittleEndian.Uint16(buf[p+2:]))
		trk.sums[i] = binary.LittleEndian.Uint32(buf[p+4:])
	}

	if !trk.mem.Readable(trk.base, host.PoolSize) {
		return nil
	}
	if err := trk.mem.Read(trk.base, trk.pool); err != nil {
		return nil
	}

	for w, v := range trk.active {
		for v != 0 {
			i := w*64 + bitIndex(v)
			v &= v - 1
			if entryChecksum(trk.pool[i*host.ObjectSize:]) != trk.sums[i] {
				return curated.Errorf(Mismatch, i)
			}
		}
	}

	return nil
}

// SaveAdaptive scans the pool and writes it to buf in the most compact format
// for the number of active objects. Returns the format chosen and the number
// of bytes written. The frame is the frame of the state being saved, so the
// data depends only on the pool and the frame.
//
// The Full format is used if there are too many active objects, if the pool
// could not be scanned or if the compact form doesn't fit in buf.
func (trk *Tracker) SaveAdaptive(buf []byte, frame uint32) (Format, int, error) {
	trk.scan()

	f := Minimal
	n := adaptiveMinimalSize(trk.count)
	switch {
	case trk.scanFailed || trk.count >= fullThreshold:
		f = Full
		n = host.PoolSize
	case trk.count >= standardThreshold:
		f = Standard
		n = standardSize(trk.count)
	}

	if len(buf) < n {
		if len(buf) < host.PoolSize {
			return f, 0, curated.Errorf(BufferTooSmall, n)
		}
		f = Full
		n = host.PoolSize
	}

	switch f {
	case Minimal:
		trk.writeTable(buf, frame)
		p := MinimalSize(trk.count)
		for w, v := range trk.active {
			for v != 0 {
				i := w*64 + bitIndex(v)
				v &= v - 1
				copy(buf[p:p+host.ObjectSize], trk.pool[i*host.ObjectSize:])
				p += host.ObjectSize
			}
		}

	case Standard:
		binary.LittleEndian.PutUint32(buf[0:], standardMagic)
		binary.LittleEndian.PutUint32(buf[4:], uint32(trk.count))
		p := standardHeader
		for w, v := range trk.active {
			for v != 0 {
				i := w*64 + bitIndex(v)
				v &= v - 1
				binary.LittleEndian.PutUint16(buf[p:], uint16(i))
				copy(buf[p+2:p+standardEntry], trk.pool[i*host.ObjectSize:])
				p += standardEntry
			}
		}

	case Full:
		if trk.scanFailed {
			return f, 0, curated.Errorf(Unreadable)
		}
		copy(buf, trk.pool)
	}

	return f, n, nil
}

// DetectFormat returns the format of data written by SaveAdaptive().
func DetectFormat(buf []byte) (Format, error) {
	if len(buf) == host.PoolSize {
		return Full, nil
	}
	if len(buf) >= standardHeader && binary.LittleEndian.Uint32(buf) == standardMagic {
		count := int(binary.LittleEndian.Uint32(buf[4:]))
		if count <= host.ObjectCount && len(buf) == standardSize(count) {
			return Standard, nil
		}
	}
	count, err := readTable(buf)
	if err != nil {
		return Minimal, err
	}
	if len(buf) != adaptiveMinimalSize(count) {
		return Minimal, curated.Errorf(Malformed, "unexpected length")
	}
	return Minimal, nil
}

// RestoreAdaptive writes data created by SaveAdaptive() to the pool. Every
// entry not in the data is cleared so that the active set is exactly the
// active set at the time of the save. The pool is scanned after the write.
func (trk *Tracker) RestoreAdaptive(buf []byte) (Format, error) {
	f, err := DetectFormat(buf)
	if err != nil {
		return f, err
	}

	switch f {
	case Full:
		copy(trk.pool, buf)

	case Standard:
		zero(trk.pool)
		count := int(binary.LittleEndian.Uint32(buf[4:]))
		for e := 0; e < count; e++ {
			p := standardHeader + e*standardEntry
			i := int(binary.LittleEndian.Uint16(buf[p:]))
			if i >= host.ObjectCount {
				return f, curated.Errorf(Malformed, "bad index in table")
			}
			copy(trk.pool[i*host.ObjectSize:(i+1)*host.ObjectSize], buf[p+2:p+standardEntry])
		}

	case Minimal:
		zero(trk.pool)
		count := int(binary.LittleEndian.Uint16(buf[4:]))
		d := MinimalSize(count)
		for e := 0; e < count; e++ {
			i := int(binary.LittleEndian.Uint16(buf[minimalHeader+e*minimalEntry:]))
			copy(trk.pool[i*host.ObjectSize:(i+1)*host.ObjectSize], buf[d:d+host.ObjectSize])
			d += host.ObjectSize
		}
	}

	if err := trk.mem.Write(trk.base, trk.pool); err != nil {
		return f, curated.Errorf(Unreadable)
	}

	trk.scan()
	trk.baseline()

	return f, nil
}

func bitIndex(v uint64) int {
	return bits.TrailingZeros64(v)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

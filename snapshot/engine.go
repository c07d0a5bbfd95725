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

package snapshot

import (
	"encoding/binary"
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/digest"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/logger"
	"github.com/fm2knet/fm2knet/objects"
)

// Patterns for errors returned by the engine.
const (
	IllegalSlot      = "snapshot: illegal slot (%d)"
	SlotEmpty        = "snapshot: slot %d is empty"
	Unreadable       = "snapshot: unreadable memory: %v"
	Locked           = "snapshot: engine is locked by a session"
	UnknownProfile   = "snapshot: unknown profile (%s)"
	Malformed        = "snapshot: malformed state in slot %d: %v"
	ChecksumMismatch = "snapshot: checksum mismatch in slot %d"
	Restore          = "snapshot: restore: %v"
)

// "FMSS" as a little-endian u32.
const magic = 0x53534d46

// SaveResult is returned by a successful call to Save().
type SaveResult struct {
	BytesWritten int
	Checksum     uint32
	Duration     time.Duration
}

// RestoreResult is returned by a successful call to Restore().
type RestoreResult struct {
	Frame    uint32
	Duration time.Duration
}

// SlotStatus is a summary of one slot.
type SlotStatus struct {
	Occupied bool
	Frame    uint32

	// time of the save in milliseconds since the unix epoch
	Timestamp int64

	Checksum uint32
	SizeKB   int

	// duration of the most recent save and load of the slot in microseconds
	LastSave int64
	LastLoad int64

	ActiveObjects int
	Format        objects.Format
}

// Stats for the engine.
type Stats struct {
	Saves         int
	Loads         int
	AvgSaveMicros float64
	AvgLoadMicros float64
	LargestState  int
}

type slot struct {
	occupied bool
	frame    uint32
	payload  []byte
	n        int
	checksum uint32

	timestamp time.Time
	saveDur   time.Duration
	loadDur   time.Duration

	activeObjects int
	format        objects.Format
}

// Engine saves and restores host state to and from a fixed number of slots.
type Engine struct {
	mem     host.Memory
	layout  host.Layout
	tracker *objects.Tracker

	profile  Profile
	sections []section

	slots []slot

	// the buffer a save is written to. it is swapped with the slot buffer
	// when the save succeeds
	staging []byte

	locked bool

	stats     Stats
	saveTotal time.Duration
	loadTotal time.Duration
}

// NewEngine is the preferred method of initialisation for the Engine type.
// The tracker is used to save the object pool compactly. It can be nil in
// which case the full pool is saved regardless of profile.
func NewEngine(mem host.Memory, layout host.Layout, tracker *objects.Tracker, profile Profile, slots int) (*Engine, error) {
	if slots <= 0 {
		return nil, curated.Errorf(IllegalSlot, slots)
	}

	eng := &Engine{
		mem:     mem,
		layout:  layout,
		tracker: tracker,
		slots:   make([]slot, slots),
	}

	if err := eng.setProfile(profile); err != nil {
		return nil, err
	}

	return eng, nil
}

func (eng *Engine) setProfile(p Profile) error {
	if p < Minimal || p > Complete {
		return curated.Errorf(UnknownProfile, p)
	}

	eng.profile = p
	eng.sections = sections(p, eng.layout)

	// without a tracker the object section is replaced with the full pool
	if eng.tracker == nil {
		for i := range eng.sections {
			if eng.sections[i].isObjects() {
				eng.sections[i] = newSection(secPool, eng.layout.ObjectPool)
			}
		}
	}

	sz := maxSize(eng.sections)
	for i := range eng.slots {
		eng.slots[i] = slot{payload: make([]byte, sz)}
	}
	eng.staging = make([]byte, sz)

	return nil
}

// SetProfile changes the profile. Every slot is cleared. Refused if the engine
// is locked.
func (eng *Engine) SetProfile(p Profile) error {
	if eng.locked {
		return curated.Errorf(Locked)
	}
	if err := eng.setProfile(p); err != nil {
		return err
	}
	logger.Logf(logger.Allow, "snapshot", "profile set to %s (%d bytes per slot)", p, len(eng.staging))
	return nil
}

// Profile returns the current profile.
func (eng *Engine) Profile() Profile {
	return eng.profile
}

// Lock the engine. The profile cannot be changed while the engine is locked.
func (eng *Engine) Lock() {
	eng.locked = true
}

// Unlock the engine.
func (eng *Engine) Unlock() {
	eng.locked = false
}

// IsLocked returns true if the engine is locked.
func (eng *Engine) IsLocked() bool {
	return eng.locked
}

// NumSlots returns the number of slots.
func (eng *Engine) NumSlots() int {
	return len(eng.slots)
}

func (eng *Engine) checkSlot(i int) error {
	if i < 0 || i >= len(eng.slots) {
		return curated.Errorf(IllegalSlot, i)
	}
	return nil
}

// Save the host state to the slot. The frame is recorded in the slot. If the
// save fails the slot is unchanged.
func (eng *Engine) Save(i int, frame uint32) (SaveResult, error) {
	if err := eng.checkSlot(i); err != nil {
		return SaveResult{}, err
	}

	start := time.Now()

	// make sure every region can be read before anything is written
	for _, s := range eng.sections {
		for _, r := range s.regions {
			if !eng.mem.Readable(r.Addr, r.Size) {
				return SaveResult{}, curated.Errorf(Unreadable, r)
			}
		}
	}

	buf := eng.staging
	binary.LittleEndian.PutUint32(buf[0:], magic)
	binary.LittleEndian.PutUint32(buf[4:], frame)
	buf[8] = byte(eng.profile)
	buf[9] = 0
	buf[10] = 0
	buf[11] = 0

	p := headerSize
	format := objects.Full
	for _, s := range eng.sections {
		buf[p] = s.id
		d := p + sectionHeaderSize

		var n int
		if s.isObjects() {
			var err error
			format, n, err = eng.tracker.SaveAdaptive(buf[d:], frame)
			if err != nil {
				return SaveResult{}, curated.Errorf(Unreadable, err)
			}
		} else {
			for _, r := range s.regions {
				if err := eng.mem.Read(r.Addr, buf[d+n:d+n+r.Size]); err != nil {
					return SaveResult{}, curated.Errorf(Unreadable, err)
				}
				n += r.Size
			}
		}

		binary.LittleEndian.PutUint32(buf[p+1:], uint32(n))
		p = d + n
	}

	sl := &eng.slots[i]
	eng.staging, sl.payload = sl.payload, eng.staging
	sl.occupied = true
	sl.frame = frame
	sl.n = p
	sl.checksum = digest.Fletcher32(sl.payload[:p])
	sl.timestamp = time.Now()
	sl.format = format
	if eng.tracker != nil {
		sl.activeObjects = eng.tracker.ActiveCount()
	}
	sl.saveDur = time.Since(start)

	eng.stats.Saves++
	eng.saveTotal += sl.saveDur
	eng.stats.AvgSaveMicros = float64(eng.saveTotal.Microseconds()) / float64(eng.stats.Saves)
	if p > eng.stats.LargestState {
		eng.stats.LargestState = p
	}

	return SaveResult{
		BytesWritten: p,
		Checksum:     sl.checksum,
		Duration:     sl.saveDur,
	}, nil
}

// Restore the host state from the slot. The slot is not cleared.
func (eng *Engine) Restore(i int) (RestoreResult, error) {
	if err := eng.checkSlot(i); err != nil {
		return RestoreResult{}, err
	}

	sl := &eng.slots[i]
	if !sl.occupied {
		return RestoreResult{}, curated.Errorf(SlotEmpty, i)
	}

	start := time.Now()

	buf := sl.payload[:sl.n]
	if digest.Fletcher32(buf) != sl.checksum {
		return RestoreResult{}, curated.Errorf(ChecksumMismatch, i)
	}
	if len(buf) < headerSize || binary.LittleEndian.Uint32(buf) != magic {
		return RestoreResult{}, curated.Errorf(Malformed, i, "bad header")
	}
	if Profile(buf[8]) != eng.profile {
		return RestoreResult{}, curated.Errorf(Malformed, i, "wrong profile")
	}

	p := headerSize
	for _, s := range eng.sections {
		if p+sectionHeaderSize > len(buf) || buf[p] != s.id {
			return RestoreResult{}, curated.Errorf(Malformed, i, "missing section")
		}
		n := int(binary.LittleEndian.Uint32(buf[p+1:]))
		d := p + sectionHeaderSize
		if d+n > len(buf) {
			return RestoreResult{}, curated.Errorf(Malformed, i, "short section")
		}
		data := buf[d : d+n]

		if s.isObjects() {
			if _, err := eng.tracker.RestoreAdaptive(data); err != nil {
				return RestoreResult{}, curated.Errorf(Restore, err)
			}
		} else {
			if n != s.size {
				return RestoreResult{}, curated.Errorf(Malformed, i, "wrong section size")
			}
			for _, r := range s.regions {
				if err := eng.mem.Write(r.Addr, data[:r.Size]); err != nil {
					return RestoreResult{}, curated.Errorf(Restore, err)
				}
				data = data[r.Size:]
			}
		}

		p = d + n
	}

	sl.loadDur = time.Since(start)
	eng.stats.Loads++
	eng.loadTotal += sl.loadDur
	eng.stats.AvgLoadMicros = float64(eng.loadTotal.Microseconds()) / float64(eng.stats.Loads)

	return RestoreResult{
		Frame:    sl.frame,
		Duration: sl.loadDur,
	}, nil
}

// Clear the slot.
func (eng *Engine) Clear(i int) error {
	if err := eng.checkSlot(i); err != nil {
		return err
	}
	eng.slots[i].occupied = false
	eng.slots[i].n = 0
	return nil
}

// ClearAll clears every slot.
func (eng *Engine) ClearAll() {
	for i := range eng.slots {
		eng.slots[i].occupied = false
		eng.slots[i].n = 0
	}
}

// Checksum returns the checksum of the slot. The second return value is false
// if the slot is empty or doesn't exist.
func (eng *Engine) Checksum(i int) (uint32, bool) {
	if eng.checkSlot(i) != nil || !eng.slots[i].occupied {
		return 0, false
	}
	return eng.slots[i].checksum, true
}

// Frame returns the frame saved in the slot. The second return value is false
// if the slot is empty or doesn't exist.
func (eng *Engine) Frame(i int) (uint32, bool) {
	if eng.checkSlot(i) != nil || !eng.slots[i].occupied {
		return 0, false
	}
	return eng.slots[i].frame, true
}

// Payload returns the serialised state in the slot. The returned slice must
// not be modified and is only valid until the next save to the slot.
func (eng *Engine) Payload(i int) []byte {
	if eng.checkSlot(i) != nil || !eng.slots[i].occupied {
		return nil
	}
	return eng.slots[i].payload[:eng.slots[i].n]
}

// SlotStatus returns a summary of the slot.
func (eng *Engine) SlotStatus(i int) SlotStatus {
	if eng.checkSlot(i) != nil {
		return SlotStatus{}
	}
	sl := &eng.slots[i]
	if !sl.occupied {
		return SlotStatus{}
	}
	return SlotStatus{
		Occupied:      true,
		Frame:         sl.frame,
		Timestamp:     sl.timestamp.UnixMilli(),
		Checksum:      sl.checksum,
		SizeKB:        (sl.n + 1023) / 1024,
		LastSave:      sl.saveDur.Microseconds(),
		LastLoad:      sl.loadDur.Microseconds(),
		ActiveObjects: sl.activeObjects,
		Format:        sl.format,
	}
}

// Stats returns a copy of the engine statistics.
func (eng *Engine) Stats() Stats {
	return eng.stats
}

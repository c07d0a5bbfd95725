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

package rollback

// ringSlot is the bookkeeping for one slot of the snapshot ring. the snapshot
// itself is owned by the caller
type ringSlot struct {
	frame uint32
	used  bool

	// a Save has been issued and not yet acknowledged
	pending bool

	// the caller reported that the save failed
	failed bool
}

// snapshotRing is a circular array of slots. the slot for a frame is the
// frame number modulo the capacity of the ring. a Load() truncates the ring so
// that the frames after the loaded frame are forgotten
type snapshotRing struct {
	slots []ringSlot
}

func newSnapshotRing(capacity int) snapshotRing {
	return snapshotRing{slots: make([]ringSlot, capacity)}
}

func (r *snapshotRing) capacity() int {
	return len(r.slots)
}

func (r *snapshotRing) slot(frame uint32) int {
	return int(frame % uint32(len(r.slots)))
}

// present returns true if the frame is in the ring and can be loaded
func (r *snapshotRing) present(frame uint32) bool {
	s := &r.slots[r.slot(frame)]
	return s.used && s.frame == frame && !s.failed
}

// save records that the frame is being saved. returns the slot and whether
// a frame at or after needFrom was overwritten
func (r *snapshotRing) save(frame uint32, needFrom uint32) (int, bool) {
	i := r.slot(frame)
	s := &r.slots[i]
	overwrite := s.used && !s.failed && s.frame != frame && s.frame >= needFrom
	*s = ringSlot{frame: frame, used: true, pending: true}
	return i, overwrite
}

// ack the save of the frame. returns false if no save of the frame is
// outstanding
func (r *snapshotRing) ack(frame uint32, ok bool) bool {
	s := &r.slots[r.slot(frame)]
	if !s.pending || s.frame != frame {
		return false
	}
	s.pending = false
	s.failed = !ok
	return true
}

// truncate forgets every frame after the frame. outstanding saves can still
// be acknowledged
func (r *snapshotRing) truncate(frame uint32) {
	for i := range r.slots {
		if r.slots[i].used && r.slots[i].frame > frame {
			r.slots[i].used = false
		}
	}
}

// latest returns the most recent frame in the ring at or before the frame
func (r *snapshotRing) latest(frame uint32) (uint32, bool) {
	var best uint32
	var found bool
	for i := range r.slots {
		s := &r.slots[i]
		if s.used && !s.failed && s.frame <= frame && (!found || s.frame > best) {
			best = s.frame
			found = true
		}
	}
	return best, found
}

// occupancy returns the number of frames in the ring
func (r *snapshotRing) occupancy() int {
	n := 0
	for i := range r.slots {
		if r.slots[i].used {
			n++
		}
	}
	return n
}

func (r *snapshotRing) clear() {
	for i := range r.slots {
		r.slots[i] = ringSlot{}
	}
}

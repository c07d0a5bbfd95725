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

// number of checksums remembered for local and remote frames
const checksumHistory = 128

type checksumEntry struct {
	frame    uint32
	checksum uint32
	valid    bool
}

type checksums [checksumHistory]checksumEntry

func (c *checksums) set(frame uint32, checksum uint32) {
	c[frame%checksumHistory] = checksumEntry{frame: frame, checksum: checksum, valid: true}
}

func (c *checksums) get(frame uint32) (uint32, bool) {
	e := &c[frame%checksumHistory]
	if !e.valid || e.frame != frame {
		return 0, false
	}
	return e.checksum, true
}

func (c *checksums) forget(frame uint32) {
	e := &c[frame%checksumHistory]
	if e.frame == frame {
		e.valid = false
	}
}

func (c *checksums) clear() {
	*c = checksums{}
}

// desync detection compares the checksums of final frames with the checksums
// reported by the peer. a frame is final when every input before it is
// confirmed and no rollback to an earlier frame is pending
type desync struct {
	// checksums acknowledged by AckSave(). the most recent ack for a frame
	// replaces any earlier ack
	acked checksums

	// final local checksums that have not yet been compared
	final checksums

	// checksums reported by the peer that have not yet been compared
	remote checksums

	// the next frame to be checked for finality
	nextFinal uint32

	// a mismatch has been reported and no matching frame has been seen
	// since
	mismatched bool
}

// compare the frame if both checksums are known. returns true and the two
// checksums if the comparison starts a new run of mismatches
func (d *desync) compare(frame uint32) (bool, uint32, uint32) {
	l, ok := d.final.get(frame)
	if !ok {
		return false, 0, 0
	}
	r, ok := d.remote.get(frame)
	if !ok {
		return false, 0, 0
	}
	d.final.forget(frame)
	d.remote.forget(frame)

	if l == r {
		d.mismatched = false
		return false, l, r
	}
	if d.mismatched {
		return false, l, r
	}
	d.mismatched = true
	return true, l, r
}

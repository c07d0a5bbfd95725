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

package snapshot_test

import (
	"bytes"
	"testing"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/host/simhost"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/objects"
	"github.com/fm2knet/fm2knet/snapshot"
	"github.com/fm2knet/fm2knet/test"
)

func newEngine(t *testing.T, p snapshot.Profile, slots int) (*simhost.Host, *snapshot.Engine) {
	t.Helper()
	h := simhost.NewHost(host.DefaultLayout())
	h.Boot(0x2e7a0f31)
	trk := objects.NewTracker(h, h.Layout().ObjectPool.Addr)
	eng, err := snapshot.NewEngine(h, h.Layout(), trk, p, slots)
	test.DemandSuccess(t, err)
	return h, eng
}

func step(h *simhost.Host, p1, p2 input.Input) {
	l := h.Layout()
	_ = host.WriteU32(h, l.P1Input.Addr, uint32(p1))
	_ = host.WriteU32(h, l.P2Input.Addr, uint32(p2))
	h.RunFrame()
}

func drive(h *simhost.Host, frames int) {
	for i := 0; i < frames; i++ {
		step(h, input.Input(i*13)&input.Mask, input.Input(i*5)&input.Mask)
	}
}

// restoring a saved state and advancing with an input gives the same result
// as advancing from the original state with that input
func TestRoundTrip(t *testing.T) {
	for _, p := range snapshot.Profiles {
		h, eng := newEngine(t, p, 2)
		drive(h, 200)

		_, err := eng.Save(0, 200)
		test.DemandSuccess(t, err, p)

		x := input.Right | input.A
		step(h, x, input.Left)
		after, err := eng.Save(1, 201)
		test.DemandSuccess(t, err, p)
		pool := make([]byte, host.PoolSize)
		test.DemandSuccess(t, h.Read(h.Layout().ObjectPool.Addr, pool))

		// wander off before restoring
		drive(h, 37)

		res, err := eng.Restore(0)
		test.DemandSuccess(t, err, p)
		test.ExpectEquality(t, res.Frame, 200, p)

		step(h, x, input.Left)
		again, err := eng.Save(1, 201)
		test.DemandSuccess(t, err, p)

		test.ExpectEquality(t, again.Checksum, after.Checksum, p)
		test.ExpectEquality(t, again.BytesWritten, after.BytesWritten, p)

		restored := make([]byte, host.PoolSize)
		test.DemandSuccess(t, h.Read(h.Layout().ObjectPool.Addr, restored))
		test.ExpectSuccess(t, bytes.Equal(pool, restored), p)
	}
}

func TestEqualHosts(t *testing.T) {
	ha, a := newEngine(t, snapshot.Standard, 1)
	hb, b := newEngine(t, snapshot.Standard, 1)
	drive(ha, 120)
	drive(hb, 120)

	ra, err := a.Save(0, 120)
	test.DemandSuccess(t, err)
	rb, err := b.Save(0, 120)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, ra.Checksum, rb.Checksum)
	test.ExpectSuccess(t, bytes.Equal(a.Payload(0), b.Payload(0)))

	// a single bit in the object pool changes the checksum
	l := hb.Layout()
	test.DemandSuccess(t, hb.Corrupt(l.ObjectPool.Addr+uint32(host.ObjectSize)+8, 2))
	rb, err = b.Save(0, 120)
	test.DemandSuccess(t, err)
	test.ExpectInequality(t, ra.Checksum, rb.Checksum)
}

func TestUnreadable(t *testing.T) {
	h, eng := newEngine(t, snapshot.Standard, 1)
	drive(h, 10)

	res, err := eng.Save(0, 10)
	test.DemandSuccess(t, err)

	h.SetUnreadable(h.Layout().HitJudge, true)
	drive(h, 10)
	_, err = eng.Save(0, 20)
	test.ExpectSuccess(t, curated.Is(err, snapshot.Unreadable))

	// slot is unchanged
	st := eng.SlotStatus(0)
	test.ExpectSuccess(t, st.Occupied)
	test.ExpectEquality(t, st.Frame, 10)
	test.ExpectEquality(t, st.Checksum, res.Checksum)

	h.SetUnreadable(h.Layout().HitJudge, false)
	h.SetUnreadable(h.Layout().ObjectPool, true)
	_, err = eng.Save(0, 20)
	test.ExpectSuccess(t, curated.Is(err, snapshot.Unreadable))
	c, ok := eng.Checksum(0)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, c, res.Checksum)
}

func TestSlots(t *testing.T) {
	h, eng := newEngine(t, snapshot.Minimal, 4)
	drive(h, 5)

	_, err := eng.Restore(2)
	test.ExpectSuccess(t, curated.Is(err, snapshot.SlotEmpty))
	_, err = eng.Save(4, 5)
	test.ExpectSuccess(t, curated.Is(err, snapshot.IllegalSlot))
	_, err = eng.Save(-1, 5)
	test.ExpectFailure(t, err)

	res, err := eng.Save(2, 5)
	test.DemandSuccess(t, err)
	st := eng.SlotStatus(2)
	test.ExpectSuccess(t, st.Occupied)
	test.ExpectEquality(t, st.Frame, 5)
	test.ExpectEquality(t, st.Checksum, res.Checksum)
	test.ExpectEquality(t, st.SizeKB, (res.BytesWritten+1023)/1024)
	test.ExpectEquality(t, st.Format, objects.Minimal)
	test.ExpectEquality(t, len(eng.Payload(2)), res.BytesWritten)

	f, ok := eng.Frame(2)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, f, 5)

	test.ExpectSuccess(t, eng.Clear(2))
	test.ExpectFailure(t, eng.SlotStatus(2).Occupied)
	test.ExpectEquality(t, len(eng.Payload(2)), 0)

	_, err = eng.Save(0, 5)
	test.DemandSuccess(t, err)
	_, err = eng.Save(1, 5)
	test.DemandSuccess(t, err)
	eng.ClearAll()
	for i := 0; i < eng.NumSlots(); i++ {
		_, ok := eng.Checksum(i)
		test.ExpectFailure(t, ok)
	}

	s := eng.Stats()
	test.ExpectEquality(t, s.Saves, 3)
	test.ExpectEquality(t, s.Loads, 0)
	test.ExpectEquality(t, s.LargestState, res.BytesWritten)
}

func TestProfile(t *testing.T) {
	h, eng := newEngine(t, snapshot.Minimal, 2)
	drive(h, 5)
	_, err := eng.Save(0, 5)
	test.DemandSuccess(t, err)

	eng.Lock()
	test.ExpectSuccess(t, curated.Is(eng.SetProfile(snapshot.Complete), snapshot.Locked))
	test.ExpectEquality(t, eng.Profile(), snapshot.Minimal)
	eng.Unlock()

	test.ExpectSuccess(t, eng.SetProfile(snapshot.Complete))
	test.ExpectEquality(t, eng.Profile(), snapshot.Complete)

	// slots are cleared by a change of profile
	_, ok := eng.Checksum(0)
	test.ExpectFailure(t, ok)

	res, err := eng.Save(0, 5)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, res.BytesWritten, snapshot.MaxSize(snapshot.Complete, h.Layout()))

	p, err := snapshot.ParseProfile("STANDARD")
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, p, snapshot.Standard)
	_, err = snapshot.ParseProfile("everything")
	test.ExpectSuccess(t, curated.Is(err, snapshot.UnknownProfile))
}

func TestWithoutTracker(t *testing.T) {
	h := simhost.NewHost(host.DefaultLayout())
	h.Boot(1)
	eng, err := snapshot.NewEngine(h, h.Layout(), nil, snapshot.Minimal, 1)
	test.DemandSuccess(t, err)

	drive(h, 30)
	mem := h.Snapshot()
	_, err = eng.Save(0, 30)
	test.DemandSuccess(t, err)
	drive(h, 30)
	_, err = eng.Restore(0)
	test.DemandSuccess(t, err)

	pool := h.Layout().ObjectPool
	ext := h.Layout().Extent()
	off := int(pool.Addr - ext.Addr)
	test.ExpectSuccess(t, bytes.Equal(h.Snapshot()[off:off+pool.Size], mem[off:off+pool.Size]))
}

// the saved state depends only on host memory and the frame being saved. the
// frame of the tracker's most recent update is not part of it
func TestTrackerHistory(t *testing.T) {
	for _, p := range snapshot.Profiles {
		h := simhost.NewHost(host.DefaultLayout())
		h.Boot(0x2e7a0f31)
		drive(h, 20)

		trk := objects.NewTracker(h, h.Layout().ObjectPool.Addr)
		eng, err := snapshot.NewEngine(h, h.Layout(), trk, p, 1)
		test.DemandSuccess(t, err, p)

		trk.Update(19)
		a, err := eng.Save(0, 20)
		test.DemandSuccess(t, err, p)

		trk.Update(55)
		b, err := eng.Save(0, 20)
		test.DemandSuccess(t, err, p)

		test.ExpectEquality(t, a.Checksum, b.Checksum, p)
		test.ExpectEquality(t, a.BytesWritten, b.BytesWritten, p)
	}
}

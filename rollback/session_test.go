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

package rollback_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/host/simhost"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/objects"
	"github.com/fm2knet/fm2knet/rollback"
	"github.com/fm2knet/fm2knet/snapshot"
	"github.com/fm2knet/fm2knet/test"
	"github.com/fm2knet/fm2knet/transport"
)

type clock struct {
	t time.Time
}

func newClock() *clock {
	return &clock{t: time.Unix(1700000000, 0)}
}

func (c *clock) now() time.Time {
	return c.t
}

func (c *clock) tick() {
	c.t = c.t.Add(time.Second / 60)
}

// side runs one end of a session against a simulated host
type side struct {
	t    *testing.T
	name string

	h    *simhost.Host
	trk  *objects.Tracker
	eng  *snapshot.Engine
	sess *rollback.Session
	tr   transport.Transport

	locals []rollback.Handle
	inputs func(h rollback.Handle, frame uint32) input.Input

	// stop advancing at this frame
	limit uint32

	// local inputs committed to each frame and the inputs of the most
	// recent Advance of each frame
	committed map[uint32][2]input.Input
	executed  map[uint32][2]input.Input

	// checksum of the most recent save of each frame
	checksums map[uint32]uint32

	events    []rollback.SessionEvent
	gameCount map[rollback.GameEventKind]int

	lastSave   int64
	confirmed  uint32
	beforeSave func(frame uint32)
}

func neutral(_ rollback.Handle, _ uint32) input.Input {
	return input.Neutral
}

func newSide(t *testing.T, name string, cfg rollback.Config, tr transport.Transport) *side {
	t.Helper()

	h := simhost.NewHost(host.DefaultLayout())
	h.Boot(rollback.DefaultSeed)
	trk := objects.NewTracker(h, h.Layout().ObjectPool.Addr)

	// one more slot than the ring needs. the spare is used for comparing
	// state at the end of a test
	eng, err := snapshot.NewEngine(h, h.Layout(), trk, snapshot.Standard, cfg.PredictionWindow+3)
	test.DemandSuccess(t, err, name)

	sess, err := rollback.NewSession(cfg, tr)
	test.DemandSuccess(t, err, name)

	return &side{
		t:         t,
		name:      name,
		h:         h,
		trk:       trk,
		eng:       eng,
		sess:      sess,
		tr:        tr,
		inputs:    neutral,
		limit:     ^uint32(0),
		committed: make(map[uint32][2]input.Input),
		executed:  make(map[uint32][2]input.Input),
		checksums: make(map[uint32]uint32),
		gameCount: make(map[rollback.GameEventKind]int),
		lastSave:  -1,
	}
}

func (s *side) add(kind rollback.PlayerKind, addr netip.AddrPort) {
	s.t.Helper()
	hnd, err := s.sess.AddPlayer(kind, addr)
	test.DemandSuccess(s.t, err, s.name)
	if kind == rollback.Local {
		s.locals = append(s.locals, hnd)
	}
}

func (s *side) spare() int {
	return s.eng.NumSlots() - 1
}

func (s *side) frame() {
	s.t.Helper()

	if s.sess.IsClosed() {
		return
	}

	test.DemandSuccess(s.t, s.sess.PollNetwork(), s.name)
	s.events = append(s.events, s.sess.DrainSessionEvents()...)
	if s.sess.IsClosed() {
		return
	}

	f := s.sess.CurrentFrame()
	if f >= s.limit {
		return
	}

	var in [2]input.Input
	for _, h := range s.locals {
		in[h] = s.inputs(h, f)
		test.DemandSuccess(s.t, s.sess.AddLocalInput(h, in[h]), s.name)
	}

	evs, err := s.sess.DrainGameEvents()
	test.DemandSuccess(s.t, err, s.name)
	s.execute(evs, f, in)

	c := s.sess.ConfirmedFrame()
	test.ExpectSuccess(s.t, c >= s.confirmed, s.name, "confirmed frame went backwards")
	test.ExpectSuccess(s.t, c <= s.sess.CurrentFrame(), s.name, "confirmed frame ahead of current frame")
	s.confirmed = c
}

func (s *side) execute(evs []rollback.GameEvent, f uint32, in [2]input.Input) {
	s.t.Helper()

	l := s.h.Layout()
	for _, ev := range evs {
		s.gameCount[ev.Kind]++

		switch ev.Kind {
		case rollback.Save:
			if s.beforeSave != nil {
				s.beforeSave(ev.Frame)
			}
			res, err := s.eng.Save(ev.Slot, ev.Frame)
			test.ExpectSuccess(s.t, err, s.name)
			test.DemandSuccess(s.t, s.sess.AckSave(ev.Frame, res.Checksum, err == nil), s.name)
			s.checksums[ev.Frame] = res.Checksum
			s.lastSave = int64(ev.Frame)

		case rollback.Load:
			res, err := s.eng.Restore(ev.Slot)
			test.DemandSuccess(s.t, err, s.name)
			test.ExpectEquality(s.t, res.Frame, ev.Frame, s.name)

		case rollback.Advance:
			// every advance is immediately preceded by a save of the
			// same frame
			test.ExpectEquality(s.t, s.lastSave, int64(ev.Frame), s.name, "advance without save")
			s.lastSave = -1

			test.DemandSuccess(s.t, host.WriteU32(s.h, l.P1Input.Addr, uint32(ev.Inputs[0])))
			test.DemandSuccess(s.t, host.WriteU32(s.h, l.P2Input.Addr, uint32(ev.Inputs[1])))
			s.h.RunFrame()
			s.trk.Update(ev.Frame)
			s.executed[ev.Frame] = ev.Inputs

			if !ev.Replay && ev.Frame == f {
				c := s.committed[f]
				for _, h := range s.locals {
					c[h] = in[h]
				}
				s.committed[f] = c
			}
		}
	}
}

func (s *side) count(kind rollback.SessionEventKind) int {
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (s *side) first(kind rollback.SessionEventKind) (rollback.SessionEvent, bool) {
	for _, ev := range s.events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return rollback.SessionEvent{}, false
}

func testConfig(clk *clock) rollback.Config {
	cfg := rollback.DefaultConfig()
	cfg.Clock = clk.now
	return cfg
}

// newPair creates two sides connected by a loopback. the first side is the
// host
func newPair(t *testing.T, imp transport.Impairment, cfgA, cfgB rollback.Config, clk *clock) (*side, *side) {
	t.Helper()

	ta, tb, err := transport.NewLoopbackPair(imp, clk.now, 1, false)
	test.DemandSuccess(t, err)

	a := newSide(t, "a", cfgA, ta)
	a.add(rollback.Local, netip.AddrPort{})
	a.add(rollback.Remote, ta.RemoteAddress())

	b := newSide(t, "b", cfgB, tb)
	b.add(rollback.Remote, tb.RemoteAddress())
	b.add(rollback.Local, netip.AddrPort{})

	return a, b
}

// run both sides until both have reached the limit and the extra number of
// iterations have passed
func run(t *testing.T, clk *clock, a, b *side, extra int) {
	t.Helper()

	for i := 0; i < 10000; i++ {
		clk.tick()
		a.frame()
		b.frame()
		if a.sess.CurrentFrame() >= a.limit && b.sess.CurrentFrame() >= b.limit {
			break
		}
	}
	for i := 0; i < extra; i++ {
		clk.tick()
		a.frame()
		b.frame()
	}
}

func TestStartup(t *testing.T) {
	clk := newClock()
	a, b := newPair(t, transport.Impairment{}, testConfig(clk), testConfig(clk), clk)
	a.limit = 0
	b.limit = 0
	run(t, clk, a, b, 10)

	expected := []rollback.SessionEventKind{
		rollback.PeerConnected,
		rollback.PeerSynchronizing,
		rollback.PeerSynchronized,
		rollback.SessionStarted,
	}
	for _, s := range []*side{a, b} {
		test.DemandEquality(t, len(s.events), len(expected), s.name)
		for i := range expected {
			test.ExpectEquality(t, s.events[i].Kind, expected[i], s.name, i)
		}
		test.ExpectSuccess(t, s.sess.Started(), s.name)
		test.ExpectSuccess(t, s.sess.IsOnline(), s.name)
	}

	st, err := a.sess.PeerState(1)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, st, rollback.InSession)
	st, err = b.sess.PeerState(0)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, st, rollback.InSession)

	test.ExpectSuccess(t, a.sess.IsHost())
	test.ExpectFailure(t, b.sess.IsHost())
}

func TestCleanLoopback(t *testing.T) {
	clk := newClock()
	a, b := newPair(t, transport.Impairment{}, testConfig(clk), testConfig(clk), clk)
	a.limit = 600
	b.limit = 600
	run(t, clk, a, b, 30)

	for _, s := range []*side{a, b} {
		test.ExpectEquality(t, s.sess.CurrentFrame(), 600, s.name)
		test.ExpectEquality(t, s.sess.ConfirmedFrame(), 600, s.name)
		test.ExpectEquality(t, s.gameCount[rollback.Load], 0, s.name)
		test.ExpectEquality(t, s.gameCount[rollback.Advance], 600, s.name)

		st := s.sess.Stats()
		test.ExpectEquality(t, st.Mispredictions, 0, s.name)
		test.ExpectEquality(t, st.Rollbacks, 0, s.name)
		test.ExpectEquality(t, st.Desyncs, 0, s.name)
		test.ExpectEquality(t, st.RingOverwrites, 0, s.name)
		test.ExpectEquality(t, s.count(rollback.DesyncDetected), 0, s.name)
	}

	ra, err := a.eng.Save(a.spare(), 600)
	test.DemandSuccess(t, err)
	rb, err := b.eng.Save(b.spare(), 600)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, ra.Checksum, rb.Checksum)
}

func TestImpairedLoopback(t *testing.T) {
	clk := newClock()
	imp := transport.Impairment{
		Latency: 40 * time.Millisecond,
		Jitter:  10 * time.Millisecond,
		Loss:    0.2,
	}
	a, b := newPair(t, imp, testConfig(clk), testConfig(clk), clk)

	a.inputs = func(_ rollback.Handle, f uint32) input.Input {
		if f >= 100 && f <= 110 {
			return input.Right | input.A
		}
		if f >= 200 && f < 240 {
			return input.Left
		}
		return input.Neutral
	}
	b.inputs = func(_ rollback.Handle, f uint32) input.Input {
		if f >= 150 && f <= 180 {
			return input.Left | input.B
		}
		if f%50 == 0 && f < 300 {
			return input.A
		}
		return input.Neutral
	}

	a.limit = 400
	b.limit = 400
	run(t, clk, a, b, 60)

	test.ExpectSuccess(t, a.gameCount[rollback.Load]+b.gameCount[rollback.Load] > 0, "no rollbacks")

	for _, s := range []*side{a, b} {
		test.ExpectEquality(t, s.sess.CurrentFrame(), 400, s.name)
		test.ExpectSuccess(t, s.sess.ConfirmedFrame() >= 300, s.name)
		test.ExpectEquality(t, s.sess.Stats().Desyncs, 0, s.name)
		test.ExpectEquality(t, s.count(rollback.DesyncDetected), 0, s.name)
		test.ExpectEquality(t, s.count(rollback.PeerDisconnected), 0, s.name)
		test.ExpectSuccess(t, s.sess.RingOccupancy() <= s.sess.RingCapacity(), s.name)
	}

	// the final inputs of every frame are the inputs each side committed
	for f := uint32(0); f < 300; f++ {
		expected := [2]input.Input{a.committed[f][0], b.committed[f][1]}
		test.ExpectEquality(t, a.executed[f], expected, "a", f)
		test.ExpectEquality(t, b.executed[f], expected, "b", f)
	}

	// both sides saved the same state for frames that were confirmed
	for f := uint32(0); f < 300; f++ {
		test.ExpectEquality(t, a.checksums[f], b.checksums[f], f)
	}
}

func TestSendRate(t *testing.T) {
	clk := newClock()
	imp := transport.Impairment{Latency: 40 * time.Millisecond}
	a, b := newPair(t, imp, testConfig(clk), testConfig(clk), clk)
	a.inputs = func(_ rollback.Handle, f uint32) input.Input {
		return input.Input(f/4%2) * input.Right
	}

	const frames = 300
	a.limit = frames
	b.limit = frames

	// many polls between frames must not mean many datagrams
	for i := 0; i < frames+60; i++ {
		clk.tick()
		a.frame()
		b.frame()
		for j := 0; j < 200; j++ {
			test.DemandSuccess(t, a.sess.PollNetwork())
			test.DemandSuccess(t, b.sess.PollNetwork())
		}
	}

	for _, s := range []*side{a, b} {
		test.ExpectSuccess(t, s.sess.Started(), s.name)
		test.ExpectEquality(t, s.sess.CurrentFrame(), frames, s.name)
		test.ExpectEquality(t, s.sess.Stats().Desyncs, 0, s.name)

		c := s.tr.Counters()
		test.ExpectSuccess(t, c.Sent < (frames+60)*6, s.name, c.Sent)
		test.ExpectEquality(t, c.DroppedFull, 0, s.name)
	}
}

func TestDesyncDetection(t *testing.T) {
	clk := newClock()
	a, b := newPair(t, transport.Impairment{}, testConfig(clk), testConfig(clk), clk)
	a.limit = 200
	b.limit = 200

	// x position of the first player object
	x := a.h.Layout().ObjectPool.Addr + host.ObjectSize + 8

	var corrupted bool
	a.beforeSave = func(frame uint32) {
		if frame == 121 && !corrupted {
			corrupted = true
			test.DemandSuccess(t, a.h.Corrupt(x, 0))
		}
	}

	run(t, clk, a, b, 30)
	test.DemandSuccess(t, corrupted)

	for _, s := range []*side{a, b} {
		ev, ok := s.first(rollback.DesyncDetected)
		test.DemandSuccess(t, ok, s.name)
		test.ExpectEquality(t, ev.Frame, 121, s.name)
		test.ExpectInequality(t, ev.Local, ev.Remote, s.name)

		// every later frame also mismatches but is not reported again
		test.ExpectEquality(t, s.count(rollback.DesyncDetected), 1, s.name)
		test.ExpectEquality(t, s.sess.Stats().Desyncs, 1, s.name)
	}

	ea, _ := a.first(rollback.DesyncDetected)
	eb, _ := b.first(rollback.DesyncDetected)
	test.ExpectEquality(t, ea.Local, eb.Remote)
	test.ExpectEquality(t, ea.Remote, eb.Local)
}

func newOffline(t *testing.T, cfg rollback.Config) *side {
	t.Helper()
	s := newSide(t, "offline", cfg, nil)
	s.add(rollback.Local, netip.AddrPort{})
	s.add(rollback.Local, netip.AddrPort{})
	return s
}

func TestOffline(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.PredictionWindow = 15

	s := newOffline(t, cfg)
	s.inputs = func(h rollback.Handle, f uint32) input.Input {
		return input.Input(f*13+uint32(h)*7) & input.Mask
	}

	for i := 0; i < 10000; i++ {
		clk.tick()
		s.frame()
		test.DemandSuccess(t, s.sess.RingOccupancy() <= 17)
	}

	cur := s.sess.CurrentFrame()
	test.ExpectEquality(t, cur, 10000)
	test.ExpectEquality(t, s.sess.ConfirmedFrame(), cur)
	test.ExpectEquality(t, s.gameCount[rollback.Advance], 10000)
	test.ExpectEquality(t, s.gameCount[rollback.Load], 0)
	test.ExpectFailure(t, s.sess.IsOnline())

	ev, ok := s.first(rollback.SessionStarted)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, ev.Kind, rollback.SessionStarted)

	// outside the window
	err := s.sess.RollbackTo(cur - 16)
	test.ExpectSuccess(t, curated.Is(err, rollback.OutsideWindow))
	err = s.sess.RollbackTo(cur + 1)
	test.ExpectSuccess(t, curated.Is(err, rollback.OutsideWindow))

	before := make(map[uint32]uint32)
	for f := cur - 5; f < cur; f++ {
		before[f] = s.checksums[f]
	}

	test.DemandSuccess(t, s.sess.RollbackTo(cur-5))

	var evs []rollback.GameEvent
	for _, h := range s.locals {
		test.DemandSuccess(t, s.sess.AddLocalInput(h, s.inputs(h, cur)))
	}
	drained, err := s.sess.DrainGameEvents()
	test.DemandSuccess(t, err)
	evs = append(evs, drained...)
	s.execute(evs, cur, [2]input.Input{s.inputs(0, cur), s.inputs(1, cur)})

	// load, five replayed frames and the new frame
	test.DemandEquality(t, len(evs), 1+2*6)
	test.ExpectEquality(t, evs[0].Kind, rollback.Load)
	test.ExpectEquality(t, evs[0].Frame, cur-5)
	for i := 0; i < 5; i++ {
		test.ExpectEquality(t, evs[2+i*2].Kind, rollback.Advance)
		test.ExpectSuccess(t, evs[2+i*2].Replay)
	}
	test.ExpectFailure(t, evs[len(evs)-1].Replay)

	// replaying gives the same states
	for f := cur - 5; f < cur; f++ {
		test.ExpectEquality(t, s.checksums[f], before[f], f)
	}

	st := s.sess.Stats()
	test.ExpectEquality(t, st.Rollbacks, 1)
	test.ExpectEquality(t, st.MaxRollback, 5)

	// the window moved on by one frame
	cur = s.sess.CurrentFrame()
	err = s.sess.RollbackTo(cur - 15 - 1)
	test.ExpectSuccess(t, curated.Is(err, rollback.OutsideWindow))
	test.ExpectSuccess(t, s.sess.RollbackTo(cur-15))
}

func TestInputDelay(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.InputDelay = 2

	s := newOffline(t, cfg)
	s.inputs = func(_ rollback.Handle, _ uint32) input.Input {
		return input.A
	}

	for i := 0; i < 5; i++ {
		clk.tick()
		s.frame()
	}

	// the first frames have neutral input
	test.ExpectEquality(t, s.executed[0], [2]input.Input{input.Neutral, input.Neutral})
	test.ExpectEquality(t, s.executed[1], [2]input.Input{input.Neutral, input.Neutral})
	test.ExpectEquality(t, s.executed[2], [2]input.Input{input.A, input.A})
	test.ExpectEquality(t, s.executed[4], [2]input.Input{input.A, input.A})
}

func TestPlayers(t *testing.T) {
	clk := newClock()
	sess, err := rollback.NewSession(testConfig(clk), nil)
	test.DemandSuccess(t, err)

	_, err = sess.AddPlayer(rollback.Remote, transport.LoopbackAddress(1))
	test.ExpectSuccess(t, curated.Is(err, rollback.NoTransport))

	h, err := sess.AddPlayer(rollback.Local, netip.AddrPort{})
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, h, 0)

	_, err = sess.DrainGameEvents()
	test.ExpectSuccess(t, curated.Is(err, rollback.NotReady))

	err = sess.AddLocalInput(5, input.A)
	test.ExpectSuccess(t, curated.Is(err, rollback.UnknownPlayer))

	h, err = sess.AddPlayer(rollback.Local, netip.AddrPort{})
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, h, 1)

	_, err = sess.AddPlayer(rollback.Local, netip.AddrPort{})
	test.ExpectSuccess(t, curated.Is(err, rollback.TooManyPlayers))

	_, err = sess.PeerState(2)
	test.ExpectSuccess(t, curated.Is(err, rollback.UnknownPlayer))

	clk2 := newClock()
	ta, _, err := transport.NewLoopbackPair(transport.Impairment{}, clk2.now, 1, false)
	test.DemandSuccess(t, err)
	online, err := rollback.NewSession(testConfig(clk2), ta)
	test.DemandSuccess(t, err)
	_, err = online.AddPlayer(rollback.Local, netip.AddrPort{})
	test.DemandSuccess(t, err)
	r, err := online.AddPlayer(rollback.Remote, ta.RemoteAddress())
	test.DemandSuccess(t, err)
	err = online.AddLocalInput(r, input.A)
	test.ExpectSuccess(t, curated.Is(err, rollback.NotLocalPlayer))
}

func TestConfig(t *testing.T) {
	cfg := rollback.DefaultConfig()
	test.ExpectSuccess(t, cfg.Validate())

	bad := cfg
	bad.PredictionWindow = 0
	test.ExpectFailure(t, bad.Validate())
	bad.PredictionWindow = 16
	test.ExpectFailure(t, bad.Validate())

	bad = cfg
	bad.DisconnectTimeout = 100 * time.Millisecond
	test.ExpectFailure(t, bad.Validate())

	bad = cfg
	bad.InputDelay = -1
	_, err := rollback.NewSession(bad, nil)
	test.ExpectSuccess(t, curated.Is(err, rollback.IllegalConfig))
}

func TestHalt(t *testing.T) {
	clk := newClock()
	s := newOffline(t, testConfig(clk))
	for i := 0; i < 10; i++ {
		s.frame()
	}

	// acknowledging a save that was never issued
	err := s.sess.AckSave(999, 0, true)
	test.ExpectSuccess(t, curated.Is(err, rollback.Halted))
	test.ExpectSuccess(t, curated.Is(s.sess.Err(), rollback.Halted))

	_, err = s.sess.DrainGameEvents()
	test.ExpectSuccess(t, curated.Is(err, rollback.Halted))
	err = s.sess.AddLocalInput(0, input.A)
	test.ExpectSuccess(t, curated.Is(err, rollback.Halted))
	err = s.sess.PollNetwork()
	test.ExpectSuccess(t, curated.Is(err, rollback.Halted))
}

func TestFailedSave(t *testing.T) {
	clk := newClock()
	s := newOffline(t, testConfig(clk))
	for i := 0; i < 10; i++ {
		s.frame()
	}

	for _, h := range s.locals {
		test.DemandSuccess(t, s.sess.AddLocalInput(h, input.Neutral))
	}
	evs, err := s.sess.DrainGameEvents()
	test.DemandSuccess(t, err)
	test.DemandEquality(t, len(evs), 2)
	test.DemandEquality(t, evs[0].Kind, rollback.Save)

	// the failed frame can't be rolled back to
	test.DemandSuccess(t, s.sess.AckSave(evs[0].Frame, 0, false))
	err = s.sess.RollbackTo(evs[0].Frame)
	test.ExpectSuccess(t, curated.Is(err, rollback.OutsideWindow))
	test.ExpectSuccess(t, s.sess.RollbackTo(evs[0].Frame-1))
}

func TestPeerTimeout(t *testing.T) {
	clk := newClock()
	a, b := newPair(t, transport.Impairment{}, testConfig(clk), testConfig(clk), clk)
	a.limit = 30
	b.limit = 30
	run(t, clk, a, b, 0)
	test.DemandSuccess(t, a.sess.Started())

	// b goes silent. the default timeout is 300ms, or 18 frames
	for i := 0; i < 12; i++ {
		clk.tick()
		a.frame()
	}
	test.ExpectFailure(t, a.sess.IsClosed())

	for i := 0; i < 12; i++ {
		clk.tick()
		a.frame()
	}
	test.ExpectSuccess(t, a.sess.IsClosed())
	test.ExpectEquality(t, a.count(rollback.PeerDisconnected), 1)

	st, err := a.sess.PeerState(1)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, st, rollback.Disconnected)

	err = a.sess.PollNetwork()
	test.ExpectSuccess(t, curated.Is(err, rollback.Closed))
}

func TestConnectTimeout(t *testing.T) {
	clk := newClock()
	cfg := testConfig(clk)
	cfg.ConnectTimeout = time.Second
	a, _ := newPair(t, transport.Impairment{}, cfg, testConfig(clk), clk)

	// the other side never polls
	for i := 0; i < 50; i++ {
		clk.tick()
		a.frame()
	}
	test.ExpectFailure(t, a.sess.IsClosed())
	st, _ := a.sess.PeerState(1)
	test.ExpectEquality(t, st, rollback.Resolving)

	for i := 0; i < 20; i++ {
		clk.tick()
		a.frame()
	}
	test.ExpectSuccess(t, a.sess.IsClosed())
	test.ExpectEquality(t, a.count(rollback.PeerDisconnected), 1)
	test.ExpectEquality(t, a.gameCount[rollback.Advance], 0)
}

func TestClose(t *testing.T) {
	clk := newClock()
	a, b := newPair(t, transport.Impairment{}, testConfig(clk), testConfig(clk), clk)
	a.limit = 30
	b.limit = 30
	run(t, clk, a, b, 0)

	test.DemandSuccess(t, b.sess.Close())
	test.ExpectSuccess(t, b.sess.IsClosed())
	test.ExpectSuccess(t, b.sess.Close())

	clk.tick()
	a.frame()
	test.ExpectSuccess(t, a.sess.IsClosed())
	test.ExpectEquality(t, a.count(rollback.PeerDisconnected), 1)

	// closing doesn't produce an event for the side that closed
	test.ExpectEquality(t, len(b.sess.DrainSessionEvents()), 0)

	_, err := b.sess.DrainGameEvents()
	test.ExpectSuccess(t, curated.Is(err, rollback.Closed))
}

func TestSeed(t *testing.T) {
	clk := newClock()
	cfgA := testConfig(clk)
	cfgA.Seed = 1234
	a, b := newPair(t, transport.Impairment{}, cfgA, testConfig(clk), clk)
	a.limit = 10
	b.limit = 10
	run(t, clk, a, b, 0)

	test.ExpectEquality(t, a.sess.Seed(), 1234)
	test.ExpectEquality(t, b.sess.Seed(), 1234)
}

func TestStall(t *testing.T) {
	clk := newClock()
	a, b := newPair(t, transport.Impairment{}, testConfig(clk), testConfig(clk), clk)
	a.limit = 10
	b.limit = 10
	run(t, clk, a, b, 0)

	// b stops advancing but keeps polling. a runs ahead by the prediction
	// window and then stalls
	a.limit = 100
	for i := 0; i < 40; i++ {
		clk.tick()
		a.frame()
		b.frame()
	}

	window := uint32(rollback.DefaultConfig().PredictionWindow)
	test.ExpectEquality(t, a.sess.CurrentFrame(), b.sess.CurrentFrame()+window)
	test.ExpectSuccess(t, a.sess.Stats().Stalls > 0)
	test.ExpectFailure(t, a.sess.IsClosed())
}

func TestFrameDuration(t *testing.T) {
	test.ExpectEquality(t, rollback.FrameDurationFor(0), time.Second/60)
	test.ExpectEquality(t, rollback.FrameDurationFor(0.5), time.Second/60)
	test.ExpectEquality(t, rollback.FrameDurationFor(1), time.Second/59)
	test.ExpectEquality(t, rollback.FrameDurationFor(-1), time.Second/61)

	clk := newClock()
	s := newOffline(t, testConfig(clk))
	test.ExpectEquality(t, s.sess.FrameDuration(), time.Second/60)
	test.ExpectEquality(t, s.sess.FramesAhead(), 0.0)
}

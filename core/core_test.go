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

package core_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fm2knet/fm2knet/bridge"
	"github.com/fm2knet/fm2knet/core"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/host/simhost"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/ipc"
	"github.com/fm2knet/fm2knet/notifications"
	"github.com/fm2knet/fm2knet/rollback"
	"github.com/fm2knet/fm2knet/shmem"
	"github.com/fm2knet/fm2knet/telemetry/store"
	"github.com/fm2knet/fm2knet/test"
	"github.com/fm2knet/fm2knet/transport"
)

type fixed input.Input

func (f fixed) Sample() input.Input {
	return input.Input(f)
}

// alternates between two inputs every period samples
type alternate struct {
	a, b   input.Input
	period int
	n      int
}

func (alt *alternate) Sample() input.Input {
	alt.n++
	if (alt.n/alt.period)%2 == 0 {
		return alt.a
	}
	return alt.b
}

// clock advances by a millisecond every time it is read
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type notices struct {
	list []notifications.Notice
}

func (n *notices) Notify(notice notifications.Notice, _ ...interface{}) error {
	n.list = append(n.list, notice)
	return nil
}

func (n *notices) count(notice notifications.Notice) int {
	var c int
	for _, l := range n.list {
		if l == notice {
			c++
		}
	}
	return c
}

func newPrefs(t *testing.T, database string) *core.Preferences {
	t.Helper()
	p, err := core.NewPreferences(filepath.Join(t.TempDir(), "preferences"))
	test.DemandSuccess(t, err)
	test.DemandSuccess(t, p.Database.Set(database))
	return p
}

func newHost() *simhost.Host {
	h := simhost.NewHost(host.DefaultLayout())
	h.Boot(rollback.DefaultSeed)
	return h
}

func TestOffline(t *testing.T) {
	h := newHost()
	n := &notices{}
	c, err := core.New(newPrefs(t, ""), h, n)
	test.DemandSuccess(t, err)

	clk := &clock{t: time.Unix(0, 0)}
	err = c.BeginSession(core.SessionConfig{
		Role:      ipc.Offline,
		Sources:   []bridge.Source{fixed(input.Right)},
		P2Sources: []bridge.Source{fixed(input.Left | input.A)},
		Clock:     clk.now,
	})
	test.DemandSuccess(t, err)
	test.ExpectFailure(t, c.BeginSession(core.SessionConfig{}))

	test.DemandSuccess(t, c.Install())
	test.ExpectFailure(t, c.Install())

	for i := 0; i < 120; i++ {
		test.ExpectSuccess(t, h.RunFrame())
		c.OnFramePresented()
	}
	test.DemandSuccess(t, c.Err())

	test.ExpectEquality(t, c.Session().CurrentFrame(), 120)
	test.ExpectEquality(t, c.Session().ConfirmedFrame(), 120)
	test.ExpectEquality(t, n.count(notifications.NotifySessionStarted), 1)

	l := h.Layout()
	p1, _ := host.ReadU32(h, l.P1Input.Addr)
	p2, _ := host.ReadU32(h, l.P2Input.Addr)
	test.ExpectEquality(t, input.Input(p1), input.Right)
	test.ExpectEquality(t, input.Input(p2), input.Left|input.A)

	// the rng starts from the session seed
	test.ExpectEquality(t, c.Session().Seed(), rollback.DefaultSeed)

	test.ExpectSuccess(t, c.Teardown())
	test.ExpectSuccess(t, c.Session() == nil)

	// without the intercept the host runs freely
	ticks := h.Ticks
	test.ExpectSuccess(t, h.RunFrame())
	test.ExpectEquality(t, h.Ticks, ticks+1)
}

func TestNoSession(t *testing.T) {
	h := newHost()
	c, err := core.New(newPrefs(t, ""), h, nil)
	test.DemandSuccess(t, err)
	test.DemandSuccess(t, c.Install())

	// the intercept lets the host run when there is no session
	test.ExpectSuccess(t, h.RunFrame())
	test.ExpectFailure(t, c.EndSession())
	test.ExpectSuccess(t, c.Teardown())
}

func TestLoopback(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}

	a, b, err := transport.NewLoopbackPair(transport.Impairment{}, clk.now, 1, false)
	test.DemandSuccess(t, err)

	ha := newHost()
	hb := newHost()
	na := &notices{}
	nb := &notices{}

	ca, err := core.New(newPrefs(t, ""), ha, na)
	test.DemandSuccess(t, err)
	cb, err := core.New(newPrefs(t, ""), hb, nb)
	test.DemandSuccess(t, err)

	err = ca.BeginSession(core.SessionConfig{
		Role:      ipc.Host,
		Transport: a,
		Remote:    a.RemoteAddress(),
		Sources:   []bridge.Source{fixed(input.Right | input.B)},
		Clock:     clk.now,
	})
	test.DemandSuccess(t, err)
	err = cb.BeginSession(core.SessionConfig{
		Role:      ipc.Guest,
		Transport: b,
		Remote:    b.RemoteAddress(),
		Sources:   []bridge.Source{fixed(input.Left)},
		Clock:     clk.now,
	})
	test.DemandSuccess(t, err)

	test.DemandSuccess(t, ca.Install())
	test.DemandSuccess(t, cb.Install())

	for i := 0; i < 600; i++ {
		ha.RunFrame()
		hb.RunFrame()
		ca.OnFramePresented()
		cb.OnFramePresented()
	}

	test.DemandSuccess(t, ca.Err())
	test.DemandSuccess(t, cb.Err())
	test.ExpectSuccess(t, ca.Session().Started())
	test.ExpectSuccess(t, cb.Session().Started())
	test.ExpectSuccess(t, ca.Session().CurrentFrame() > 500)
	test.ExpectSuccess(t, cb.Session().CurrentFrame() > 500)
	test.ExpectEquality(t, ca.Desyncs(), 0)
	test.ExpectEquality(t, cb.Desyncs(), 0)
	test.ExpectEquality(t, na.count(notifications.NotifyPeerConnected), 1)
	test.ExpectEquality(t, nb.count(notifications.NotifySessionStarted), 1)

	// the guest sees the host's input as player one
	l := hb.Layout()
	p1, _ := host.ReadU32(hb, l.P1Input.Addr)
	p2, _ := host.ReadU32(hb, l.P2Input.Addr)
	test.ExpectEquality(t, input.Input(p1), input.Right|input.B)
	test.ExpectEquality(t, input.Input(p2), input.Left)

	r := ca.Report()
	test.ExpectSuccess(t, r.Transport.Sent > 0)
	test.ExpectSuccess(t, r.Saves > 0)

	// closing one side disconnects the other
	test.ExpectSuccess(t, ca.Teardown())
	for i := 0; i < 10 && !cb.Disconnected(); i++ {
		hb.RunFrame()
	}
	test.ExpectSuccess(t, cb.Disconnected())
	test.ExpectEquality(t, nb.count(notifications.NotifyPeerDisconnected), 1)
	test.ExpectSuccess(t, cb.Teardown())
}

func TestReplayInOneDisplayFrame(t *testing.T) {
	h := newHost()
	c, err := core.New(newPrefs(t, ""), h, nil)
	test.DemandSuccess(t, err)

	region, err := shmem.NewAnonymous(ipc.RegionSize)
	test.DemandSuccess(t, err)
	test.DemandSuccess(t, c.AttachLauncher(region))
	launcher, err := ipc.NewBridge(region)
	test.DemandSuccess(t, err)

	clk := &clock{t: time.Unix(0, 0)}
	test.DemandSuccess(t, c.BeginSession(core.SessionConfig{
		Role:    ipc.Offline,
		Sources: []bridge.Source{&alternate{a: input.Right, b: input.Left, period: 3}},
		Clock:   clk.now,
	}))
	test.DemandSuccess(t, c.Install())

	for i := 0; i < 30; i++ {
		test.ExpectEquality(t, h.RunDisplayFrame(), 1)
	}
	test.ExpectEquality(t, c.Session().CurrentFrame(), 30)

	// four frames are replayed and the live frame is run in the same
	// display frame
	launcher.Request(ipc.Commands{Rollback: true, RollbackFrames: 4})
	presented := h.Presented
	test.ExpectEquality(t, h.RunDisplayFrame(), 5)
	test.ExpectEquality(t, h.Presented, presented+1)
	test.DemandSuccess(t, c.Err())
	test.ExpectEquality(t, c.Session().Stats().Rollbacks, 1)
	test.ExpectFailure(t, c.Bridge().Replaying())
	test.ExpectEquality(t, c.Bridge().Pending(), 0)
	test.ExpectEquality(t, c.Session().CurrentFrame(), 31)

	// the replay reproduces the same game as an uninterrupted run
	ref := newHost()
	rc, err := core.New(newPrefs(t, ""), ref, nil)
	test.DemandSuccess(t, err)
	rclk := &clock{t: time.Unix(0, 0)}
	test.DemandSuccess(t, rc.BeginSession(core.SessionConfig{
		Role:    ipc.Offline,
		Sources: []bridge.Source{&alternate{a: input.Right, b: input.Left, period: 3}},
		Clock:   rclk.now,
	}))
	test.DemandSuccess(t, rc.Install())
	for i := 0; i < 31; i++ {
		ref.RunDisplayFrame()
	}
	l := h.Layout()
	for _, r := range []host.Region{l.FrameCounter, l.RNG, l.ObjectPool} {
		got := make([]byte, r.Size)
		exp := make([]byte, r.Size)
		test.DemandSuccess(t, h.Read(r.Addr, got))
		test.DemandSuccess(t, ref.Read(r.Addr, exp))
		test.ExpectSuccess(t, bytes.Equal(got, exp))
	}

	test.ExpectSuccess(t, c.Teardown())
	test.ExpectSuccess(t, rc.Teardown())
}

func TestImpairedLoopback(t *testing.T) {
	// the clock moves on by a display frame for every presented frame and a
	// little for every read so that a held frame eventually times out
	var now time.Time
	clk := func() time.Time {
		now = now.Add(100 * time.Microsecond)
		return now
	}

	imp := transport.Impairment{Latency: 40 * time.Millisecond, Jitter: 10 * time.Millisecond, Loss: 0.2}
	a, b, err := transport.NewLoopbackPair(imp, clk, 7, false)
	test.DemandSuccess(t, err)

	ha := newHost()
	hb := newHost()
	ca, err := core.New(newPrefs(t, ""), ha, nil)
	test.DemandSuccess(t, err)
	cb, err := core.New(newPrefs(t, ""), hb, nil)
	test.DemandSuccess(t, err)

	err = ca.BeginSession(core.SessionConfig{
		Role:      ipc.Host,
		Transport: a,
		Remote:    a.RemoteAddress(),
		Sources:   []bridge.Source{&alternate{a: input.Right, b: input.Right | input.A, period: 7}},
		Clock:     clk,
	})
	test.DemandSuccess(t, err)
	err = cb.BeginSession(core.SessionConfig{
		Role:      ipc.Guest,
		Transport: b,
		Remote:    b.RemoteAddress(),
		Sources:   []bridge.Source{&alternate{a: input.Left, b: input.Down | input.B, period: 5}},
		Clock:     clk,
	})
	test.DemandSuccess(t, err)

	test.DemandSuccess(t, ca.Install())
	test.DemandSuccess(t, cb.Install())

	const frames = 600
	window := rollback.DefaultConfig().PredictionWindow

	startedAt := -1
	maxTicks := 0
	for i := 0; i < frames; i++ {
		for _, h := range []*simhost.Host{ha, hb} {
			n := h.RunDisplayFrame()
			test.ExpectSuccess(t, n <= window+1)
			if n > maxTicks {
				maxTicks = n
			}
		}
		ca.OnFramePresented()
		cb.OnFramePresented()
		now = now.Add(time.Second / 60)

		if startedAt < 0 && (ca.Session().Started() || cb.Session().Started()) {
			startedAt = i
		}
	}

	test.DemandSuccess(t, ca.Err())
	test.DemandSuccess(t, cb.Err())
	test.ExpectFailure(t, ca.Disconnected())
	test.ExpectFailure(t, cb.Disconnected())
	test.DemandSuccess(t, startedAt >= 0)
	test.ExpectSuccess(t, ca.Session().Started())
	test.ExpectSuccess(t, cb.Session().Started())

	// one session frame for (nearly) every display frame since the start
	played := frames - startedAt
	for _, c := range []*core.Core{ca, cb} {
		cur := int(c.Session().CurrentFrame())
		test.ExpectSuccess(t, cur <= played+1)
		test.ExpectSuccess(t, cur >= played*8/10)
	}

	// mispredictions were corrected by replays that finished inside a
	// single display frame
	rollbacks := ca.Session().Stats().Rollbacks + cb.Session().Stats().Rollbacks
	test.ExpectSuccess(t, rollbacks > 0)
	test.ExpectSuccess(t, maxTicks > 1)

	// every confirmed frame, including those saved again after a load, has
	// the same checksum on both peers
	test.ExpectSuccess(t, ca.Session().ConfirmedFrame() > 0)
	test.ExpectEquality(t, ca.Desyncs(), 0)
	test.ExpectEquality(t, cb.Desyncs(), 0)
	test.ExpectEquality(t, ca.Session().Stats().Desyncs, 0)
	test.ExpectEquality(t, cb.Session().Stats().Desyncs, 0)

	// the per-peer rate limit keeps the datagram count in proportion to the
	// number of frames
	test.ExpectSuccess(t, ca.Report().Transport.Sent < frames*6)
	test.ExpectSuccess(t, cb.Report().Transport.Sent < frames*6)

	test.ExpectSuccess(t, ca.Teardown())
	test.ExpectSuccess(t, cb.Teardown())
}

func TestLauncher(t *testing.T) {
	h := newHost()
	n := &notices{}
	c, err := core.New(newPrefs(t, ""), h, n)
	test.DemandSuccess(t, err)

	region, err := shmem.NewAnonymous(ipc.RegionSize)
	test.DemandSuccess(t, err)
	test.DemandSuccess(t, c.AttachLauncher(region))
	launcher, err := ipc.NewBridge(region)
	test.DemandSuccess(t, err)

	// network configuration from the launcher
	_, ok := c.LauncherSession()
	test.ExpectFailure(t, ok)
	test.DemandSuccess(t, launcher.Configure(ipc.NetworkConfig{InputDelay: 2}))
	cfg, ok := c.LauncherSession()
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, cfg.Role, ipc.Offline)

	clk := &clock{t: time.Unix(0, 0)}
	cfg.Clock = clk.now
	cfg.Sources = []bridge.Source{fixed(input.Up)}
	test.DemandSuccess(t, c.BeginSession(cfg))
	test.DemandSuccess(t, c.Install())

	for i := 0; i < 30; i++ {
		h.RunFrame()
	}
	test.DemandSuccess(t, c.Err())

	st := launcher.Status()
	test.ExpectSuccess(t, st.Valid)
	test.ExpectEquality(t, st.Role, ipc.Offline)
	test.ExpectEquality(t, st.Saves, 30)

	// the input delay from the launcher means the first two frames are
	// neutral but the latest frame has the input
	test.ExpectEquality(t, st.P1, input.Up)

	launcher.Request(ipc.Commands{SaveToSlot: true, TargetSlot: 2})
	h.RunFrame()
	slot, err := launcher.Slot(2)
	test.DemandSuccess(t, err)
	test.ExpectSuccess(t, slot.Occupied)
	test.ExpectEquality(t, n.count(notifications.NotifySlotSaved), 1)

	launcher.Request(ipc.Commands{LoadFromSlot: true, TargetSlot: 2})
	h.RunFrame()
	test.ExpectEquality(t, n.count(notifications.NotifySlotLoaded), 1)

	// an empty slot cannot be loaded
	launcher.Request(ipc.Commands{LoadFromSlot: true, TargetSlot: 3})
	h.RunFrame()
	test.ExpectEquality(t, n.count(notifications.NotifySlotLoaded), 1)

	launcher.Request(ipc.Commands{Rollback: true, RollbackFrames: 4})
	h.RunFrame()
	test.DemandSuccess(t, c.Err())
	test.ExpectEquality(t, c.Session().Stats().Rollbacks, 1)
	test.ExpectSuccess(t, c.Bridge().Replaying())

	// auto-save to the last slot
	launcher.Request(ipc.Commands{AutoSave: true, AutoSaveInterval: 10})
	for i := 0; i < 20; i++ {
		h.RunFrame()
	}
	slot, err = launcher.Slot(ipc.NumSlots - 1)
	test.DemandSuccess(t, err)
	test.ExpectSuccess(t, slot.Occupied)
	test.ExpectEquality(t, slot.Frame%10, 0)

	test.ExpectSuccess(t, c.Teardown())
}

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")

	h := newHost()
	c, err := core.New(newPrefs(t, path), h, nil)
	test.DemandSuccess(t, err)

	clk := &clock{t: time.Unix(0, 0)}
	test.DemandSuccess(t, c.BeginSession(core.SessionConfig{Role: ipc.Offline, Clock: clk.now}))
	test.DemandSuccess(t, c.Install())
	for i := 0; i < 50; i++ {
		h.RunFrame()
	}
	test.ExpectSuccess(t, c.Teardown())

	st, err := store.Open(path)
	test.DemandSuccess(t, err)
	defer st.Close()

	s, err := st.Session(1)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, s.Role, "offline")
	test.ExpectEquality(t, s.Frames, 50)
	test.ExpectSuccess(t, !s.Ended.IsZero())
}

func TestDumpState(t *testing.T) {
	h := newHost()
	c, err := core.New(newPrefs(t, ""), h, nil)
	test.DemandSuccess(t, err)

	clk := &clock{t: time.Unix(0, 0)}
	test.DemandSuccess(t, c.BeginSession(core.SessionConfig{Role: ipc.Offline, Clock: clk.now}))
	test.DemandSuccess(t, c.Install())
	h.RunFrame()

	var b bytes.Buffer
	c.DumpState(&b)
	test.ExpectSuccess(t, strings.Contains(b.String(), "digraph"))
	test.ExpectSuccess(t, c.Teardown())
}

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

package bridge_test

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/fm2knet/fm2knet/bridge"
	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/host/simhost"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/objects"
	"github.com/fm2knet/fm2knet/recorder"
	"github.com/fm2knet/fm2knet/rollback"
	"github.com/fm2knet/fm2knet/snapshot"
	"github.com/fm2knet/fm2knet/test"
	"github.com/fm2knet/fm2knet/transport"
)

type fixed input.Input

func (f fixed) Sample() input.Input {
	return input.Input(f)
}

// clock advances by a millisecond every time it is read
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type rig struct {
	h    *simhost.Host
	sess *rollback.Session
	br   *bridge.Bridge
	errs []error
}

func newRig(t *testing.T, sess *rollback.Session, locals []rollback.Handle, clk *clock) *rig {
	t.Helper()

	h := simhost.NewHost(host.DefaultLayout())
	h.Boot(rollback.DefaultSeed)
	trk := objects.NewTracker(h, h.Layout().ObjectPool.Addr)
	eng, err := snapshot.NewEngine(h, h.Layout(), trk, snapshot.Standard, rollback.MaxPredictionWindow+2)
	test.DemandSuccess(t, err)

	r := &rig{h: h, sess: sess}
	r.br = bridge.NewBridge(sess, eng, bridge.Config{Locals: locals, Clock: clk.now})

	l := h.Layout()
	_, err = h.InstallIntercept(l.ProcessInputs, func() host.Verdict {
		p1, p2, v, err := r.br.OnHostInputEntry()
		if err != nil {
			r.errs = append(r.errs, err)
			return host.Hold
		}
		if v == host.Proceed {
			_ = host.WriteU32(h, l.P1Input.Addr, uint32(p1))
			_ = host.WriteU32(h, l.P2Input.Addr, uint32(p2))
		}
		return v
	})
	test.DemandSuccess(t, err)

	return r
}

func newOffline(t *testing.T, clk *clock) *rig {
	t.Helper()

	sess, err := rollback.NewSession(rollback.DefaultConfig(), nil)
	test.DemandSuccess(t, err)
	p1, err := sess.AddPlayer(rollback.Local, netip.AddrPort{})
	test.DemandSuccess(t, err)
	p2, err := sess.AddPlayer(rollback.Local, netip.AddrPort{})
	test.DemandSuccess(t, err)

	return newRig(t, sess, []rollback.Handle{p1, p2}, clk)
}

func TestOffline(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	r := newOffline(t, clk)

	test.DemandSuccess(t, r.br.AddSource(0, fixed(input.Right)))
	test.DemandSuccess(t, r.br.AddSource(0, fixed(input.A)))
	test.DemandSuccess(t, r.br.AddSource(1, fixed(input.Left)))
	test.ExpectEquality(t, r.br.SampleLocal(), input.Right|input.A)

	for i := 0; i < 100; i++ {
		test.ExpectSuccess(t, r.h.RunFrame())
	}
	test.DemandEquality(t, len(r.errs), 0)
	test.ExpectEquality(t, r.h.Ticks, 100)
	test.ExpectEquality(t, r.sess.CurrentFrame(), 100)
	test.ExpectEquality(t, r.br.Frame(), 99)
	test.ExpectFailure(t, r.br.Replaying())

	l := r.h.Layout()
	p1, err := host.ReadU32(r.h, l.P1Input.Addr)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, input.Input(p1), input.Right|input.A)
	p2, err := host.ReadU32(r.h, l.P2Input.Addr)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, input.Input(p2), input.Left)
}

func TestReplay(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	r := newOffline(t, clk)

	for i := 0; i < 20; i++ {
		r.h.RunFrame()
	}
	test.DemandSuccess(t, r.sess.RollbackTo(17))

	// one replayed frame per host iteration. the rest of the replay and the
	// live frame stay queued
	test.ExpectFailure(t, r.br.HasAdvance())
	for i := 0; i < 3; i++ {
		test.ExpectSuccess(t, r.h.RunFrame())
		test.ExpectSuccess(t, r.br.Replaying(), i)
		test.ExpectEquality(t, r.br.Frame(), uint32(17+i))
		test.ExpectSuccess(t, r.br.HasAdvance(), i)
	}
	test.ExpectSuccess(t, r.h.RunFrame())
	test.ExpectFailure(t, r.br.Replaying())
	test.ExpectEquality(t, r.br.Frame(), 20)
	test.ExpectEquality(t, r.br.Pending(), 0)
	test.ExpectFailure(t, r.br.HasAdvance())

	st := r.br.Stats()
	test.ExpectEquality(t, st.Replays, 3)
	test.ExpectEquality(t, st.Served, 24)
	test.ExpectEquality(t, st.Holds, 0)
	test.DemandEquality(t, len(r.errs), 0)
}

func TestHold(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}

	ta, _, err := transport.NewLoopbackPair(transport.Impairment{}, clk.now, 1, false)
	test.DemandSuccess(t, err)

	cfg := rollback.DefaultConfig()
	cfg.Clock = clk.now
	sess, err := rollback.NewSession(cfg, ta)
	test.DemandSuccess(t, err)
	local, err := sess.AddPlayer(rollback.Local, netip.AddrPort{})
	test.DemandSuccess(t, err)
	_, err = sess.AddPlayer(rollback.Remote, ta.RemoteAddress())
	test.DemandSuccess(t, err)

	r := newRig(t, sess, []rollback.Handle{local}, clk)

	plb, err := recorder.NewPlayback(strings.NewReader("fm2knet-input\n1\n0\n2e7a0f31\n0, 010\n1, 010\n2, 010\n"))
	test.DemandSuccess(t, err)
	test.DemandSuccess(t, r.br.AddSource(local, plb))

	// the peer never answers so the session never starts
	for i := 0; i < 5; i++ {
		test.ExpectFailure(t, r.h.RunFrame())
	}
	test.ExpectEquality(t, r.h.Holds, 5)
	test.ExpectEquality(t, r.h.Ticks, 0)
	test.ExpectEquality(t, r.br.Stats().Holds, 5)
	test.DemandEquality(t, len(r.errs), 0)

	// the input was sampled once and is waiting for a frame
	test.ExpectEquality(t, plb.Remaining(), 2)
}

func TestRecord(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	r := newOffline(t, clk)

	var b strings.Builder
	rec, err := recorder.NewRecorder(nopCloser{&b}, recorder.Header{Player: 0, Seed: r.sess.Seed()})
	test.DemandSuccess(t, err)
	r.br.SetRecorder(rec)
	test.DemandSuccess(t, r.br.AddSource(0, fixed(input.B)))

	for i := 0; i < 10; i++ {
		r.h.RunFrame()
	}
	test.DemandSuccess(t, r.sess.RollbackTo(8))
	for i := 0; i < 3; i++ {
		r.h.RunFrame()
	}
	test.DemandSuccess(t, rec.End())

	// replayed frames are not recorded again
	plb, err := recorder.NewPlayback(strings.NewReader(b.String()))
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, plb.Remaining(), 11)
	test.ExpectEquality(t, plb.Sample(), input.B)
}

func TestSources(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	r := newOffline(t, clk)

	err := r.br.AddSource(5, fixed(input.A))
	test.ExpectSuccess(t, curated.Is(err, bridge.NotLocal))
	test.ExpectEquality(t, r.br.Sample(5), input.Neutral)

	// bits above the start button are cleared
	test.DemandSuccess(t, r.br.AddSource(1, fixed(0xf800|input.C)))
	test.ExpectEquality(t, r.br.Sample(1), input.C)
}

type nopCloser struct {
	*strings.Builder
}

func (nopCloser) Close() error {
	return nil
}

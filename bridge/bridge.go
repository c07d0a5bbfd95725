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

package bridge

import (
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/host"
	"github.com/fm2knet/fm2knet/input"
	"github.com/fm2knet/fm2knet/logger"
	"github.com/fm2knet/fm2knet/recorder"
	"github.com/fm2knet/fm2knet/rollback"
	"github.com/fm2knet/fm2knet/snapshot"
)

// Patterns for errors returned by the bridge.
const (
	LoadFailed    = "bridge: load of frame %d failed: %v"
	NotLocal      = "bridge: player %d is not local"
	SessionFailed = "bridge: %v"
)

// Source is anything that produces local input. The keyboard and gamepad
// state in userinput.Controllers and a recording in recorder.Playback are
// both sources.
type Source interface {
	Sample() input.Input
}

// Config for a new Bridge.
type Config struct {
	// the local players in the session. the first is the primary local player
	Locals []rollback.Handle

	// called for every session event. can be nil
	OnSessionEvent func(ev rollback.SessionEvent)

	// the clock used to bound the busy wait. time.Now if nil
	Clock func() time.Time
}

// Stats for the bridge.
type Stats struct {
	Served   int
	Replays  int
	Holds    int
	Polls    int
	Failures int
}

// Bridge serves host input requests from a rollback session.
type Bridge struct {
	sess *rollback.Session
	eng  *snapshot.Engine

	locals  []rollback.Handle
	sources [2][]Source

	onEvent func(ev rollback.SessionEvent)
	clock   func() time.Time

	// game events not yet served. the session reuses its event slice so the
	// events are copied
	queue []rollback.GameEvent
	next  int

	// local input is sampled once per frame and held until a fresh Advance
	// consumes it. this means a stall does not consume input from a playback
	sample  [2]input.Input
	sampled bool

	replaying bool
	frame     uint32

	rec *recorder.Recorder

	stats Stats
}

// NewBridge is the preferred method of initialisation for the Bridge type.
func NewBridge(sess *rollback.Session, eng *snapshot.Engine, cfg Config) *Bridge {
	br := &Bridge{
		sess:    sess,
		eng:     eng,
		locals:  append([]rollback.Handle{}, cfg.Locals...),
		onEvent: cfg.OnSessionEvent,
		clock:   cfg.Clock,
		queue:   make([]rollback.GameEvent, 0, 2*(rollback.MaxPredictionWindow+2)+4),
	}
	if br.clock == nil {
		br.clock = time.Now
	}
	return br
}

// AddSource adds a source of input for the local player.
func (br *Bridge) AddSource(h rollback.Handle, src Source) error {
	for _, l := range br.locals {
		if l == h {
			br.sources[h] = append(br.sources[h], src)
			return nil
		}
	}
	return curated.Errorf(NotLocal, h)
}

// SetRecorder records the primary local player's input. Nil stops recording
// without ending the recording.
func (br *Bridge) SetRecorder(rec *recorder.Recorder) {
	br.rec = rec
}

// Sample ORs the sources of the local player.
func (br *Bridge) Sample(h rollback.Handle) input.Input {
	var in input.Input
	if h < 0 || int(h) >= len(br.sources) {
		return in
	}
	for _, src := range br.sources[h] {
		in |= src.Sample()
	}
	return in.Masked()
}

// SampleLocal ORs the sources of the primary local player.
func (br *Bridge) SampleLocal() input.Input {
	if len(br.locals) == 0 {
		return input.Neutral
	}
	return br.Sample(br.locals[0])
}

// Replaying returns true if the most recently served frame was a replay.
func (br *Bridge) Replaying() bool {
	return br.replaying
}

// Frame returns the most recently served frame.
func (br *Bridge) Frame() uint32 {
	return br.frame
}

// Stats returns a copy of the bridge statistics.
func (br *Bridge) Stats() Stats {
	return br.stats
}

// Pending returns the number of game events waiting to be served.
func (br *Bridge) Pending() int {
	return len(br.queue) - br.next
}

// HasAdvance returns true if an Advance is already queued. The host can run it
// without returning to the display.
func (br *Bridge) HasAdvance() bool {
	for _, ev := range br.queue[br.next:] {
		if ev.Kind == rollback.Advance {
			return true
		}
	}
	return false
}

func (br *Bridge) poll() error {
	br.stats.Polls++
	err := br.sess.PollNetwork()
	for _, ev := range br.sess.DrainSessionEvents() {
		if br.onEvent != nil {
			br.onEvent(ev)
		}
	}
	if err != nil && curated.Is(err, rollback.Closed) {
		return nil
	}
	return err
}

// fill the queue from the session
func (br *Bridge) fill() error {
	if err := br.poll(); err != nil {
		return err
	}
	if br.sess.IsClosed() {
		return nil
	}

	if !br.sampled {
		for _, h := range br.locals {
			br.sample[h] = br.Sample(h)
		}
		br.sampled = true
	}
	for _, h := range br.locals {
		if err := br.sess.AddLocalInput(h, br.sample[h]); err != nil {
			return err
		}
	}

	evs, err := br.sess.DrainGameEvents()
	if err != nil {
		return err
	}

	br.queue = append(br.queue[:0], evs...)
	br.next = 0

	return nil
}

// execute queued events up to and including the next Advance. returns false
// if the queue ran out before an Advance was found
func (br *Bridge) execute() (rollback.GameEvent, bool, error) {
	for br.next < len(br.queue) {
		ev := br.queue[br.next]
		br.next++

		switch ev.Kind {
		case rollback.Save:
			res, err := br.eng.Save(ev.Slot, ev.Frame)
			if err != nil {
				br.stats.Failures++
				logger.Logf(logger.Allow, "bridge", "save of frame %d: %v", ev.Frame, err)
			}
			if err := br.sess.AckSave(ev.Frame, res.Checksum, err == nil); err != nil {
				return ev, false, err
			}

		case rollback.Load:
			if _, err := br.eng.Restore(ev.Slot); err != nil {
				br.stats.Failures++
				return ev, false, curated.Errorf(LoadFailed, ev.Frame, err)
			}

		case rollback.Advance:
			return ev, true, nil
		}
	}
	return rollback.GameEvent{}, false, nil
}

func (br *Bridge) serve(ev rollback.GameEvent) (input.Input, input.Input) {
	br.stats.Served++
	br.replaying = ev.Replay
	br.frame = ev.Frame

	if ev.Replay {
		br.stats.Replays++
	} else {
		br.sampled = false
		if br.rec != nil && len(br.locals) > 0 {
			if err := br.rec.Record(ev.Frame, br.sample[br.locals[0]]); err != nil {
				logger.Logf(logger.Allow, "bridge", "%v", err)
				br.rec = nil
			}
		}
	}

	return ev.Inputs[0], ev.Inputs[1]
}

// OnHostInputEntry is the body of the host intercept. It returns the inputs
// for the frame the host is about to run. If the verdict is host.Hold the
// inputs should be ignored and the host must not run a tick.
func (br *Bridge) OnHostInputEntry() (input.Input, input.Input, host.Verdict, error) {
	// events left over from an earlier drain are served first
	if ev, ok, err := br.execute(); err != nil {
		return input.Neutral, input.Neutral, host.Hold, err
	} else if ok {
		p1, p2 := br.serve(ev)
		return p1, p2, host.Proceed, nil
	}

	deadline := br.clock().Add(br.sess.FrameDuration())
	for {
		if err := br.fill(); err != nil {
			return input.Neutral, input.Neutral, host.Hold, err
		}

		ev, ok, err := br.execute()
		if err != nil {
			return input.Neutral, input.Neutral, host.Hold, err
		}
		if ok {
			p1, p2 := br.serve(ev)
			return p1, p2, host.Proceed, nil
		}

		if br.sess.IsClosed() || !br.clock().Before(deadline) {
			break
		}
	}

	br.stats.Holds++
	return input.Neutral, input.Neutral, host.Hold, nil
}
